// Package ingestion turns extracted legal documents into content records.
//
// A Processor reads one document JSON file, validates it, stores the law
// metadata and writes one ContentRecord per article. Article markup is
// rendered deterministically by RenderArticle, so the hash of the rendered
// markup (the source hash) only changes when the source document does.
// Articles whose source hash is already stored are skipped, which makes
// re-processing an archive a no-op.
//
// Processing a file is independent of every other file; the batch
// controller runs many Process calls concurrently.
package ingestion
