// Package upsert converges the document and vector stores on the relational
// content after ingestion.
//
// A sync run works only on the change set: records whose current text hash
// differs from the snapshot taken at run start, or that have no snapshot.
// For each changed record the Syncer first settles the relational text:
//
//   - if the snapshot came from the same source markup but holds a
//     different text, the snapshot text is copied back (a repaired text
//     overwritten by a forced re-ingest), without any model call
//   - otherwise, if the markup carries structure worth repairing, the
//     record goes through the transformation router and is written back
//     only on success
//
// It then replaces the article and law documents in the document store
// and, concurrently, runs SmartUpsert against the vector store. SmartUpsert
// compares the text hash stored with the point to the record's current
// hash and embeds only when they differ.
//
// Failures are counted per store and never stop the run. Only a canceled
// context or an unreadable change set end Run with an error.
package upsert
