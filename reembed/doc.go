// Package reembed rebuilds every vector point from the relational content
// records.
//
// The vector gate skips records whose stored text hash matches, so after an
// embedding model change nothing would ever be re-embedded. Reembedder walks
// all content records in ID order, embeds them in batches with exponential
// backoff, normalizes the vectors and writes them unconditionally.
package reembed
