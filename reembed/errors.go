package reembed

import "errors"

var (
	// ErrRepositoryRequired is returned when no content repository is given.
	ErrRepositoryRequired = errors.New("content repository is required")

	// ErrWriterRequired is returned when no vector writer is given.
	ErrWriterRequired = errors.New("vector writer is required")

	// ErrEmbeddingCountMismatch is returned when the embedder answers a batch
	// with a different number of vectors than texts.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
)
