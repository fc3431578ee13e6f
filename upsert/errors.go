package upsert

import "errors"

var (
	// ErrContentRepositoryRequired is returned when a component is created without a content repository.
	ErrContentRepositoryRequired = errors.New("content repository is required")

	// ErrEmbedderRequired is returned when a vector store is configured without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required for the vector store")

	// ErrVectorStoreRequired is returned when a VectorWriter is created without a store.
	ErrVectorStoreRequired = errors.New("vector store is required")

	// ErrTitleCleanerRequired is returned when TitleSync is created without a cleaner.
	ErrTitleCleanerRequired = errors.New("title cleaner is required")

	// ErrInvalidWorkers is returned for a non-positive worker count.
	ErrInvalidWorkers = errors.New("workers must be positive")

	// ErrEmptyEmbedding is returned when the embedder returns no vector.
	ErrEmptyEmbedding = errors.New("embedder returned an empty vector")
)
