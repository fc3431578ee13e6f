package ingestion

import "errors"

var (
	// ErrContentRepositoryRequired is returned when a content repository is not provided.
	ErrContentRepositoryRequired = errors.New("content repository required")

	// ErrUnreadableDocument is returned when a record file is not a legal document.
	ErrUnreadableDocument = errors.New("unreadable document")
)
