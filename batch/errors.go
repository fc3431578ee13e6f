package batch

import "errors"

var (
	// ErrObjectStoreRequired is returned when a controller is created without an object store.
	ErrObjectStoreRequired = errors.New("object store is required")

	// ErrProcessorRequired is returned when a controller is created without a record processor.
	ErrProcessorRequired = errors.New("record processor is required")

	// ErrCheckpointStoreRequired is returned when a controller is created without a checkpoint store.
	ErrCheckpointStoreRequired = errors.New("checkpoint store is required")

	// ErrRunLocked is returned when another run holds the checkpoint lock.
	ErrRunLocked = errors.New("another run holds the checkpoint lock")

	// ErrUnsafeArchivePath is returned for archive entries that would be
	// extracted outside the scratch directory.
	ErrUnsafeArchivePath = errors.New("archive entry escapes extraction directory")

	// ErrInvalidWorkers is returned for a non-positive worker count.
	ErrInvalidWorkers = errors.New("workers must be positive")

	// ErrInvalidMaxAttempts is returned for a negative archive attempt bound.
	ErrInvalidMaxAttempts = errors.New("max archive attempts must not be negative")

	// ErrInvalidMaxRecordSize is returned for a non-positive record size cap.
	ErrInvalidMaxRecordSize = errors.New("max record size must be positive")

	// ErrRecordTooLarge is returned for an archive entry over the record
	// size cap.
	ErrRecordTooLarge = errors.New("archive entry exceeds max record size")
)
