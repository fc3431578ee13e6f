package batch

import (
	"context"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the subset of object storage the controller needs.
type ObjectStore interface {
	// List returns every object under prefix, following pagination.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Download writes the object at key to the local file dest.
	Download(ctx context.Context, key, dest string) error

	// Upload stores the local file src under key.
	Upload(ctx context.Context, key, src string) error

	// DeleteWithSuffix deletes every object under prefix whose key ends
	// with suffix and returns how many were deleted.
	DeleteWithSuffix(ctx context.Context, prefix, suffix string) (int, error)
}

// RecordProcessor handles one extracted record file.
// Implementations must be safe for concurrent use.
type RecordProcessor interface {
	Process(ctx context.Context, path string) error
}

// RecordProcessorFunc adapts a function to RecordProcessor.
type RecordProcessorFunc func(ctx context.Context, path string) error

// Process implements RecordProcessor.
func (f RecordProcessorFunc) Process(ctx context.Context, path string) error {
	return f(ctx, path)
}
