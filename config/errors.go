package config

import "errors"

var (
	// ErrBucketRequired is returned by Validate when no S3 bucket is set.
	ErrBucketRequired = errors.New("config: bucket is required")

	// ErrCheckpointRequired is returned by Validate when the checkpoint path is empty.
	ErrCheckpointRequired = errors.New("config: checkpoint path is required")

	// ErrDatabaseRequired is returned by Validate when no database URL is set.
	ErrDatabaseRequired = errors.New("config: database url is required")
)
