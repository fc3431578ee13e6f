package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/drorzp/justel-pipeline/storage/sqlstore"
)

// Validate checks the settings a run cannot start without. The bucket check
// comes first so a bare environment fails with ErrBucketRequired.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.S3.Bucket) == "" {
		return ErrBucketRequired
	}
	if strings.TrimSpace(s.Batch.CheckpointPath) == "" {
		return ErrCheckpointRequired
	}
	if s.Database.URL == "" {
		return ErrDatabaseRequired
	}

	var errs []error
	if _, err := sqlstore.Dialector(s.Database.URL); err != nil {
		errs = append(errs, fmt.Errorf("config: database: %w", err))
	}
	if err := s.Tables().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if s.Batch.Workers < 1 {
		errs = append(errs, fmt.Errorf("config: batch workers must be at least 1, got %d", s.Batch.Workers))
	}
	if s.Batch.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("config: max archive attempts must not be negative, got %d", s.Batch.MaxAttempts))
	}
	if s.Batch.MaxRecordSize < 1 {
		errs = append(errs, fmt.Errorf("config: max record size must be at least 1, got %d", s.Batch.MaxRecordSize))
	}
	if s.Sync.Workers < 1 {
		errs = append(errs, fmt.Errorf("config: sync workers must be at least 1, got %d", s.Sync.Workers))
	}
	if s.Mongo.URI != "" {
		if err := validateEnvMongoURI(s.Mongo.URI); err != nil {
			errs = append(errs, fmt.Errorf("config: mongo: %w", err))
		}
	}
	if err := validateEnvLargeProvider(s.AI.LargeProvider); err != nil {
		errs = append(errs, fmt.Errorf("config: large provider: %w", err))
	}
	if s.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(s.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("config: schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Tables returns the relational table names.
func (s *Settings) Tables() sqlstore.Tables {
	t := sqlstore.DefaultTables()
	t.Schema = s.Database.Schema
	if s.Database.Laws != "" {
		t.Laws = s.Database.Laws
	}
	if s.Database.Content != "" {
		t.Content = s.Database.Content
	}
	if s.Database.Snapshot != "" {
		t.Snapshot = s.Database.Snapshot
	}
	return t
}
