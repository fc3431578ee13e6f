// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/drorzp/justel-pipeline/ai"
	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/metrics"
	"github.com/drorzp/justel-pipeline/progress"
	"github.com/drorzp/justel-pipeline/storage"
	"github.com/drorzp/justel-pipeline/upsert"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of records to embed in one call
	BatchSize int

	// Workers is the number of batches embedded concurrently
	Workers int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for the embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		Workers:        2,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder rebuilds the vector store from all content records.
type Reembedder struct {
	repo      storage.ContentRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *RecordIterator
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder)

// WithMetrics records one embedding outcome per record.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(r *Reembedder) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.ContentRepository, embedder ai.Embedder, writer *upsert.VectorWriter, config *Config, progress io.Writer, opts ...Option) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, upsert.ErrEmbedderRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(embedder, writer, config.MaxRetries, config.RetryDelay),
		iterator:  NewRecordIterator(repo, config.BatchSize),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reembedder")
	return r, nil
}

// Run re-embeds every content record. The first failed batch cancels the
// remaining work and is returned.
func (r *Reembedder) Run(ctx context.Context) error {
	total, err := r.repo.CountContent(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No records found in database (0 records)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d records (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := progress.NewTracker(r.progress, int(total), r.config.ReportInterval)
	tracker.Start()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := ants.NewPool(r.config.Workers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	iterErr := r.iterator.ForEach(ctx, func(records []*core.ContentRecord) error {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := r.processor.Process(ctx, records); err != nil {
				r.metrics.RecordEmbedding(metrics.StatusFailed)
				r.logger.Error("batch failed",
					"first_id", records[0].ID, "size", len(records), "error", err)
				setErr(fmt.Errorf("failed to process batch starting at id %d: %w", records[0].ID, err))
				return
			}
			for range records {
				r.metrics.RecordEmbedding(metrics.StatusSuccess)
			}
			tracker.Increment(len(records))
		})
		if submitErr != nil {
			wg.Done()
			return fmt.Errorf("submit batch: %w", submitErr)
		}
		return nil
	})
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if iterErr != nil && !errors.Is(iterErr, context.Canceled) {
		return iterErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d records in %v (%.1f records/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}
