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


package justel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/drorzp/justel-pipeline/ai"
	"github.com/drorzp/justel-pipeline/ai/openai"
	"github.com/drorzp/justel-pipeline/batch"
	"github.com/drorzp/justel-pipeline/batch/s3"
	"github.com/drorzp/justel-pipeline/config"
	"github.com/drorzp/justel-pipeline/ingestion"
	"github.com/drorzp/justel-pipeline/metrics"
	"github.com/drorzp/justel-pipeline/reembed"
	"github.com/drorzp/justel-pipeline/storage"
	"github.com/drorzp/justel-pipeline/storage/badger"
	"github.com/drorzp/justel-pipeline/storage/mongo"
	"github.com/drorzp/justel-pipeline/storage/qdrant"
	"github.com/drorzp/justel-pipeline/storage/sqlstore"
	"github.com/drorzp/justel-pipeline/telemetry"
	"github.com/drorzp/justel-pipeline/transform"
	"github.com/drorzp/justel-pipeline/upsert"
)

// Engine owns the stores and backends of one pipeline process and builds the
// components that run on them.
type Engine struct {
	settings *config.Settings
	repo     storage.ContentRepository
	docs     storage.DocumentStore
	vectors  storage.VectorStore
	backend  *badger.Backend
	objects  batch.ObjectStore
	metrics  *metrics.PipelineMetrics
	reporter *telemetry.Reporter
	progress io.Writer
	logger   *slog.Logger

	providerOnce sync.Once
	provider     ai.AIProvider
	providerErr  error
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	objects  batch.ObjectStore
	metrics  *metrics.PipelineMetrics
	reporter *telemetry.Reporter
	progress io.Writer
	logger   *slog.Logger
}

// WithProvider uses provider instead of building one from the AI settings.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithObjectStore uses store instead of the configured S3 bucket.
func WithObjectStore(store batch.ObjectStore) EngineOption {
	return func(o *engineOptions) {
		o.objects = store
	}
}

// WithMetrics records pipeline metrics in m.
func WithMetrics(m *metrics.PipelineMetrics) EngineOption {
	return func(o *engineOptions) {
		o.metrics = m
	}
}

// WithReporter sends failures to r.
func WithReporter(r *telemetry.Reporter) EngineOption {
	return func(o *engineOptions) {
		o.reporter = r
	}
}

// WithProgress writes progress lines to w.
func WithProgress(w io.Writer) EngineOption {
	return func(o *engineOptions) {
		o.progress = w
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine opens the relational store, the document and vector stores and
// the object store described by settings. Mongo and Qdrant are used when
// configured; otherwise both fall back to a local badger database.
func NewEngine(ctx context.Context, settings *config.Settings, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		logger:   slog.Default(),
		progress: io.Discard,
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	repo, err := sqlstore.Open(ctx, settings.Database.URL,
		sqlstore.WithTables(settings.Tables()),
		sqlstore.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open content repository: %w", err)
	}

	e := &Engine{
		settings: settings,
		repo:     repo,
		objects:  options.objects,
		metrics:  options.metrics,
		reporter: options.reporter,
		progress: options.progress,
		logger:   logger,
	}
	if options.provider != nil {
		e.providerOnce.Do(func() { e.provider = options.provider })
	}

	if err := e.openDocumentAndVectorStores(ctx); err != nil {
		e.Close()
		return nil, err
	}

	if e.objects == nil {
		objects, err := s3.New(ctx, s3.Config{
			Bucket:       settings.S3.Bucket,
			Region:       settings.S3.Region,
			Endpoint:     settings.S3.Endpoint,
			UsePathStyle: settings.S3.UsePathStyle,
			Anonymous:    settings.S3.Anonymous,
		}, logger)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("open object store: %w", err)
		}
		e.objects = objects
	}

	return e, nil
}

func (e *Engine) openDocumentAndVectorStores(ctx context.Context) error {
	s := e.settings
	if s.Mongo.URI == "" || s.Qdrant.Host == "" {
		backend, err := badger.OpenBackend(s.Badger.Path, s.Badger.InMemory)
		if err != nil {
			return fmt.Errorf("open local store: %w", err)
		}
		e.backend = backend
	}

	if s.Mongo.URI != "" {
		docs, err := mongo.Open(ctx, s.Mongo.URI,
			mongo.WithDatabase(s.Mongo.Database),
			mongo.WithLogger(e.logger))
		if err != nil {
			return fmt.Errorf("open document store: %w", err)
		}
		e.docs = docs
	} else {
		e.docs = badger.NewDocumentStore(e.backend)
	}

	if s.Qdrant.Host != "" {
		vectors, err := qdrant.Open(qdrant.Config{
			Host:       s.Qdrant.Host,
			Port:       s.Qdrant.Port,
			APIKey:     s.Qdrant.APIKey,
			UseTLS:     s.Qdrant.UseTLS,
			Collection: s.Qdrant.Collection,
		}, e.logger)
		if err != nil {
			return fmt.Errorf("open vector store: %w", err)
		}
		e.vectors = vectors
	} else {
		e.vectors = badger.NewVectorStore(e.backend)
	}
	return nil
}

// Close releases every store. The provider is closed when it was opened.
func (e *Engine) Close() error {
	var errs []error
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
		}
	}
	if e.vectors != nil {
		if err := e.vectors.Close(); err != nil {
			e.logger.Error("error closing vector store", "err", err)
			errs = append(errs, err)
		}
	}
	if e.docs != nil {
		if err := e.docs.Close(); err != nil {
			e.logger.Error("error closing document store", "err", err)
			errs = append(errs, err)
		}
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	if err := e.repo.Close(); err != nil {
		e.logger.Error("error closing content repository", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ContentRepository returns the relational store.
func (e *Engine) ContentRepository() storage.ContentRepository {
	return e.repo
}

// DocumentStore returns the document store.
func (e *Engine) DocumentStore() storage.DocumentStore {
	return e.docs
}

// VectorStore returns the vector store.
func (e *Engine) VectorStore() storage.VectorStore {
	return e.vectors
}

// Provider returns the AI provider, creating it on first use so commands
// that never call a model run without API keys.
func (e *Engine) Provider() (ai.AIProvider, error) {
	e.providerOnce.Do(func() {
		e.provider, e.providerErr = openai.NewProvider(e.settings.AIConfig())
	})
	return e.provider, e.providerErr
}

// NewController builds the batch controller over the object store.
func (e *Engine) NewController() (*batch.Controller, error) {
	b := e.settings.Batch
	processor, err := ingestion.NewProcessor(e.repo,
		ingestion.WithForce(b.Force),
		ingestion.WithMetrics(e.metrics),
		ingestion.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}

	opts := []batch.Option{
		batch.WithPrefix(e.settings.S3.Prefix),
		batch.WithWorkers(b.Workers),
		batch.WithErrorDir(b.ErrorDir),
		batch.WithMaxFailures(b.MaxFailures),
		batch.WithMaxArchiveAttempts(b.MaxAttempts),
		batch.WithMetrics(e.metrics),
		batch.WithReporter(e.reporter),
		batch.WithProgress(e.progress),
		batch.WithLogger(e.logger),
	}
	if b.Extension != "" {
		opts = append(opts, batch.WithArchiveExtension(b.Extension))
	}
	if b.WorkDir != "" {
		opts = append(opts, batch.WithWorkDir(b.WorkDir))
	}
	if b.MaxRecordSize > 0 {
		opts = append(opts, batch.WithMaxRecordSize(b.MaxRecordSize))
	}
	return batch.NewController(e.objects, processor, batch.NewFileCheckpointStore(b.CheckpointPath), opts...)
}

// NewRouter builds the transformation router on the provider's backends.
func (e *Engine) NewRouter() (*transform.Router, error) {
	provider, err := e.Provider()
	if err != nil {
		return nil, err
	}
	t := e.settings.Transform
	opts := []transform.Option{
		transform.WithLimits(transform.Limits{
			SmallInputLimit:    t.SmallInputLimit,
			SmallOutputCeiling: t.SmallOutputCeiling,
			LargeOutputCeiling: t.LargeOutputCeiling,
		}),
		transform.WithMaxAttempts(t.MaxAttempts),
		transform.WithRetryDelay(t.RetryDelay),
		transform.WithCallTimeout(t.CallTimeout),
		transform.WithMetrics(e.metrics),
		transform.WithLogger(e.logger),
	}
	if e.settings.AI.Temperature > 0 {
		opts = append(opts, transform.WithTemperature(e.settings.AI.Temperature))
	}
	if large := provider.Large(); large != nil {
		opts = append(opts, transform.WithLarge(large))
	}
	if t.RateLimit > 0 {
		opts = append(opts, transform.WithLimiter(rate.NewLimiter(rate.Limit(t.RateLimit), 1)))
	}
	return transform.NewRouter(provider.Small(), opts...)
}

// NewVectorWriter builds the gated vector writer on the provider's embedder.
func (e *Engine) NewVectorWriter() (*upsert.VectorWriter, error) {
	provider, err := e.Provider()
	if err != nil {
		return nil, err
	}
	opts := []upsert.VectorOption{
		upsert.WithVectorMetrics(e.metrics),
		upsert.WithVectorLogger(e.logger),
	}
	if r := e.settings.Sync.EmbedRate; r > 0 {
		opts = append(opts, upsert.WithEmbedLimiter(rate.NewLimiter(rate.Limit(r), 1)))
	}
	return upsert.NewVectorWriter(e.vectors, provider.Embedder(), opts...)
}

// NewSyncer builds the multi-store syncer. The router is attached only when
// transformation is enabled.
func (e *Engine) NewSyncer() (*upsert.Syncer, error) {
	writer, err := e.NewVectorWriter()
	if err != nil {
		return nil, err
	}
	opts := []upsert.Option{
		upsert.WithDocumentStore(e.docs),
		upsert.WithVectorWriter(writer),
		upsert.WithWorkers(e.settings.Sync.Workers),
		upsert.WithMetrics(e.metrics),
		upsert.WithReporter(e.reporter),
		upsert.WithLogger(e.logger),
	}
	if e.settings.Transform.Enabled {
		router, err := e.NewRouter()
		if err != nil {
			return nil, err
		}
		opts = append(opts, upsert.WithTransformer(router))
	}
	return upsert.NewSyncer(e.repo, opts...)
}

// ProcessReport is the outcome of one full pipeline run.
type ProcessReport struct {
	Snapshot int64
	Batch    batch.RunSummary
	Sync     upsert.Report
}

// Process snapshots the live content, ingests every pending archive and then
// converges the downstream stores on what changed. The run lock is held from
// the snapshot to the end of the sync.
func (e *Engine) Process(ctx context.Context) (ProcessReport, error) {
	var report ProcessReport

	controller, err := e.NewController()
	if err != nil {
		return report, err
	}
	syncer, err := e.NewSyncer()
	if err != nil {
		return report, err
	}

	release, err := controller.Lock()
	if err != nil {
		return report, err
	}
	defer e.release(release)

	report.Snapshot, err = syncer.BeginRun(ctx)
	if err != nil {
		return report, fmt.Errorf("snapshot: %w", err)
	}

	report.Batch, err = controller.RunLocked(ctx)
	if err != nil {
		return report, fmt.Errorf("ingest: %w", err)
	}

	report.Sync, err = syncer.Run(ctx)
	if err != nil {
		return report, fmt.Errorf("sync: %w", err)
	}
	return report, nil
}

// Sync converges the downstream stores against the existing snapshot without
// ingesting.
func (e *Engine) Sync(ctx context.Context) (upsert.Report, error) {
	controller, err := e.NewController()
	if err != nil {
		return upsert.Report{}, err
	}
	syncer, err := e.NewSyncer()
	if err != nil {
		return upsert.Report{}, err
	}
	release, err := controller.Lock()
	if err != nil {
		return upsert.Report{}, err
	}
	defer e.release(release)
	return syncer.Run(ctx)
}

func (e *Engine) release(release func() error) {
	if err := release(); err != nil {
		e.logger.Warn("failed to release run lock", "err", err)
	}
}

// Reembed rewrites every vector point with the current embedding model.
func (e *Engine) Reembed(ctx context.Context) error {
	provider, err := e.Provider()
	if err != nil {
		return err
	}
	writer, err := e.NewVectorWriter()
	if err != nil {
		return err
	}
	r := e.settings.Reembed
	reembedder, err := reembed.NewReembedder(e.repo, provider.Embedder(), writer, &reembed.Config{
		BatchSize:      r.BatchSize,
		Workers:        r.Workers,
		ReportInterval: r.BatchSize,
		MaxRetries:     r.MaxRetries,
		RetryDelay:     r.RetryDelay,
	}, e.progress, reembed.WithMetrics(e.metrics), reembed.WithLogger(e.logger))
	if err != nil {
		return err
	}
	return reembedder.Run(ctx)
}

// CleanTitles fills in the display title of every law that lacks one.
func (e *Engine) CleanTitles(ctx context.Context) (upsert.TitleReport, error) {
	provider, err := e.Provider()
	if err != nil {
		return upsert.TitleReport{}, err
	}
	t := e.settings.Titles
	var cleanerOpts []transform.TitleOption
	cleanerOpts = append(cleanerOpts, transform.WithTitleLogger(e.logger))
	if t.BatchSize > 0 {
		cleanerOpts = append(cleanerOpts, transform.WithBatchSize(t.BatchSize))
	}
	cleaner, err := transform.NewTitleCleaner(provider.Small(), cleanerOpts...)
	if err != nil {
		return upsert.TitleReport{}, err
	}

	opts := []upsert.TitleSyncOption{
		upsert.WithTitleDocuments(e.docs),
		upsert.WithTitleSyncLogger(e.logger),
	}
	if t.Workers > 0 {
		opts = append(opts, upsert.WithTitleWorkers(t.Workers))
	}
	if t.BatchSize > 0 {
		opts = append(opts, upsert.WithTitleBatchSize(t.BatchSize))
	}
	if t.Limit > 0 {
		opts = append(opts, upsert.WithTitleLimit(t.Limit))
	}
	ts, err := upsert.NewTitleSync(e.repo, cleaner, opts...)
	if err != nil {
		return upsert.TitleReport{}, err
	}
	return ts.Run(ctx)
}

// Status returns the saved batch checkpoint.
func (e *Engine) Status() (batch.BatchCheckpoint, error) {
	controller, err := e.NewController()
	if err != nil {
		return batch.BatchCheckpoint{}, err
	}
	return controller.Status()
}

// Reset clears the batch checkpoint.
func (e *Engine) Reset() error {
	controller, err := e.NewController()
	if err != nil {
		return err
	}
	return controller.Reset()
}

// Purge deletes objects under the configured prefix ending in suffix.
func (e *Engine) Purge(ctx context.Context, suffix string) (int, error) {
	controller, err := e.NewController()
	if err != nil {
		return 0, err
	}
	return controller.Purge(ctx, suffix)
}
