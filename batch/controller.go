package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/drorzp/justel-pipeline/metrics"
	"github.com/drorzp/justel-pipeline/progress"
	"github.com/drorzp/justel-pipeline/telemetry"
)

const (
	// DefaultArchiveExtension selects which objects are archives.
	DefaultArchiveExtension = ".zip"

	// DefaultWorkers is the number of records processed concurrently.
	DefaultWorkers = 4

	poolReleaseTimeout = 10 * time.Second
)

// RecordFailure is one record that could not be processed.
// Path is relative to the archive root.
type RecordFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ArchiveSummary is the outcome of processing one archive.
type ArchiveSummary struct {
	Key        string
	Total      int
	Successful int
	Failed     int
	Failures   []RecordFailure
	Duration   time.Duration
}

// RunSummary is the outcome of one Run.
type RunSummary struct {
	RunID            string
	Listed           int
	Selected         int
	Completed        int
	Failed           int
	Abandoned        int
	Records          int
	RecordsSucceeded int
	RecordsFailed    int
	Duration         time.Duration
	Checkpoint       BatchCheckpoint
}

// Controller processes archives from an ObjectStore in key order and keeps
// a checkpoint so that runs can resume.
type Controller struct {
	store       ObjectStore
	processor   RecordProcessor
	checkpoints CheckpointStore

	prefix      string
	archiveExt  string
	recordExt   string
	workDir     string
	errorDir    string
	workers     int
	maxFailures int
	maxAttempts int
	maxRecord   int64

	metrics  *metrics.PipelineMetrics
	reporter *telemetry.Reporter
	progress io.Writer
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller) error

// WithPrefix restricts listing to keys under prefix.
func WithPrefix(prefix string) Option {
	return func(c *Controller) error {
		c.prefix = prefix
		return nil
	}
}

// WithArchiveExtension sets the extension that marks an object as an
// archive. Default is ".zip".
func WithArchiveExtension(ext string) Option {
	return func(c *Controller) error {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.archiveExt = ext
		return nil
	}
}

// WithWorkers sets how many records of one archive are processed concurrently.
func WithWorkers(n int) Option {
	return func(c *Controller) error {
		if n <= 0 {
			return ErrInvalidWorkers
		}
		c.workers = n
		return nil
	}
}

// WithWorkDir sets where archives are downloaded and extracted.
// Default is the system temp directory.
func WithWorkDir(dir string) Option {
	return func(c *Controller) error {
		c.workDir = dir
		return nil
	}
}

// WithErrorDir sets where failed records and their error summaries are kept.
func WithErrorDir(dir string) Option {
	return func(c *Controller) error {
		c.errorDir = dir
		return nil
	}
}

// WithMaxFailures bounds the checkpoint's failure log.
func WithMaxFailures(n int) Option {
	return func(c *Controller) error {
		c.maxFailures = n
		return nil
	}
}

// WithMaxArchiveAttempts sets how many times an archive that fails as a
// whole is attempted before it is abandoned. Zero retries forever.
// Default is 3.
func WithMaxArchiveAttempts(n int) Option {
	return func(c *Controller) error {
		if n < 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = n
		return nil
	}
}

// WithMaxRecordSize caps the uncompressed size of one archive entry.
// Default is DefaultMaxRecordSize.
func WithMaxRecordSize(n int64) Option {
	return func(c *Controller) error {
		if n <= 0 {
			return ErrInvalidMaxRecordSize
		}
		c.maxRecord = n
		return nil
	}
}

// WithMetrics records archive and record outcomes.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(c *Controller) error {
		c.metrics = m
		return nil
	}
}

// WithReporter sends archive failures to Sentry.
func WithReporter(r *telemetry.Reporter) Option {
	return func(c *Controller) error {
		c.reporter = r
		return nil
	}
}

// WithProgress writes a progress line per archive to w.
func WithProgress(w io.Writer) Option {
	return func(c *Controller) error {
		if w != nil {
			c.progress = w
		}
		return nil
	}
}

// WithClock overrides the time source used for checkpoint timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// NewController creates a controller.
func NewController(store ObjectStore, processor RecordProcessor, checkpoints CheckpointStore, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, ErrObjectStoreRequired
	}
	if processor == nil {
		return nil, ErrProcessorRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointStoreRequired
	}

	c := &Controller{
		store:       store,
		processor:   processor,
		checkpoints: checkpoints,
		archiveExt:  DefaultArchiveExtension,
		recordExt:   DefaultRecordExtension,
		errorDir:    "errors",
		workers:     DefaultWorkers,
		maxFailures: DefaultMaxFailures,
		maxAttempts: DefaultMaxArchiveAttempts,
		maxRecord:   DefaultMaxRecordSize,
		progress:    io.Discard,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "batch")
	return c, nil
}

// ListArchives returns the archive keys under the configured prefix,
// sorted lexicographically.
func (c *Controller) ListArchives(ctx context.Context) ([]string, error) {
	objects, err := c.store.List(ctx, c.prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(strings.ToLower(obj.Key), strings.ToLower(c.archiveExt)) {
			keys = append(keys, obj.Key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Lock takes the run lock on the checkpoint. Callers that do work around
// an ingest, like snapshotting before it, hold the lock for the whole
// sequence and call RunLocked.
func (c *Controller) Lock() (release func() error, err error) {
	return c.checkpoints.Lock()
}

// Run processes every archive past the checkpoint, plus archives that
// failed as a whole in an earlier run. Only a failure to list archives,
// to read or save the checkpoint, or a canceled context stop the run.
func (c *Controller) Run(ctx context.Context) (RunSummary, error) {
	release, err := c.Lock()
	if err != nil {
		return RunSummary{}, err
	}
	defer func() {
		if err := release(); err != nil {
			c.logger.Warn("failed to release run lock", "err", err)
		}
	}()
	return c.RunLocked(ctx)
}

// RunLocked is Run for a caller that already holds the lock from Lock.
func (c *Controller) RunLocked(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{RunID: uuid.NewString()}
	logger := c.logger.With("run_id", summary.RunID)

	state, err := c.checkpoints.Load()
	if err != nil {
		return summary, err
	}
	state = ApplyBounded(state, RunStarted{At: c.now()}, c.maxFailures)
	if err := c.checkpoints.Save(state); err != nil {
		return summary, fmt.Errorf("save checkpoint: %w", err)
	}

	archives, err := c.ListArchives(ctx)
	if err != nil {
		return summary, fmt.Errorf("list archives: %w", err)
	}
	selected := selectArchives(archives, state)
	summary.Listed = len(archives)
	summary.Selected = len(selected)
	for range len(archives) - len(selected) {
		c.metrics.RecordArchive(metrics.StatusSkipped)
	}
	logger.Info("batch run started",
		"listed", summary.Listed,
		"selected", summary.Selected,
		"last_processed", state.LastProcessedFile)

	tracker := progress.NewTracker(c.progress, len(selected), 1).WithUnit("archives")
	tracker.Start()
	defer tracker.Finish()

	for _, key := range selected {
		if err := ctx.Err(); err != nil {
			return c.finish(summary, state, start), err
		}

		result, cleanup, err := c.processArchive(ctx, key)
		if err != nil && ctx.Err() != nil {
			cleanup()
			return c.finish(summary, state, start), ctx.Err()
		}

		if err != nil {
			state = ApplyBounded(state, ArchiveFailed{
				RunID:       summary.RunID,
				Key:         key,
				Reason:      err.Error(),
				MaxAttempts: c.maxAttempts,
				At:          c.now(),
			}, c.maxFailures)
			summary.Failed++
			c.metrics.RecordArchive(metrics.StatusFailed)
			c.reporter.CaptureError(err, "batch", map[string]string{"archive": key, "run_id": summary.RunID})
			if state.IsAbandoned(key) {
				summary.Abandoned++
				logger.Error("archive abandoned", "archive", key, "attempts", c.maxAttempts, "err", err)
			} else {
				logger.Error("archive failed", "archive", key, "attempts", state.RetryAttempts[key], "err", err)
			}
		} else {
			state = ApplyBounded(state, ArchiveCompleted{
				RunID:   summary.RunID,
				Key:     key,
				Summary: result,
				At:      c.now(),
			}, c.maxFailures)
			summary.Completed++
			summary.Records += result.Total
			summary.RecordsSucceeded += result.Successful
			summary.RecordsFailed += result.Failed
			c.metrics.RecordArchive(metrics.StatusSuccess)
			c.metrics.RecordRecords(metrics.StatusFailed, result.Failed)
			logger.Info("archive processed",
				"archive", key,
				"records", result.Total,
				"failed", result.Failed,
				"duration", result.Duration)
		}

		// The checkpoint must be durable before the scratch directory goes.
		saveErr := c.checkpoints.Save(state)
		cleanup()
		if saveErr != nil {
			return c.finish(summary, state, start), fmt.Errorf("save checkpoint: %w", saveErr)
		}
		tracker.Increment(1)
	}

	summary = c.finish(summary, state, start)
	c.metrics.ObserveStage("batch", summary.Duration.Seconds())
	logger.Info("batch run finished",
		"completed", summary.Completed,
		"failed", summary.Failed,
		"records", summary.Records,
		"records_failed", summary.RecordsFailed,
		"duration", summary.Duration)
	return summary, nil
}

func (c *Controller) finish(summary RunSummary, state BatchCheckpoint, start time.Time) RunSummary {
	summary.Checkpoint = state
	summary.Duration = time.Since(start)
	return summary
}

func selectArchives(keys []string, state BatchCheckpoint) []string {
	var selected []string
	for _, key := range keys {
		if state.IsAbandoned(key) {
			continue
		}
		if ShouldProcess(key, state) || state.NeedsRetry(key) {
			selected = append(selected, key)
		}
	}
	return selected
}

// ProcessArchive downloads, extracts and processes one archive, then
// removes its scratch directory. It does not touch the checkpoint.
func (c *Controller) ProcessArchive(ctx context.Context, key string) (ArchiveSummary, error) {
	summary, cleanup, err := c.processArchive(ctx, key)
	cleanup()
	return summary, err
}

// processArchive leaves the scratch directory in place; the caller runs
// the returned cleanup once the checkpoint is saved.
func (c *Controller) processArchive(ctx context.Context, key string) (ArchiveSummary, func(), error) {
	start := time.Now()
	summary := ArchiveSummary{Key: key}
	noop := func() {}

	if c.workDir != "" {
		if err := os.MkdirAll(c.workDir, 0o755); err != nil {
			return summary, noop, fmt.Errorf("create work directory: %w", err)
		}
	}
	scratch, err := os.MkdirTemp(c.workDir, "archive-*")
	if err != nil {
		return summary, noop, fmt.Errorf("create scratch directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(scratch); err != nil {
			c.logger.Warn("failed to remove scratch directory", "dir", scratch, "err", err)
		}
	}

	archivePath := filepath.Join(scratch, path.Base(key))
	if err := c.store.Download(ctx, key, archivePath); err != nil {
		return summary, cleanup, fmt.Errorf("download %s: %w", key, err)
	}

	extractDir := filepath.Join(scratch, "records")
	records, err := extractArchive(archivePath, extractDir, c.recordExt, c.maxRecord)
	if err != nil {
		return summary, cleanup, fmt.Errorf("extract %s: %w", key, err)
	}
	summary.Total = len(records)

	failed, err := c.processRecords(ctx, records)
	if err != nil {
		return summary, cleanup, err
	}

	if len(failed) > 0 {
		summary.Failures = c.quarantine(key, extractDir, failed)
	}
	summary.Failed = len(failed)
	summary.Successful = summary.Total - summary.Failed
	summary.Duration = time.Since(start)
	return summary, cleanup, nil
}

type failedRecord struct {
	path string
	err  error
}

// processRecords runs the processor over records on a bounded pool.
// Record failures are collected, never returned.
func (c *Controller) processRecords(ctx context.Context, records []string) ([]failedRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(min(c.workers, len(records)))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer func() {
		if err := pool.ReleaseTimeout(poolReleaseTimeout); err != nil {
			c.logger.Warn("worker pool did not shut down cleanly", "err", err)
		}
	}()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed []failedRecord
	)
	var submitErr error
	for _, record := range records {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if err := c.processRecord(ctx, record); err != nil {
				c.logger.Warn("record failed", "record", filepath.Base(record), "err", err)
				mu.Lock()
				failed = append(failed, failedRecord{path: record, err: err})
				mu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			submitErr = fmt.Errorf("submit record: %w", err)
			break
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if submitErr != nil {
		return nil, submitErr
	}
	slices.SortFunc(failed, func(a, b failedRecord) int { return strings.Compare(a.path, b.path) })
	return failed, nil
}

func (c *Controller) processRecord(ctx context.Context, record string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("record processor panicked: %v", r)
		}
	}()
	return c.processor.Process(ctx, record)
}

// Status returns the saved checkpoint.
func (c *Controller) Status() (BatchCheckpoint, error) {
	return c.checkpoints.Load()
}

// Reset clears the checkpoint so the next run starts from the first archive.
func (c *Controller) Reset() error {
	release, err := c.checkpoints.Lock()
	if err != nil {
		return err
	}
	defer release()

	state, err := c.checkpoints.Load()
	if err != nil {
		return err
	}
	c.logger.Info("resetting checkpoint", "last_processed", state.LastProcessedFile)
	return c.checkpoints.Save(ApplyBounded(state, Reset{At: c.now()}, c.maxFailures))
}

// Purge deletes objects under the configured prefix whose key ends with suffix.
func (c *Controller) Purge(ctx context.Context, suffix string) (int, error) {
	n, err := c.store.DeleteWithSuffix(ctx, c.prefix, suffix)
	if err != nil {
		return n, err
	}
	c.logger.Info("purged objects", "prefix", c.prefix, "suffix", suffix, "deleted", n)
	return n, nil
}
