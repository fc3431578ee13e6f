package upsert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/metrics"
	"github.com/drorzp/justel-pipeline/storage"
	"github.com/drorzp/justel-pipeline/telemetry"
	"github.com/drorzp/justel-pipeline/transform"
)

// DefaultWorkers is the pool size of each sync stage.
const DefaultWorkers = 8

// Transformer repairs article markup. *transform.Router implements it.
type Transformer interface {
	Transform(ctx context.Context, req transform.Request) transform.Result
}

// Syncer propagates changed content records to the downstream stores.
type Syncer struct {
	repo        storage.ContentRepository
	docs        storage.DocumentStore
	vectors     *VectorWriter
	transformer Transformer
	workers     int

	metrics  *metrics.PipelineMetrics
	reporter *telemetry.Reporter
	logger   *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer) error

// WithDocumentStore enables document-store replacement.
func WithDocumentStore(docs storage.DocumentStore) Option {
	return func(s *Syncer) error {
		s.docs = docs
		return nil
	}
}

// WithVectorWriter enables vector smartUpsert.
func WithVectorWriter(w *VectorWriter) Option {
	return func(s *Syncer) error {
		s.vectors = w
		return nil
	}
}

// WithTransformer routes changed records with structural markers through t.
// Without a transformer records are propagated as ingested.
func WithTransformer(t Transformer) Option {
	return func(s *Syncer) error {
		s.transformer = t
		return nil
	}
}

// WithWorkers sets the pool size of each stage.
func WithWorkers(n int) Option {
	return func(s *Syncer) error {
		if n <= 0 {
			return ErrInvalidWorkers
		}
		s.workers = n
		return nil
	}
}

// WithMetrics records store writes and stage durations.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(s *Syncer) error {
		s.metrics = m
		return nil
	}
}

// WithReporter sends store failures to Sentry.
func WithReporter(r *telemetry.Reporter) Option {
	return func(s *Syncer) error {
		s.reporter = r
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// NewSyncer creates a syncer over repo.
func NewSyncer(repo storage.ContentRepository, opts ...Option) (*Syncer, error) {
	if repo == nil {
		return nil, ErrContentRepositoryRequired
	}
	s := &Syncer{repo: repo, workers: DefaultWorkers, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "upsert")
	return s, nil
}

// BeginRun replaces the snapshot with the current content. It must run
// before ingestion starts so that Run sees what the run changed. Records
// still pending from an unfinished sync keep their previous snapshot row.
func (s *Syncer) BeginRun(ctx context.Context) (int64, error) {
	n, err := s.repo.ReplaceSnapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("replace snapshot: %w", err)
	}
	s.logger.Info("snapshot taken", "records", n)
	return n, nil
}

// ChangeSet diffs the current content against the snapshot.
func (s *Syncer) ChangeSet(ctx context.Context) (core.ChangeSet, error) {
	_, changes, err := s.diff(ctx)
	return changes, err
}

func (s *Syncer) diff(ctx context.Context) ([]core.HashEntry, core.ChangeSet, error) {
	current, err := s.repo.ContentHashes(ctx)
	if err != nil {
		return nil, core.ChangeSet{}, fmt.Errorf("read content hashes: %w", err)
	}
	snapshots, err := s.repo.SnapshotHashes(ctx)
	if err != nil {
		return nil, core.ChangeSet{}, fmt.Errorf("read snapshot hashes: %w", err)
	}
	return current, core.BuildChangeSet(current, snapshots), nil
}

// Run converges every store on the change set. Records that reach every
// store leave the pending set; the rest are picked up again next run.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	b := newReportBuilder()

	current, changes, err := s.diff(ctx)
	if err != nil {
		return b.build(start), err
	}
	b.report.New = changes.Count(core.New)
	b.report.Changed = changes.Count(core.Changed)
	b.report.Pending = changes.Count(core.Pending)
	s.logger.Info("sync started",
		"new", b.report.New,
		"changed", b.report.Changed,
		"pending", b.report.Pending,
		"unchanged", len(current)-changes.Len())

	if changes.Len() == 0 {
		return b.build(start), nil
	}

	// Stage 1: settle the relational text.
	records := make([]*core.ContentRecord, changes.Len())
	indexed := make([]int, changes.Len())
	for i := range indexed {
		indexed[i] = i
	}
	err = forEach(ctx, s.workers, indexed, func(ctx context.Context, i int) {
		records[i] = s.settle(ctx, changes.Entries[i], b)
	})
	if err != nil {
		return b.build(start), err
	}

	settled := make([]*core.ContentRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			settled = append(settled, r)
		}
	}

	// Stages 2 and 3 only read the relational store.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.replaceDocuments(gctx, settled, articleCounts(current), b)
	})
	g.Go(func() error {
		return s.upsertVectors(gctx, settled, b)
	})
	err = g.Wait()
	if err == nil {
		err = s.markSynced(ctx, settled, b)
	}

	report := b.build(start)
	s.metrics.ObserveStage("sync", report.Duration.Seconds())
	s.logger.Info("sync finished",
		"restored", report.Restored,
		"transformed", report.Transformed,
		"synced", report.Synced,
		"failed", report.Failed(),
		"duration", report.Duration)
	return report, err
}

// settle restores or transforms one changed record and returns its final
// state, or nil when it could not be read.
func (s *Syncer) settle(ctx context.Context, entry core.ChangeEntry, b *reportBuilder) *core.ContentRecord {
	key := entry.Key.String()
	rec, err := s.repo.GetContentByID(ctx, entry.ID)
	if err != nil {
		s.fail(b, StoreRelational, key, fmt.Errorf("read record: %w", err))
		return nil
	}

	// The relational text of a pending record was settled by the run that
	// left it pending; only the downstream stores are behind.
	if entry.Result == core.Pending {
		b.add(StoreRelational, outcomeSkipped)
		return rec
	}

	if entry.Result == core.Changed {
		snap, err := s.repo.GetSnapshot(ctx, entry.Key)
		switch {
		case err == nil:
			if snap.SourceHash == rec.SourceHash && snap.TextHash != rec.CurrentTextHash {
				return s.restore(ctx, rec, snap, b)
			}
		case !errors.Is(err, storage.ErrNotFound):
			s.fail(b, StoreRelational, key, fmt.Errorf("read snapshot: %w", err))
			return rec
		}
	}

	if s.transformer == nil || !transform.ShouldTransform(rec.CurrentText) {
		b.add(StoreRelational, outcomeSkipped)
		return rec
	}

	result := s.transformer.Transform(ctx, transform.Request{
		DocumentNumber: rec.DocumentNumber,
		ArticleNumber:  rec.ArticleNumber,
		CurrentMarkup:  rec.CurrentText,
		RawText:        rec.RawText,
	})
	switch result.Status {
	case transform.StatusSuccess:
	case transform.StatusSkipped:
		b.add(StoreRelational, outcomeSkipped)
		return rec
	case transform.StatusFailed:
		if result.Capacity {
			// No backend can take the article; retrying next run would
			// route it the same way.
			s.record(b, StoreRelational, key, fmt.Errorf("transform %s: %v", result.Status, result.Errors))
			return rec
		}
		s.fail(b, StoreRelational, key, fmt.Errorf("transform %s: %v", result.Status, result.Errors))
		return rec
	default:
		s.fail(b, StoreRelational, key, fmt.Errorf("transform %s: %v", result.Status, result.Errors))
		return rec
	}

	updated := *rec
	updated.SetText(result.TransformedText)
	if err := s.repo.UpdateContentText(ctx, updated.ID, updated.CurrentText, updated.CurrentTextHash, updated.UpdatedAt); err != nil {
		s.fail(b, StoreRelational, key, fmt.Errorf("write transformed text: %w", err))
		return rec
	}
	b.add(StoreRelational, outcomeSucceeded)
	b.transformed()
	s.metrics.RecordStoreWrite(StoreRelational, metrics.StatusSuccess)
	s.logger.Debug("article transformed", "key", key, "model", result.ModelUsed)
	return &updated
}

func (s *Syncer) restore(ctx context.Context, rec *core.ContentRecord, snap *core.SnapshotRecord, b *reportBuilder) *core.ContentRecord {
	restored := *rec
	restored.SetText(snap.Text)
	if err := s.repo.UpdateContentText(ctx, restored.ID, restored.CurrentText, restored.CurrentTextHash, restored.UpdatedAt); err != nil {
		s.fail(b, StoreRelational, rec.Key().String(), fmt.Errorf("restore text: %w", err))
		return rec
	}
	b.add(StoreRelational, outcomeSucceeded)
	b.restored()
	s.metrics.RecordStoreWrite(StoreRelational, metrics.StatusRestored)
	s.logger.Debug("article restored from snapshot", "key", rec.Key().String())
	return &restored
}

func (s *Syncer) replaceDocuments(ctx context.Context, records []*core.ContentRecord, counts map[string]int, b *reportBuilder) error {
	if s.docs == nil {
		return nil
	}
	err := forEach(ctx, s.workers, records, func(ctx context.Context, r *core.ContentRecord) {
		if err := s.docs.ReplaceArticle(ctx, r.ArticleView()); err != nil {
			s.fail(b, StoreDocument, r.Key().String(), err)
			return
		}
		b.add(StoreDocument, outcomeSucceeded)
		s.metrics.RecordStoreWrite(StoreDocument, metrics.StatusSuccess)
	})
	if err != nil {
		return err
	}

	var laws []string
	seen := make(map[string]bool)
	for _, r := range records {
		if !seen[r.DocumentNumber] {
			seen[r.DocumentNumber] = true
			laws = append(laws, r.DocumentNumber)
		}
	}
	return forEach(ctx, s.workers, laws, func(ctx context.Context, docNumber string) {
		law, err := s.repo.GetLaw(ctx, docNumber)
		if err != nil {
			s.fail(b, StoreDocument, docNumber, fmt.Errorf("read law: %w", err))
			return
		}
		if err := s.docs.ReplaceLaw(ctx, law.View(counts[docNumber])); err != nil {
			s.fail(b, StoreDocument, docNumber, err)
			return
		}
		s.metrics.RecordStoreWrite(StoreDocument, metrics.StatusSuccess)
	})
}

func (s *Syncer) upsertVectors(ctx context.Context, records []*core.ContentRecord, b *reportBuilder) error {
	if s.vectors == nil {
		return nil
	}
	return forEach(ctx, s.workers, records, func(ctx context.Context, r *core.ContentRecord) {
		decision, err := s.vectors.SmartUpsert(ctx, InputFor(r))
		if err != nil {
			s.fail(b, StoreVector, r.Key().String(), err)
			return
		}
		if decision == DecisionSkipped {
			b.add(StoreVector, outcomeSkipped)
			return
		}
		b.add(StoreVector, outcomeSucceeded)
		s.metrics.RecordStoreWrite(StoreVector, metrics.StatusSuccess)
	})
}

// markSynced clears the pending flag of every record that reached all
// stores in this run.
func (s *Syncer) markSynced(ctx context.Context, records []*core.ContentRecord, b *reportBuilder) error {
	ids := make([]uint64, 0, len(records))
	for _, r := range records {
		if b.isBlocked(r.Key().String(), r.DocumentNumber) {
			continue
		}
		ids = append(ids, r.ID)
	}
	if err := s.repo.MarkSynced(ctx, ids); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	b.mu.Lock()
	b.report.Synced = len(ids)
	b.mu.Unlock()
	return nil
}

func (s *Syncer) fail(b *reportBuilder, store, key string, err error) {
	b.fail(store, key, err)
	s.metrics.RecordStoreWrite(store, metrics.StatusFailed)
	s.reporter.CaptureError(err, "upsert", map[string]string{"store": store, "key": key})
	s.logger.Warn("store write failed", "store", store, "key", key, "err", err)
}

func (s *Syncer) record(b *reportBuilder, store, key string, err error) {
	b.record(store, key, err)
	s.metrics.RecordStoreWrite(store, metrics.StatusFailed)
	s.logger.Warn("store write failed", "store", store, "key", key, "err", err)
}

func articleCounts(entries []core.HashEntry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Key.DocumentNumber]++
	}
	return counts
}
