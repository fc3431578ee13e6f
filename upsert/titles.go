package upsert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
	"github.com/drorzp/justel-pipeline/transform"
)

// TitleCleaner turns raw law titles into display titles.
// *transform.TitleCleaner implements it.
type TitleCleaner interface {
	Clean(ctx context.Context, titles []string) ([]string, error)
}

// TitleReport summarizes a title sync.
type TitleReport struct {
	Processed int
	Cleaned   int
	Failed    int
}

// TitleSync fills in missing clean titles.
type TitleSync struct {
	repo      storage.ContentRepository
	docs      storage.DocumentStore
	cleaner   TitleCleaner
	batchSize int
	workers   int
	limit     int
	logger    *slog.Logger
}

// TitleSyncOption configures a TitleSync.
type TitleSyncOption func(*TitleSync)

// WithTitleDocuments also updates the clean title of law documents.
func WithTitleDocuments(docs storage.DocumentStore) TitleSyncOption {
	return func(t *TitleSync) {
		t.docs = docs
	}
}

// WithTitleWorkers sets how many title batches are cleaned concurrently.
func WithTitleWorkers(n int) TitleSyncOption {
	return func(t *TitleSync) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithTitleBatchSize sets how many titles go into one prompt.
func WithTitleBatchSize(n int) TitleSyncOption {
	return func(t *TitleSync) {
		if n > 0 {
			t.batchSize = n
		}
	}
}

// WithTitleLimit stops after n laws. Zero means no limit.
func WithTitleLimit(n int) TitleSyncOption {
	return func(t *TitleSync) {
		t.limit = n
	}
}

// WithTitleSyncLogger sets a custom logger.
func WithTitleSyncLogger(logger *slog.Logger) TitleSyncOption {
	return func(t *TitleSync) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTitleSync creates a title sync.
func NewTitleSync(repo storage.ContentRepository, cleaner TitleCleaner, opts ...TitleSyncOption) (*TitleSync, error) {
	if repo == nil {
		return nil, ErrContentRepositoryRequired
	}
	if cleaner == nil {
		return nil, ErrTitleCleanerRequired
	}
	t := &TitleSync{
		repo:      repo,
		cleaner:   cleaner,
		batchSize: transform.DefaultTitleBatchSize,
		workers:   4,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "title_sync")
	return t, nil
}

// Run cleans laws without a clean title until none are left, the limit is
// reached, or a round makes no progress.
func (t *TitleSync) Run(ctx context.Context) (TitleReport, error) {
	var report TitleReport
	attempted := make(map[string]bool)

	for t.limit == 0 || report.Processed < t.limit {
		fetch := t.batchSize * t.workers
		if t.limit > 0 {
			fetch = min(fetch, t.limit-report.Processed)
		}
		laws, err := t.repo.LawsWithoutCleanTitle(ctx, fetch+len(attempted))
		if err != nil {
			return report, fmt.Errorf("list laws without clean title: %w", err)
		}

		var pending []*core.LawDocument
		for _, law := range laws {
			if !attempted[law.DocumentNumber] && len(pending) < fetch {
				pending = append(pending, law)
			}
		}
		if len(pending) == 0 {
			break
		}
		for _, law := range pending {
			attempted[law.DocumentNumber] = true
		}

		round := t.cleanRound(ctx, pending)
		report.Processed += round.Processed
		report.Cleaned += round.Cleaned
		report.Failed += round.Failed
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	t.logger.Info("title sync finished", "processed", report.Processed, "cleaned", report.Cleaned, "failed", report.Failed)
	return report, nil
}

func (t *TitleSync) cleanRound(ctx context.Context, laws []*core.LawDocument) TitleReport {
	var batches [][]*core.LawDocument
	for start := 0; start < len(laws); start += t.batchSize {
		batches = append(batches, laws[start:min(start+t.batchSize, len(laws))])
	}

	results := make([]TitleReport, len(batches))
	indexes := make([]int, len(batches))
	for i := range indexes {
		indexes[i] = i
	}
	_ = forEach(ctx, t.workers, indexes, func(ctx context.Context, i int) {
		results[i] = t.cleanBatch(ctx, batches[i])
	})

	var total TitleReport
	for _, r := range results {
		total.Processed += r.Processed
		total.Cleaned += r.Cleaned
		total.Failed += r.Failed
	}
	return total
}

func (t *TitleSync) cleanBatch(ctx context.Context, laws []*core.LawDocument) TitleReport {
	report := TitleReport{Processed: len(laws)}
	raw := make([]string, len(laws))
	for i, law := range laws {
		raw[i] = law.Title
	}

	cleaned, err := t.cleaner.Clean(ctx, raw)
	if err != nil || len(cleaned) != len(laws) {
		report.Failed = len(laws)
		t.logger.Warn("title batch failed", "size", len(laws), "err", err)
		return report
	}

	for i, law := range laws {
		title := cleaned[i]
		if title == "" {
			report.Failed++
			continue
		}
		if err := t.repo.SetCleanTitle(ctx, law.DocumentNumber, title); err != nil {
			report.Failed++
			t.logger.Warn("failed to store clean title", "document", law.DocumentNumber, "err", err)
			continue
		}
		t.updateDocument(ctx, law.DocumentNumber, title)
		report.Cleaned++
	}
	return report
}

func (t *TitleSync) updateDocument(ctx context.Context, docNumber, title string) {
	if t.docs == nil {
		return
	}
	view, err := t.docs.GetLaw(ctx, docNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err == nil {
		view.CleanTitle = title
		err = t.docs.ReplaceLaw(ctx, view)
	}
	if err != nil {
		t.logger.Warn("failed to update law document title", "document", docNumber, "err", err)
	}
}
