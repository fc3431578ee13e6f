package upsert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/drorzp/justel-pipeline/ai"
	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/metrics"
	"github.com/drorzp/justel-pipeline/storage"
)

// Decision is what SmartUpsert did with one record.
type Decision int

const (
	// DecisionSkipped means the stored hash matched and nothing was embedded.
	DecisionSkipped Decision = iota
	// DecisionEmbedded means the text was embedded and the point written.
	DecisionEmbedded
)

func (d Decision) String() string {
	if d == DecisionEmbedded {
		return "embedded"
	}
	return "skipped"
}

// VectorInput is one record to converge in the vector store.
type VectorInput struct {
	ID        uint64
	Key       core.RecordKey
	Text      string // text to embed, stored in the payload
	TextHash  string // hash the gate compares against
	UpdatedAt time.Time
}

// InputFor builds the vector input of a content record. The plain-text
// projection is embedded; the gate uses the current text hash so any
// change to the current text re-embeds.
func InputFor(r *core.ContentRecord) VectorInput {
	text := r.RawText
	if text == "" {
		text = r.CurrentText
	}
	return VectorInput{
		ID:        r.ID,
		Key:       r.Key(),
		Text:      text,
		TextHash:  r.CurrentTextHash,
		UpdatedAt: r.UpdatedAt,
	}
}

// VectorWriter embeds records and writes them to a VectorStore.
// It is safe for concurrent use.
type VectorWriter struct {
	store    storage.VectorStore
	embedder ai.Embedder
	limiter  *rate.Limiter
	metrics  *metrics.PipelineMetrics
	logger   *slog.Logger

	mu      sync.Mutex
	ensured bool
}

// VectorOption configures a VectorWriter.
type VectorOption func(*VectorWriter)

// WithEmbedLimiter bounds the rate of embedding calls.
func WithEmbedLimiter(l *rate.Limiter) VectorOption {
	return func(w *VectorWriter) {
		w.limiter = l
	}
}

// WithVectorMetrics records embedding decisions.
func WithVectorMetrics(m *metrics.PipelineMetrics) VectorOption {
	return func(w *VectorWriter) {
		w.metrics = m
	}
}

// WithVectorLogger sets a custom logger.
func WithVectorLogger(logger *slog.Logger) VectorOption {
	return func(w *VectorWriter) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewVectorWriter creates a writer.
func NewVectorWriter(store storage.VectorStore, embedder ai.Embedder, opts ...VectorOption) (*VectorWriter, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	w := &VectorWriter{store: store, embedder: embedder, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "vector_writer")
	return w, nil
}

// SmartUpsert embeds and writes in only when the stored point's text hash
// differs from in.TextHash or the point is missing.
func (w *VectorWriter) SmartUpsert(ctx context.Context, in VectorInput) (Decision, error) {
	stored, found, err := w.store.StoredHash(ctx, in.ID)
	if err != nil {
		w.metrics.RecordEmbedding(metrics.StatusFailed)
		return DecisionSkipped, fmt.Errorf("read stored hash: %w", err)
	}
	if found && stored == in.TextHash {
		w.metrics.RecordEmbedding(metrics.StatusSkipped)
		return DecisionSkipped, nil
	}

	vector, err := w.Embed(ctx, in.Text)
	if err != nil {
		w.metrics.RecordEmbedding(metrics.StatusFailed)
		return DecisionSkipped, err
	}
	if err := w.Write(ctx, in, vector); err != nil {
		w.metrics.RecordEmbedding(metrics.StatusFailed)
		return DecisionSkipped, err
	}
	w.metrics.RecordEmbedding(metrics.StatusSuccess)
	return DecisionEmbedded, nil
}

// Embed embeds one text, waiting on the rate limiter first.
func (w *VectorWriter) Embed(ctx context.Context, text string) ([]float32, error) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	vector, err := w.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vector, nil
}

// Write normalizes vector and upserts the point unconditionally.
func (w *VectorWriter) Write(ctx context.Context, in VectorInput, vector []float32) error {
	if err := w.ensureCollection(ctx, len(vector)); err != nil {
		return err
	}
	point := &core.VectorPoint{
		ID:     in.ID,
		Vector: core.NormalizeVector(vector),
		Payload: core.VectorPayload{
			Text:           in.Text,
			TextHash:       in.TextHash,
			DocumentNumber: in.Key.DocumentNumber,
			ArticleNumber:  in.Key.ArticleNumber,
			UpdatedAt:      in.UpdatedAt,
		},
	}
	if err := w.store.Upsert(ctx, point); err != nil {
		return fmt.Errorf("upsert point %d: %w", in.ID, err)
	}
	return nil
}

// ensureCollection creates the collection once the embedding dimension is known.
func (w *VectorWriter) ensureCollection(ctx context.Context, dimension int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ensured {
		return nil
	}
	if err := w.store.EnsureCollection(ctx, dimension); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	w.ensured = true
	w.logger.Debug("vector collection ready", "dimension", dimension)
	return nil
}
