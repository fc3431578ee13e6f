package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/drorzp/justel-pipeline/ai"
	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/retry"
	"github.com/drorzp/justel-pipeline/upsert"
)

// BatchProcessor embeds a batch of content records and overwrites their
// vector points.
type BatchProcessor struct {
	embedder       ai.Embedder
	writer         *upsert.VectorWriter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for the embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(embedder ai.Embedder, writer *upsert.VectorWriter, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		embedder:       embedder,
		writer:         writer,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds records in one call and writes every point, whatever hash
// the vector store currently holds.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.ContentRecord) error {
	if len(records) == 0 {
		return nil
	}

	inputs := make([]upsert.VectorInput, len(records))
	texts := make([]string, len(records))
	for i, record := range records {
		inputs[i] = upsert.InputFor(record)
		texts[i] = inputs[i].Text
	}

	var embeddings [][]float32
	err := retry.WithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(records) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(records), len(embeddings))
	}

	for i := range inputs {
		if len(embeddings[i]) == 0 {
			return fmt.Errorf("record %d: %w", inputs[i].ID, upsert.ErrEmptyEmbedding)
		}
		if err := bp.writer.Write(ctx, inputs[i], embeddings[i]); err != nil {
			return err
		}
	}
	return nil
}
