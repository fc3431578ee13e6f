package upsert

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/drorzp/justel-pipeline/ai/mock"
	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
)

func TestNewVectorWriter(t *testing.T) {
	_, err := NewVectorWriter(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	st := newStores(t)
	_, err = NewVectorWriter(st.vectors, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestVectorWriter_SmartUpsert(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	embedder := &mock.MockEmbedder{Dimension: 16}
	w, err := NewVectorWriter(st.vectors, embedder, WithEmbedLimiter(rate.NewLimiter(rate.Inf, 1)))
	require.NoError(t, err)

	in := VectorInput{
		ID:        42,
		Key:       core.RecordKey{DocumentNumber: "2003022532", ArticleNumber: "3"},
		Text:      "Le Roi fixe la date.",
		TextHash:  core.Hash("<p>Le Roi fixe la date.</p>"),
		UpdatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	t.Run("missing point is embedded", func(t *testing.T) {
		d, err := w.SmartUpsert(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, DecisionEmbedded, d)
		assert.Equal(t, 1, embedder.CallCount())

		p, err := st.vectors.Get(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, in.TextHash, p.Payload.TextHash)
		assert.Equal(t, "3", p.Payload.ArticleNumber)

		var norm float64
		for _, v := range p.Vector {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	})

	t.Run("same hash is skipped", func(t *testing.T) {
		d, err := w.SmartUpsert(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, DecisionSkipped, d)
		assert.Equal(t, 1, embedder.CallCount())
	})

	t.Run("changed hash is embedded again", func(t *testing.T) {
		changed := in
		changed.TextHash = core.Hash("<p>Le Roi fixe la date d'entrée.</p>")
		d, err := w.SmartUpsert(ctx, changed)
		require.NoError(t, err)
		assert.Equal(t, DecisionEmbedded, d)
		assert.Equal(t, 2, embedder.CallCount())
	})

	t.Run("dimension change is rejected by the store", func(t *testing.T) {
		other, err := NewVectorWriter(st.vectors, &mock.MockEmbedder{Dimension: 8})
		require.NoError(t, err)
		_, err = other.SmartUpsert(ctx, VectorInput{ID: 7, TextHash: "x", Text: "y"})
		assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	})
}

func TestVectorWriter_EmptyEmbedding(t *testing.T) {
	st := newStores(t)
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(context.Context, string) ([]float32, error) {
		return nil, nil
	})
	w, err := NewVectorWriter(st.vectors, embedder)
	require.NoError(t, err)

	_, err = w.SmartUpsert(context.Background(), VectorInput{ID: 1, TextHash: "h", Text: "t"})
	assert.ErrorIs(t, err, ErrEmptyEmbedding)
}

func TestInputFor(t *testing.T) {
	rec := &core.ContentRecord{ID: 9, DocumentNumber: "d", ArticleNumber: "a", RawText: "plain"}
	rec.SetText("<p>plain</p>")

	in := InputFor(rec)
	assert.Equal(t, "plain", in.Text)
	assert.Equal(t, rec.CurrentTextHash, in.TextHash)

	rec.RawText = ""
	assert.Equal(t, "<p>plain</p>", InputFor(rec).Text)
}
