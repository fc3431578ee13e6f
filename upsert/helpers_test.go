package upsert

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
	"github.com/drorzp/justel-pipeline/storage/badger"
	"github.com/drorzp/justel-pipeline/storage/sqlstore"
	"github.com/drorzp/justel-pipeline/transform"
)

const (
	plainText     = `<article class="legal-article"><div class="article-text">Le Roi fixe la date d'entrée en vigueur.</div></article>`
	annotatedText = `<article class="legal-article"><div class="article-text">§ 1er. Les mots [1 ou par courrier]1 sont insérés.</div></article>`
	repairedText  = `<article class="legal-article"><section class="paragraph">§ 1er. Les mots <span class="footnote-ref" data-footnote-id="1">ou par courrier</span> sont insérés.</section></article>`
)

type stores struct {
	repo    storage.ContentRepository
	docs    *badger.DocumentStore
	vectors *badger.VectorStore
}

func newStores(t *testing.T) *stores {
	t.Helper()
	repo, err := sqlstore.Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	docs, vectors, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	return &stores{repo: repo, docs: docs, vectors: vectors}
}

// seed writes a law and one article the way ingestion does.
func seed(t *testing.T, repo storage.ContentRepository, doc, article, markup string) *core.ContentRecord {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.UpsertLaw(ctx, &core.LawDocument{DocumentNumber: doc, Title: "Loi " + doc, Language: "fr"}))

	rec := &core.ContentRecord{
		DocumentNumber: doc,
		ArticleNumber:  article,
		RawText:        "Article " + article + " raw text",
		SourceHash:     core.Hash(markup),
	}
	rec.SetText(markup)
	out, err := repo.UpsertContent(ctx, rec)
	require.NoError(t, err)
	return out
}

// markSynced stands in for an earlier run that converged every store.
func markSynced(t *testing.T, repo storage.ContentRepository, records ...*core.ContentRecord) {
	t.Helper()
	ids := make([]uint64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	require.NoError(t, repo.MarkSynced(context.Background(), ids))
}

// flakyVectors fails every Upsert while failing is set.
type flakyVectors struct {
	storage.VectorStore
	mu      sync.Mutex
	failing bool
}

func (f *flakyVectors) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakyVectors) Upsert(ctx context.Context, points ...*core.VectorPoint) error {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("vector store unavailable")
	}
	return f.VectorStore.Upsert(ctx, points...)
}

// stubTransformer answers every request with fn and records the keys it saw.
type stubTransformer struct {
	mu    sync.Mutex
	calls []string
	fn    func(req transform.Request) transform.Result
}

func (s *stubTransformer) Transform(_ context.Context, req transform.Request) transform.Result {
	s.mu.Lock()
	s.calls = append(s.calls, req.DocumentNumber+"/"+req.ArticleNumber)
	s.mu.Unlock()
	return s.fn(req)
}

func (s *stubTransformer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func succeedWith(text string) func(transform.Request) transform.Result {
	return func(transform.Request) transform.Result {
		return transform.Result{Status: transform.StatusSuccess, TransformedText: text, ModelUsed: "stub"}
	}
}
