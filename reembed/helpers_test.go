package reembed

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drorzp/justel-pipeline/ai/mock"
	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
	"github.com/drorzp/justel-pipeline/storage/badger"
	"github.com/drorzp/justel-pipeline/storage/sqlstore"
	"github.com/drorzp/justel-pipeline/upsert"
)

type fixture struct {
	repo     storage.ContentRepository
	vectors  *badger.VectorStore
	embedder *mock.MockEmbedder
	writer   *upsert.VectorWriter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := sqlstore.Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	_, vectors, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	writer, err := upsert.NewVectorWriter(vectors, embedder)
	require.NoError(t, err)

	return &fixture{repo: repo, vectors: vectors, embedder: embedder, writer: writer}
}

// seedRecords writes n articles of one law and returns them in ID order.
func seedRecords(t *testing.T, repo storage.ContentRepository, n int) []*core.ContentRecord {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.UpsertLaw(ctx, &core.LawDocument{DocumentNumber: "1804032130", Title: "Code civil", Language: "fr"}))

	out := make([]*core.ContentRecord, 0, n)
	for i := 1; i <= n; i++ {
		rec := &core.ContentRecord{
			DocumentNumber: "1804032130",
			ArticleNumber:  fmt.Sprintf("%d", i),
			RawText:        fmt.Sprintf("Article %d texte", i),
		}
		rec.SetText(fmt.Sprintf(`<article class="legal-article"><div class="article-text">Article %d</div></article>`, i))
		rec.SourceHash = rec.CurrentTextHash
		saved, err := repo.UpsertContent(ctx, rec)
		require.NoError(t, err)
		out = append(out, saved)
	}
	return out
}
