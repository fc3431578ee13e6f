package ingestion

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
	"github.com/drorzp/justel-pipeline/storage/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) storage.ContentRepository {
	t.Helper()
	repo, err := sqlstore.Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleDocument(text string) *core.LegalDocument {
	return &core.LegalDocument{
		Metadata: core.DocumentMetadata{DocumentNumber: "2003022532", Title: "22 MAI 2003. - Loi", Language: "fr"},
		Hierarchy: []*core.HierarchyNode{{
			Type: "chapter",
			Children: []*core.HierarchyNode{
				{Type: "article", ArticleContent: &core.ArticleContent{ArticleNumber: "1", Content: core.TextContent{MainTextRaw: "Disposition générale."}}},
				{Type: "article", ArticleContent: &core.ArticleContent{ArticleNumber: "2", Content: core.TextContent{MainTextRaw: text}}},
			},
		}},
	}
}

func writeDocument(t *testing.T, doc *core.LegalDocument) string {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestNewProcessor(t *testing.T) {
	_, err := NewProcessor(nil)
	assert.ErrorIs(t, err, ErrContentRepositoryRequired)
}

func TestProcessor_Process(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p, err := NewProcessor(repo)
	require.NoError(t, err)

	path := writeDocument(t, sampleDocument("§ 1er. Texte [1 inséré]1."))
	require.NoError(t, p.Process(ctx, path))

	law, err := repo.GetLaw(ctx, "2003022532")
	require.NoError(t, err)
	assert.Equal(t, "22 MAI 2003. - Loi", law.Title)

	rec, err := repo.GetContent(ctx, core.RecordKey{DocumentNumber: "2003022532", ArticleNumber: "2"})
	require.NoError(t, err)
	assert.Contains(t, rec.CurrentText, `data-footnote-id="1"`)
	assert.Equal(t, core.Hash(rec.CurrentText), rec.CurrentTextHash)
	assert.Equal(t, rec.CurrentTextHash, rec.SourceHash)
	assert.Contains(t, rec.RawText, "Article 2")

	assert.Equal(t, Stats{Documents: 1, Written: 2}, p.Stats())

	t.Run("reprocessing is a no-op", func(t *testing.T) {
		require.NoError(t, p.Process(ctx, path))
		assert.Equal(t, Stats{Documents: 2, Written: 2, Skipped: 2}, p.Stats())
	})

	t.Run("repaired text survives reprocessing", func(t *testing.T) {
		repaired := "<article class=\"legal-article\">repaired</article>"
		require.NoError(t, repo.UpdateContentText(ctx, rec.ID, repaired, core.Hash(repaired), rec.UpdatedAt))
		require.NoError(t, p.Process(ctx, path))

		got, err := repo.GetContent(ctx, rec.Key())
		require.NoError(t, err)
		assert.Equal(t, repaired, got.CurrentText)
	})

	t.Run("changed source overwrites", func(t *testing.T) {
		require.NoError(t, p.Process(ctx, writeDocument(t, sampleDocument("§ 1er. Nouveau texte."))))

		got, err := repo.GetContent(ctx, rec.Key())
		require.NoError(t, err)
		assert.Contains(t, got.CurrentText, "Nouveau texte.")
		assert.NotEqual(t, rec.SourceHash, got.SourceHash)
		assert.Equal(t, rec.ID, got.ID)
	})
}

func TestProcessor_Force(t *testing.T) {
	ctx := context.Background()
	p, err := NewProcessor(newTestRepo(t), WithForce(true))
	require.NoError(t, err)

	path := writeDocument(t, sampleDocument("Texte."))
	require.NoError(t, p.Process(ctx, path))
	require.NoError(t, p.Process(ctx, path))
	assert.Equal(t, int64(4), p.Stats().Written)
}

func TestProcessor_BadInput(t *testing.T) {
	ctx := context.Background()
	p, err := NewProcessor(newTestRepo(t))
	require.NoError(t, err)

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, p.Process(ctx, filepath.Join(t.TempDir(), "missing.json")))
	})

	t.Run("not json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		assert.ErrorIs(t, p.Process(ctx, path), ErrUnreadableDocument)
	})

	t.Run("invalid document", func(t *testing.T) {
		doc := sampleDocument("x")
		doc.Metadata.DocumentNumber = ""
		assert.ErrorIs(t, p.Process(ctx, writeDocument(t, doc)), core.ErrInvalidDocument)
	})
}
