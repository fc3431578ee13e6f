package badger

import (
	"context"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
)

// DocumentStore implements storage.DocumentStore on a Backend. Documents
// are stored as JSON and replaced whole.
type DocumentStore struct {
	backend *Backend
}

var _ storage.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a document store sharing backend.
func NewDocumentStore(backend *Backend) *DocumentStore {
	return &DocumentStore{backend: backend}
}

func (s *DocumentStore) ReplaceArticle(ctx context.Context, doc *core.ArticleDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.backend.putJSON(makeArticleKey(doc.Key()), doc)
}

func (s *DocumentStore) ReplaceLaw(ctx context.Context, doc *core.LawDocumentView) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.backend.putJSON(makeLawKey(doc.DocumentNumber), doc)
}

func (s *DocumentStore) GetArticle(ctx context.Context, key core.RecordKey) (*core.ArticleDocument, error) {
	var doc core.ArticleDocument
	if err := s.backend.getJSON(makeArticleKey(key), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *DocumentStore) GetLaw(ctx context.Context, documentNumber string) (*core.LawDocumentView, error) {
	var doc core.LawDocumentView
	if err := s.backend.getJSON(makeLawKey(documentNumber), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Close is a no-op; the backend is closed by its owner.
func (s *DocumentStore) Close() error {
	return nil
}
