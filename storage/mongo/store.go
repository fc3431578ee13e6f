// Package mongo implements storage.DocumentStore on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Default collection names.
const (
	DefaultDatabase          = "justel"
	DefaultLawCollection     = "laws"
	DefaultArticleCollection = "articles"
)

const disconnectTimeout = 10 * time.Second

// Store implements storage.DocumentStore.
type Store struct {
	client   *mongo.Client
	laws     *mongo.Collection
	articles *mongo.Collection
	logger   *slog.Logger
}

var _ storage.DocumentStore = (*Store)(nil)

// Option configures a Store.
type Option func(*config)

type config struct {
	database string
	laws     string
	articles string
	logger   *slog.Logger
}

// WithDatabase overrides the database name.
func WithDatabase(name string) Option {
	return func(c *config) {
		c.database = name
	}
}

// WithCollections overrides the law and article collection names.
func WithCollections(laws, articles string) Option {
	return func(c *config) {
		c.laws = laws
		c.articles = articles
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Open connects to uri, verifies the connection and makes sure the key
// indexes exist.
func Open(ctx context.Context, uri string, opts ...Option) (storage.DocumentStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		disconnect(client)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s, err := NewStore(ctx, client, opts...)
	if err != nil {
		disconnect(client)
		return nil, err
	}
	return s, nil
}

// NewStore wraps a connected client. The store owns the client and
// disconnects it on Close.
func NewStore(ctx context.Context, client *mongo.Client, opts ...Option) (*Store, error) {
	c := config{
		database: DefaultDatabase,
		laws:     DefaultLawCollection,
		articles: DefaultArticleCollection,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}

	db := client.Database(c.database)
	s := &Store{
		client:   client,
		laws:     db.Collection(c.laws),
		articles: db.Collection(c.articles),
		logger:   c.logger.With("component", "mongo"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.articles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "document_number", Value: 1}, {Key: "article_number", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create article index: %w", err)
	}
	_, err = s.laws.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "document_number", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create law index: %w", err)
	}
	return nil
}

// ReplaceArticle replaces the whole article document, inserting it when
// missing.
func (s *Store) ReplaceArticle(ctx context.Context, doc *core.ArticleDocument) error {
	_, err := s.articles.ReplaceOne(ctx, articleFilter(doc.Key()), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace article %s: %w", doc.Key(), err)
	}
	return nil
}

// ReplaceLaw replaces the whole law document, inserting it when missing.
func (s *Store) ReplaceLaw(ctx context.Context, doc *core.LawDocumentView) error {
	_, err := s.laws.ReplaceOne(ctx, lawFilter(doc.DocumentNumber), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace law %s: %w", doc.DocumentNumber, err)
	}
	return nil
}

func (s *Store) GetArticle(ctx context.Context, key core.RecordKey) (*core.ArticleDocument, error) {
	var doc core.ArticleDocument
	if err := s.articles.FindOne(ctx, articleFilter(key)).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

func (s *Store) GetLaw(ctx context.Context, documentNumber string) (*core.LawDocumentView, error) {
	var doc core.LawDocumentView
	if err := s.laws.FindOne(ctx, lawFilter(documentNumber)).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func articleFilter(key core.RecordKey) bson.D {
	return bson.D{
		{Key: "document_number", Value: key.DocumentNumber},
		{Key: "article_number", Value: key.ArticleNumber},
	}
}

func lawFilter(documentNumber string) bson.D {
	return bson.D{{Key: "document_number", Value: documentNumber}}
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	return err
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	client.Disconnect(ctx)
}
