// Package qdrant implements storage.VectorStore on Qdrant.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
	"github.com/qdrant/go-client/qdrant"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "justel_articles"

const hashField = "text_hash"

// Config locates a Qdrant server and collection.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Store implements storage.VectorStore.
type Store struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Open connects to the server described by cfg.
func Open(cfg Config, logger *slog.Logger) (storage.VectorStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}
	return &Store{
		client:     client,
		collection: cfg.Collection,
		logger:     logger.With("component", "qdrant", "collection", cfg.Collection),
	}, nil
}

// EnsureCollection creates a cosine collection of the given dimension when
// it does not exist yet.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: %d", storage.ErrDimensionMismatch, dimension)
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	s.logger.Info("creating collection", "dimension", dimension)
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// StoredHash fetches only the text_hash payload field of a point.
func (s *Store) StoredHash(ctx context.Context, id uint64) (string, bool, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(id)},
		WithPayload:    qdrant.NewWithPayloadInclude(hashField),
	})
	if err != nil {
		return "", false, fmt.Errorf("get point %d: %w", id, err)
	}
	if len(points) == 0 {
		return "", false, nil
	}
	return points[0].GetPayload()[hashField].GetStringValue(), true, nil
}

func (s *Store) Upsert(ctx context.Context, points ...*core.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		ps, err := pointStruct(p)
		if err != nil {
			return err
		}
		structs[i] = ps
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func pointStruct(p *core.VectorPoint) (*qdrant.PointStruct, error) {
	payload, err := qdrant.TryValueMap(map[string]any{
		"text":            p.Payload.Text,
		hashField:         p.Payload.TextHash,
		"document_number": p.Payload.DocumentNumber,
		"article_number":  p.Payload.ArticleNumber,
		"updated_at":      p.Payload.UpdatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: point %d: %w", storage.ErrSerializationFailed, p.ID, err)
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(p.ID),
		Vectors: qdrant.NewVectorsDense(p.Vector),
		Payload: payload,
	}, nil
}
