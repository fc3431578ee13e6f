package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
)

// VectorStore implements storage.VectorStore on a Backend.
type VectorStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a vector store sharing backend.
func NewVectorStore(backend *Backend) *VectorStore {
	return &VectorStore{backend: backend}
}

// EnsureCollection records the dimension on first use and rejects a
// different one afterwards.
func (s *VectorStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: %d", storage.ErrDimensionMismatch, dimension)
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(vectorDimKey))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(dimension))
			if err := tx.Set([]byte(vectorDimKey), buf); err != nil {
				return err
			}
			return tx.Commit()
		case err != nil:
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return storage.ErrSerializationFailed
			}
			if stored := int(binary.BigEndian.Uint64(val)); stored != dimension {
				return fmt.Errorf("%w: collection has %d, got %d", storage.ErrDimensionMismatch, stored, dimension)
			}
			return nil
		})
	}, true)
}

func (s *VectorStore) StoredHash(ctx context.Context, id uint64) (string, bool, error) {
	p, err := s.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.Payload.TextHash, true, nil
}

// Get returns a stored point.
// Returns storage.ErrNotFound if the point doesn't exist.
func (s *VectorStore) Get(ctx context.Context, id uint64) (*core.VectorPoint, error) {
	var p core.VectorPoint
	if err := s.backend.getJSON(makeVectorKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *VectorStore) Upsert(ctx context.Context, points ...*core.VectorPoint) error {
	for _, p := range points {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.backend.putJSON(makeVectorKey(p.ID), p); err != nil {
			return fmt.Errorf("upsert point %d: %w", p.ID, err)
		}
	}
	return nil
}

// Close is a no-op; the backend is closed by its owner.
func (s *VectorStore) Close() error {
	return nil
}
