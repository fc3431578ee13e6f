// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"context"
	"time"

	"github.com/drorzp/justel-pipeline/core"
)

// ContentRepository is the relational writer-of-record for laws, article
// content and the run snapshot. Implementations must be thread-safe.
type ContentRepository interface {
	// UpsertLaw inserts or replaces a law row by document number.
	UpsertLaw(ctx context.Context, law *core.LawDocument) error

	// GetLaw retrieves a law by document number.
	// Returns ErrNotFound if the law doesn't exist.
	GetLaw(ctx context.Context, documentNumber string) (*core.LawDocument, error)

	// LawsWithoutCleanTitle returns up to limit laws whose clean title is empty,
	// ordered by document number.
	LawsWithoutCleanTitle(ctx context.Context, limit int) ([]*core.LawDocument, error)

	// SetCleanTitle stores the display title of a law.
	// Returns ErrNotFound if the law doesn't exist.
	SetCleanTitle(ctx context.Context, documentNumber, title string) error

	// UpsertContent inserts or updates a content record by key and returns
	// it with its ID populated. The record is marked pending until
	// MarkSynced clears it.
	UpsertContent(ctx context.Context, record *core.ContentRecord) (*core.ContentRecord, error)

	// GetContent retrieves a content record by key.
	// Returns ErrNotFound if the record doesn't exist.
	GetContent(ctx context.Context, key core.RecordKey) (*core.ContentRecord, error)

	// GetContentByID retrieves a content record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetContentByID(ctx context.Context, id uint64) (*core.ContentRecord, error)

	// UpdateContentText replaces the current text of a record. Nothing
	// else changes.
	// Returns ErrNotFound if the record doesn't exist.
	UpdateContentText(ctx context.Context, id uint64, text, hash string, updatedAt time.Time) error

	// ListContent returns up to limit records with ID > afterID, ordered by ID.
	ListContent(ctx context.Context, afterID uint64, limit int) ([]*core.ContentRecord, error)

	// CountContent returns the number of content records.
	CountContent(ctx context.Context) (int64, error)

	// ContentHashes returns the ID, key, current text hash and pending flag
	// of every content record.
	ContentHashes(ctx context.Context) ([]core.HashEntry, error)

	// MarkSynced clears the pending flag of the given records.
	MarkSynced(ctx context.Context, ids []uint64) error

	// ReplaceSnapshot refills the snapshot table from the current content.
	// Rows of pending records keep their previous snapshot (or stay absent)
	// so an unfinished sync is diffed against the same baseline next run.
	// Returns the number of rows copied.
	ReplaceSnapshot(ctx context.Context) (int64, error)

	// SnapshotHashes returns the text hash of every snapshot row by key.
	SnapshotHashes(ctx context.Context) (map[core.RecordKey]string, error)

	// GetSnapshot retrieves the snapshot row for a key.
	// Returns ErrNotFound if the key has no snapshot.
	GetSnapshot(ctx context.Context, key core.RecordKey) (*core.SnapshotRecord, error)

	// Close releases the underlying connection.
	Close() error
}

// DocumentStore holds denormalized views of laws and articles. Every write
// replaces the whole document.
type DocumentStore interface {
	// ReplaceArticle upserts the article document by key.
	ReplaceArticle(ctx context.Context, doc *core.ArticleDocument) error

	// ReplaceLaw upserts the law document by document number.
	ReplaceLaw(ctx context.Context, doc *core.LawDocumentView) error

	// GetArticle retrieves an article document by key.
	// Returns ErrNotFound if the document doesn't exist.
	GetArticle(ctx context.Context, key core.RecordKey) (*core.ArticleDocument, error)

	// GetLaw retrieves a law document by document number.
	// Returns ErrNotFound if the document doesn't exist.
	GetLaw(ctx context.Context, documentNumber string) (*core.LawDocumentView, error)

	// Close releases the underlying connection.
	Close() error
}

// VectorStore holds one embedding per content record, keyed by record ID.
type VectorStore interface {
	// EnsureCollection creates the backing collection if it is missing.
	EnsureCollection(ctx context.Context, dimension int) error

	// StoredHash returns the text hash saved with a point.
	// found is false when the point doesn't exist.
	StoredHash(ctx context.Context, id uint64) (hash string, found bool, err error)

	// Upsert writes points, replacing vectors and payloads of existing ids.
	Upsert(ctx context.Context, points ...*core.VectorPoint) error

	// Close releases the underlying connection.
	Close() error
}
