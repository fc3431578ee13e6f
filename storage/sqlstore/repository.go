package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository implements storage.ContentRepository.
type Repository struct {
	db       *gorm.DB
	laws     string
	content  string
	snapshot string
	logger   *slog.Logger
}

var _ storage.ContentRepository = (*Repository)(nil)

func newRepository(ctx context.Context, db *gorm.DB, o options) (*Repository, error) {
	if err := o.tables.Validate(); err != nil {
		return nil, err
	}
	r := &Repository{
		db:       db,
		laws:     o.tables.qualify(o.tables.Laws),
		content:  o.tables.qualify(o.tables.Content),
		snapshot: o.tables.qualify(o.tables.Snapshot),
		logger:   o.logger.With("component", "sqlstore"),
	}
	if o.autoMigrate {
		if err := r.migrate(ctx); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.Table(r.laws).AutoMigrate(&lawRow{}); err != nil {
		return fmt.Errorf("migrate %s: %w", r.laws, err)
	}
	if err := db.Table(r.content).AutoMigrate(&contentRow{}); err != nil {
		return fmt.Errorf("migrate %s: %w", r.content, err)
	}
	if err := db.Table(r.snapshot).AutoMigrate(&snapshotRow{}); err != nil {
		return fmt.Errorf("migrate %s: %w", r.snapshot, err)
	}
	return nil
}

// UpsertLaw inserts a law or updates its metadata. An existing clean title
// is kept.
func (r *Repository) UpsertLaw(ctx context.Context, law *core.LawDocument) error {
	row := lawToRow(law)
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Table(r.laws).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "document_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "language", "document_type", "publication_date",
			"source_url", "metadata_json", "updated_at",
		}),
	}).Create(row).Error
}

func (r *Repository) GetLaw(ctx context.Context, documentNumber string) (*core.LawDocument, error) {
	var row lawRow
	err := r.db.WithContext(ctx).Table(r.laws).
		Where("document_number = ?", documentNumber).
		Take(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return row.toCore(), nil
}

func (r *Repository) LawsWithoutCleanTitle(ctx context.Context, limit int) ([]*core.LawDocument, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	var rows []lawRow
	err := r.db.WithContext(ctx).Table(r.laws).
		Where("clean_title = ? OR clean_title IS NULL", "").
		Order("document_number").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*core.LawDocument, len(rows))
	for i := range rows {
		out[i] = rows[i].toCore()
	}
	return out, nil
}

func (r *Repository) SetCleanTitle(ctx context.Context, documentNumber, title string) error {
	res := r.db.WithContext(ctx).Table(r.laws).
		Where("document_number = ?", documentNumber).
		Updates(map[string]any{"clean_title": title, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpsertContent writes a record by key and marks it pending. The hash is
// recomputed from the text so the stored hash always matches the stored
// text.
func (r *Repository) UpsertContent(ctx context.Context, record *core.ContentRecord) (*core.ContentRecord, error) {
	out := *record
	out.CurrentTextHash = core.Hash(out.CurrentText)
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing contentRow
		err := tx.Table(r.content).
			Where("document_number = ? AND article_number = ?", out.DocumentNumber, out.ArticleNumber).
			Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := contentRow{
				DocumentNumber:  out.DocumentNumber,
				ArticleNumber:   out.ArticleNumber,
				CurrentText:     out.CurrentText,
				CurrentTextHash: out.CurrentTextHash,
				RawText:         out.RawText,
				SourceHash:      out.SourceHash,
				SyncPending:     true,
				UpdatedAt:       out.UpdatedAt,
			}
			if err := tx.Table(r.content).Create(&row).Error; err != nil {
				return err
			}
			out.ID = row.ID
			return nil
		case err != nil:
			return err
		}

		out.ID = existing.ID
		return tx.Table(r.content).Where("id = ?", existing.ID).Updates(map[string]any{
			"current_text":      out.CurrentText,
			"current_text_hash": out.CurrentTextHash,
			"raw_text":          out.RawText,
			"source_hash":       out.SourceHash,
			"sync_pending":      true,
			"updated_at":        out.UpdatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repository) GetContent(ctx context.Context, key core.RecordKey) (*core.ContentRecord, error) {
	var row contentRow
	err := r.db.WithContext(ctx).Table(r.content).
		Where("document_number = ? AND article_number = ?", key.DocumentNumber, key.ArticleNumber).
		Take(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return row.toCore(), nil
}

func (r *Repository) GetContentByID(ctx context.Context, id uint64) (*core.ContentRecord, error) {
	var row contentRow
	if err := r.db.WithContext(ctx).Table(r.content).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toCore(), nil
}

func (r *Repository) UpdateContentText(ctx context.Context, id uint64, text, hash string, updatedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Table(r.content).Where("id = ?", id).Updates(map[string]any{
			"current_text":      text,
			"current_text_hash": hash,
			"updated_at":        updatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		// MySQL reports zero affected rows when nothing changed.
		var n int64
		if err := tx.Table(r.content).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (r *Repository) ListContent(ctx context.Context, afterID uint64, limit int) ([]*core.ContentRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	var rows []contentRow
	err := r.db.WithContext(ctx).Table(r.content).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*core.ContentRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].toCore()
	}
	return out, nil
}

func (r *Repository) CountContent(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Table(r.content).Count(&n).Error
	return n, err
}

func (r *Repository) ContentHashes(ctx context.Context) ([]core.HashEntry, error) {
	var rows []contentRow
	err := r.db.WithContext(ctx).Table(r.content).
		Select("id", "document_number", "article_number", "current_text_hash", "sync_pending").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]core.HashEntry, len(rows))
	for i, row := range rows {
		out[i] = core.HashEntry{
			ID:      row.ID,
			Key:     core.RecordKey{DocumentNumber: row.DocumentNumber, ArticleNumber: row.ArticleNumber},
			Hash:    row.CurrentTextHash,
			Pending: row.SyncPending,
		}
	}
	return out, nil
}

// markSyncedBatch bounds the IN list of MarkSynced.
const markSyncedBatch = 500

func (r *Repository) MarkSynced(ctx context.Context, ids []uint64) error {
	for start := 0; start < len(ids); start += markSyncedBatch {
		end := min(start+markSyncedBatch, len(ids))
		err := r.db.WithContext(ctx).Table(r.content).
			Where("id IN ?", ids[start:end]).
			Update("sync_pending", false).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// ReplaceSnapshot copies the settled part of the content table into the
// snapshot table in one transaction. Snapshot rows of pending records are
// left as they are.
func (r *Repository) ReplaceSnapshot(ctx context.Context) (int64, error) {
	var copied, kept int64
	takenAt := time.Now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec("DELETE FROM "+r.snapshot+
			" WHERE id NOT IN (SELECT id FROM "+r.content+" WHERE sync_pending = ?)", true)
		if res.Error != nil {
			return fmt.Errorf("clear snapshot: %w", res.Error)
		}
		if err := tx.Table(r.snapshot).Count(&kept).Error; err != nil {
			return fmt.Errorf("count snapshot: %w", err)
		}
		res = tx.Exec("INSERT INTO "+r.snapshot+
			" (id, document_number, article_number, snapshot_text, text_hash, source_hash, taken_at)"+
			" SELECT id, document_number, article_number, current_text, current_text_hash, source_hash, ?"+
			" FROM "+r.content+" WHERE sync_pending = ?", takenAt, false)
		if res.Error != nil {
			return fmt.Errorf("fill snapshot: %w", res.Error)
		}
		copied = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.logger.Debug("snapshot replaced", "rows", copied, "kept_pending", kept)
	return copied, nil
}

func (r *Repository) SnapshotHashes(ctx context.Context) (map[core.RecordKey]string, error) {
	var rows []snapshotRow
	err := r.db.WithContext(ctx).Table(r.snapshot).
		Select("document_number", "article_number", "text_hash").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[core.RecordKey]string, len(rows))
	for _, row := range rows {
		out[core.RecordKey{DocumentNumber: row.DocumentNumber, ArticleNumber: row.ArticleNumber}] = row.TextHash
	}
	return out, nil
}

func (r *Repository) GetSnapshot(ctx context.Context, key core.RecordKey) (*core.SnapshotRecord, error) {
	var row snapshotRow
	err := r.db.WithContext(ctx).Table(r.snapshot).
		Where("document_number = ? AND article_number = ?", key.DocumentNumber, key.ArticleNumber).
		Take(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return row.toCore(), nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}
