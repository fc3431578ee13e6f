package sqlstore

import (
	"time"

	"github.com/drorzp/justel-pipeline/core"
)

// Text columns sized 16777216 map to TEXT on sqlite and postgres and
// LONGTEXT on mysql.
type lawRow struct {
	DocumentNumber  string    `gorm:"primaryKey;size:32"`
	Title           string    `gorm:"size:16777216"`
	CleanTitle      string    `gorm:"size:512"`
	Language        string    `gorm:"size:8"`
	DocumentType    string    `gorm:"size:64"`
	PublicationDate string    `gorm:"size:32"`
	SourceURL       string    `gorm:"size:1024"`
	MetadataJSON    string    `gorm:"size:16777216"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
}

type contentRow struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement"`
	DocumentNumber  string    `gorm:"size:32;not null;uniqueIndex:idx_content_key,priority:1"`
	ArticleNumber   string    `gorm:"size:64;not null;uniqueIndex:idx_content_key,priority:2"`
	CurrentText     string    `gorm:"size:16777216"`
	CurrentTextHash string    `gorm:"size:32;index"`
	RawText         string    `gorm:"size:16777216"`
	SourceHash      string    `gorm:"size:32"`
	SyncPending     bool      `gorm:"not null;default:false;index"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
}

type snapshotRow struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement:false"`
	DocumentNumber string    `gorm:"size:32;not null;uniqueIndex:idx_snapshot_key,priority:1"`
	ArticleNumber  string    `gorm:"size:64;not null;uniqueIndex:idx_snapshot_key,priority:2"`
	SnapshotText   string    `gorm:"size:16777216"`
	TextHash       string    `gorm:"size:32"`
	SourceHash     string    `gorm:"size:32"`
	TakenAt        time.Time `gorm:"autoCreateTime:false"`
}

func lawToRow(l *core.LawDocument) *lawRow {
	return &lawRow{
		DocumentNumber:  l.DocumentNumber,
		Title:           l.Title,
		CleanTitle:      l.CleanTitle,
		Language:        l.Language,
		DocumentType:    l.DocumentType,
		PublicationDate: l.PublicationDate,
		SourceURL:       l.SourceURL,
		MetadataJSON:    l.MetadataJSON,
		UpdatedAt:       l.UpdatedAt,
	}
}

func (r *lawRow) toCore() *core.LawDocument {
	return &core.LawDocument{
		DocumentNumber:  r.DocumentNumber,
		Title:           r.Title,
		CleanTitle:      r.CleanTitle,
		Language:        r.Language,
		DocumentType:    r.DocumentType,
		PublicationDate: r.PublicationDate,
		SourceURL:       r.SourceURL,
		MetadataJSON:    r.MetadataJSON,
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func (r *contentRow) toCore() *core.ContentRecord {
	return &core.ContentRecord{
		ID:              r.ID,
		DocumentNumber:  r.DocumentNumber,
		ArticleNumber:   r.ArticleNumber,
		CurrentText:     r.CurrentText,
		CurrentTextHash: r.CurrentTextHash,
		RawText:         r.RawText,
		SourceHash:      r.SourceHash,
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func (r *snapshotRow) toCore() *core.SnapshotRecord {
	return &core.SnapshotRecord{
		ID:             r.ID,
		DocumentNumber: r.DocumentNumber,
		ArticleNumber:  r.ArticleNumber,
		Text:           r.SnapshotText,
		TextHash:       r.TextHash,
		SourceHash:     r.SourceHash,
		TakenAt:        r.TakenAt.UTC(),
	}
}
