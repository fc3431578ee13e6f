package core

import (
	"time"
)

// RecordKey identifies a content record by its document and article numbers.
type RecordKey struct {
	DocumentNumber string
	ArticleNumber  string
}

// String renders the key as "document/article".
func (k RecordKey) String() string {
	return k.DocumentNumber + "/" + k.ArticleNumber
}

// Less orders keys by document number, then article number.
func (k RecordKey) Less(other RecordKey) bool {
	if k.DocumentNumber != other.DocumentNumber {
		return k.DocumentNumber < other.DocumentNumber
	}
	return k.ArticleNumber < other.ArticleNumber
}

// ContentRecord is the live, relationally stored version of one article.
// CurrentTextHash always equals Hash(CurrentText); use SetText to mutate.
type ContentRecord struct {
	ID              uint64
	DocumentNumber  string
	ArticleNumber   string
	CurrentText     string    // article markup, possibly repaired
	CurrentTextHash string    // Hash(CurrentText)
	RawText         string    // plain-text projection for prompts and embeddings
	SourceHash      string    // Hash of the markup produced by ingestion
	UpdatedAt       time.Time // last write to CurrentText
}

// Key returns the record's key.
func (r *ContentRecord) Key() RecordKey {
	return RecordKey{DocumentNumber: r.DocumentNumber, ArticleNumber: r.ArticleNumber}
}

// SetText replaces CurrentText and recomputes its hash.
func (r *ContentRecord) SetText(text string) {
	r.CurrentText = text
	r.CurrentTextHash = Hash(text)
	r.UpdatedAt = time.Now().UTC()
}

// SnapshotRecord is the frozen copy of a ContentRecord taken at run start.
type SnapshotRecord struct {
	ID             uint64
	DocumentNumber string
	ArticleNumber  string
	Text           string
	TextHash       string
	SourceHash     string
	TakenAt        time.Time
}

// Key returns the snapshot's key.
func (s *SnapshotRecord) Key() RecordKey {
	return RecordKey{DocumentNumber: s.DocumentNumber, ArticleNumber: s.ArticleNumber}
}

// HashEntry is the minimal projection of a record needed for diffing.
// Pending is set while the record has not reached every downstream store.
type HashEntry struct {
	ID      uint64
	Key     RecordKey
	Hash    string
	Pending bool
}

// LawDocument holds the static metadata of one legal document.
type LawDocument struct {
	DocumentNumber  string
	Title           string
	CleanTitle      string
	Language        string
	DocumentType    string
	PublicationDate string
	SourceURL       string
	MetadataJSON    string
	UpdatedAt       time.Time
}

// VectorPayload is the payload stored alongside each vector point.
type VectorPayload struct {
	Text           string    `json:"text"`
	TextHash       string    `json:"text_hash"`
	DocumentNumber string    `json:"document_number"`
	ArticleNumber  string    `json:"article_number"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// VectorPoint is an embedded article, identified by its ContentRecord ID.
type VectorPoint struct {
	ID      uint64        `json:"id"`
	Vector  []float32     `json:"vector"`
	Payload VectorPayload `json:"payload"`
}

// ArticleDocument is the document-store projection of a ContentRecord.
// It is always written as a whole.
type ArticleDocument struct {
	DocumentNumber string    `json:"document_number" bson:"document_number"`
	ArticleNumber  string    `json:"article_number" bson:"article_number"`
	Text           string    `json:"text" bson:"text"`
	RawText        string    `json:"raw_text" bson:"raw_text"`
	TextHash       string    `json:"text_hash" bson:"text_hash"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// Key returns the document's key.
func (d *ArticleDocument) Key() RecordKey {
	return RecordKey{DocumentNumber: d.DocumentNumber, ArticleNumber: d.ArticleNumber}
}

// LawDocumentView is the document-store projection of a LawDocument.
type LawDocumentView struct {
	DocumentNumber  string    `json:"document_number" bson:"document_number"`
	Title           string    `json:"title" bson:"title"`
	CleanTitle      string    `json:"clean_title,omitempty" bson:"clean_title,omitempty"`
	Language        string    `json:"language" bson:"language"`
	DocumentType    string    `json:"document_type" bson:"document_type"`
	PublicationDate string    `json:"publication_date,omitempty" bson:"publication_date,omitempty"`
	SourceURL       string    `json:"source_url,omitempty" bson:"source_url,omitempty"`
	ArticleCount    int       `json:"article_count" bson:"article_count"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// ArticleView builds the document-store projection of r.
func (r *ContentRecord) ArticleView() *ArticleDocument {
	return &ArticleDocument{
		DocumentNumber: r.DocumentNumber,
		ArticleNumber:  r.ArticleNumber,
		Text:           r.CurrentText,
		RawText:        r.RawText,
		TextHash:       r.CurrentTextHash,
		UpdatedAt:      r.UpdatedAt,
	}
}

// View builds the document-store projection of l.
func (l *LawDocument) View(articleCount int) *LawDocumentView {
	return &LawDocumentView{
		DocumentNumber:  l.DocumentNumber,
		Title:           l.Title,
		CleanTitle:      l.CleanTitle,
		Language:        l.Language,
		DocumentType:    l.DocumentType,
		PublicationDate: l.PublicationDate,
		SourceURL:       l.SourceURL,
		ArticleCount:    articleCount,
		UpdatedAt:       l.UpdatedAt,
	}
}
