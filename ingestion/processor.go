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


package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/metrics"
	"github.com/drorzp/justel-pipeline/storage"
)

// Stats counts what a Processor has done since it was created.
type Stats struct {
	Documents int64
	Written   int64
	Skipped   int64
}

// Processor ingests document files into a ContentRepository.
// It is safe for concurrent use.
type Processor struct {
	repo    storage.ContentRepository
	force   bool
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger

	documents atomic.Int64
	written   atomic.Int64
	skipped   atomic.Int64
}

// Option configures a Processor.
type Option func(*Processor)

// WithForce rewrites every article even when its source hash is unchanged.
func WithForce(force bool) Option {
	return func(p *Processor) {
		p.force = force
	}
}

// WithMetrics records per-record outcomes.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor creates a processor writing to repo.
func NewProcessor(repo storage.ContentRepository, opts ...Option) (*Processor, error) {
	if repo == nil {
		return nil, ErrContentRepositoryRequired
	}
	p := &Processor{repo: repo, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "ingestion")
	return p, nil
}

// Process ingests one document file. Any error means the file was not
// (fully) ingested; articles written before the error stay written.
func (p *Processor) Process(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc core.LegalDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}
	if err := core.ValidateDocument(&doc); err != nil {
		return err
	}

	return p.ProcessDocument(ctx, &doc)
}

// ProcessDocument ingests an already decoded document.
func (p *Processor) ProcessDocument(ctx context.Context, doc *core.LegalDocument) error {
	now := time.Now().UTC()
	docNumber := doc.Metadata.DocumentNumber

	law := &core.LawDocument{
		DocumentNumber:  docNumber,
		Title:           doc.Metadata.Title,
		Language:        doc.Metadata.Language,
		DocumentType:    doc.Metadata.DocumentType,
		PublicationDate: doc.Metadata.PublicationDate,
		SourceURL:       doc.Metadata.SourceURL,
		UpdatedAt:       now,
	}
	if len(doc.ExtractionMetadata) > 0 {
		if meta, err := json.Marshal(doc.ExtractionMetadata); err == nil {
			law.MetadataJSON = string(meta)
		}
	}
	if err := p.repo.UpsertLaw(ctx, law); err != nil {
		return fmt.Errorf("store law %s: %w", docNumber, err)
	}

	var written, skipped int
	for _, article := range doc.Articles() {
		if err := ctx.Err(); err != nil {
			return err
		}
		wrote, err := p.processArticle(ctx, docNumber, article, now)
		if err != nil {
			return fmt.Errorf("store article %s/%s: %w", docNumber, article.Number, err)
		}
		if wrote {
			written++
		} else {
			skipped++
		}
	}

	p.documents.Add(1)
	p.written.Add(int64(written))
	p.skipped.Add(int64(skipped))
	p.metrics.RecordRecords(metrics.StatusSuccess, written)
	p.metrics.RecordRecords(metrics.StatusSkipped, skipped)
	p.logger.Debug("document ingested", "document", docNumber, "written", written, "skipped", skipped)
	return nil
}

func (p *Processor) processArticle(ctx context.Context, docNumber string, article core.ArticleNode, now time.Time) (bool, error) {
	markup := RenderArticle(article)
	sourceHash := core.Hash(markup)
	key := core.RecordKey{DocumentNumber: docNumber, ArticleNumber: article.Number}

	existing, err := p.repo.GetContent(ctx, key)
	switch {
	case err == nil:
		if existing.SourceHash == sourceHash && !p.force {
			return false, nil
		}
	case !errors.Is(err, storage.ErrNotFound):
		return false, err
	}

	record := &core.ContentRecord{
		DocumentNumber: docNumber,
		ArticleNumber:  article.Number,
		RawText:        PlainText(markup),
		SourceHash:     sourceHash,
	}
	record.SetText(markup)
	record.UpdatedAt = now

	if _, err := p.repo.UpsertContent(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}

// Stats returns a snapshot of the processor's counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Documents: p.documents.Load(),
		Written:   p.written.Load(),
		Skipped:   p.skipped.Load(),
	}
}
