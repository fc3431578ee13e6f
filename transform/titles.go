package transform

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/drorzp/justel-pipeline/ai"
)

// Title cleaning defaults.
const (
	DefaultTitleBatchSize = 20
	MaxCleanTitleLength   = 150
)

var (
	titleMetadataPattern = regexp.MustCompile(`(?i)\b(publication|numéro|numero|page|dossier|source|erratum)\s*:`)
	titleDatePattern     = regexp.MustCompile(`\b\d{1,2}[-/.]\d{1,2}[-/.]\d{4}\b|\b\d{4}-\d{2}-\d{2}\b`)
)

// TitleCleaner shortens raw law titles into display titles.
type TitleCleaner struct {
	gen         ai.Generator
	batchSize   int
	temperature float64
	logger      *slog.Logger
}

// TitleOption configures a TitleCleaner.
type TitleOption func(*TitleCleaner)

// WithBatchSize sets how many titles go into one prompt.
// Default is 20.
func WithBatchSize(n int) TitleOption {
	return func(c *TitleCleaner) {
		if n < 1 {
			n = 1
		}
		c.batchSize = n
	}
}

// WithTitleLogger sets a custom logger.
func WithTitleLogger(logger *slog.Logger) TitleOption {
	return func(c *TitleCleaner) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewTitleCleaner creates a title cleaner on top of gen.
func NewTitleCleaner(gen ai.Generator, opts ...TitleOption) (*TitleCleaner, error) {
	if gen == nil {
		return nil, ErrGeneratorRequired
	}
	c := &TitleCleaner{
		gen:         gen,
		batchSize:   DefaultTitleBatchSize,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "titles")
	return c, nil
}

// Clean returns one cleaned title per input title, in order. A batch whose
// answer fails validation is retried title by title; a title that still
// fails keeps its raw value. The only error returned is ctx's.
func (c *TitleCleaner) Clean(ctx context.Context, titles []string) ([]string, error) {
	out := make([]string, 0, len(titles))
	for start := 0; start < len(titles); start += c.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+c.batchSize, len(titles))
		batch := titles[start:end]

		cleaned, err := c.cleanBatch(ctx, batch)
		if err != nil {
			c.logger.Debug("title batch rejected, cleaning one by one", "size", len(batch), "error", err)
			cleaned = make([]string, len(batch))
			for i, title := range batch {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				single, err := c.cleanBatch(ctx, []string{title})
				if err != nil {
					c.logger.Warn("keeping raw title", "title", title, "error", err)
					cleaned[i] = title
					continue
				}
				cleaned[i] = single[0]
			}
		}
		out = append(out, cleaned...)
	}
	return out, nil
}

func (c *TitleCleaner) cleanBatch(ctx context.Context, batch []string) ([]string, error) {
	answer, err := c.gen.Generate(ctx, ai.Prompt{
		System:      titleSystemPrompt,
		User:        titleUserPrompt(batch),
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, err
	}
	cleaned := parseTitleLines(answer)
	if err := validateTitles(batch, cleaned); err != nil {
		return nil, err
	}
	return cleaned, nil
}

// parseTitleLines splits an answer into titles, dropping blank lines and
// any list numbering the model added.
func parseTitleLines(answer string) []string {
	var titles []string
	for _, line := range strings.Split(stripCodeFences(answer), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.- ")
		line = strings.TrimSpace(line)
		if line != "" {
			titles = append(titles, line)
		}
	}
	return titles
}

func validateTitles(raw, cleaned []string) error {
	if len(raw) != len(cleaned) {
		return fmt.Errorf("%w: sent %d, got %d", ErrTitleCountMismatch, len(raw), len(cleaned))
	}
	for i, t := range cleaned {
		switch {
		case t == "":
			return fmt.Errorf("title %d is empty", i+1)
		case len([]rune(t)) > MaxCleanTitleLength:
			return fmt.Errorf("title %d longer than %d characters", i+1, MaxCleanTitleLength)
		case titleMetadataPattern.MatchString(t):
			return fmt.Errorf("title %d still carries publication metadata", i+1)
		case titleDatePattern.MatchString(t):
			return fmt.Errorf("title %d still carries a date", i+1)
		}
	}
	return nil
}
