package ai

import "context"

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a single text completion for a prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate sends the prompt to the model and returns the text of the
	// first choice. Errors from the transport or the API are returned as-is
	// so callers can classify them.
	Generate(ctx context.Context, prompt Prompt) (string, error)

	// Model returns the model identifier the generator talks to.
	Model() string
}

// Prompt is a single system + user exchange.
type Prompt struct {
	System string
	User   string

	// Temperature is passed through to the model. Zero means use the
	// generator's default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means use the generator's
	// default.
	MaxTokens int
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Small returns the generator used for ordinary articles.
	Small() Generator

	// Large returns the generator used for articles that exceed the small
	// backend's input limit. It is nil when no large backend is configured.
	Large() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
