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


package ai

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Provider names accepted for the large backend.
const (
	ProviderNone      = ""
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "https://api.openai.com/v1"
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "text-embedding-3-small"
	EmbeddingModel string

	// EmbeddingAPIKey authenticates embedding calls. Local servers accept "none".
	EmbeddingAPIKey string

	// SmallHost is the base URL of the OpenAI-compatible small backend.
	SmallHost string

	// SmallModel is the model used for articles within the small input limit.
	// Example: "gpt-4o-mini"
	SmallModel string

	// SmallAPIKey authenticates small backend calls.
	SmallAPIKey string

	// LargeProvider selects the large backend: ProviderAnthropic,
	// ProviderOpenAI or ProviderNone to disable it.
	LargeProvider string

	// LargeHost overrides the large backend's base URL. Empty uses the
	// provider default.
	LargeHost string

	// LargeModel is the model used for oversized articles.
	LargeModel string

	// LargeAPIKey authenticates large backend calls.
	LargeAPIKey string

	// Temperature is the default sampling temperature for generation.
	// Default: 0.1
	Temperature float64

	// MaxTokens is the default completion cap when a prompt sets none.
	// Default: 4096
	MaxTokens int

	// Timeout bounds a single HTTP exchange with any backend.
	// Default: 30s
	Timeout time.Duration

	// HTTPClient overrides the transport used by every backend.
	HTTPClient *http.Client
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingAPIKey sets the embedding API key.
func WithEmbeddingAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
	}
}

// WithSmallHost sets the small backend host URL.
func WithSmallHost(host string) ConfigOption {
	return func(c *Config) {
		c.SmallHost = host
	}
}

// WithHost sets both the embedding and small backend hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.SmallHost = host
	}
}

// WithSmallModel sets the small backend model identifier.
func WithSmallModel(model string) ConfigOption {
	return func(c *Config) {
		c.SmallModel = model
	}
}

// WithAPIKey sets the embedding and small backend API keys.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
		c.SmallAPIKey = key
	}
}

// WithLargeProvider selects the large backend provider.
func WithLargeProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.LargeProvider = provider
	}
}

// WithLargeHost sets the large backend host URL.
func WithLargeHost(host string) ConfigOption {
	return func(c *Config) {
		c.LargeHost = host
	}
}

// WithLargeModel sets the large backend model identifier.
func WithLargeModel(model string) ConfigOption {
	return func(c *Config) {
		c.LargeModel = model
	}
}

// WithLargeAPIKey sets the large backend API key.
func WithLargeAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.LargeAPIKey = key
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithMaxTokens sets the default completion cap.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithHTTPClient sets the HTTP client used by all backends.
func WithHTTPClient(client *http.Client) ConfigOption {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// DefaultConfig returns a Config targeting the public OpenAI API with no
// large backend.
func DefaultConfig() *Config {
	defaultHost := "https://api.openai.com/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		EmbeddingModel: "text-embedding-3-small",
		SmallHost:      defaultHost,
		SmallModel:     "gpt-4o-mini",
		LargeProvider:  ProviderNone,
		Temperature:    0.1,
		MaxTokens:      4096,
		Timeout:        30 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    WithLargeProvider(ProviderAnthropic),
//	    WithLargeModel("claude-sonnet-4-5"),
//	    WithLargeAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// HasLarge reports whether a large backend is configured.
func (c *Config) HasLarge() bool {
	return c.LargeProvider != ProviderNone
}

// Normalize ensures the configuration is in a canonical form.
// OpenAI-compatible hosts get a /v1 suffix if missing.
func (c *Config) Normalize() {
	c.LargeProvider = strings.ToLower(strings.TrimSpace(c.LargeProvider))
	c.EmbeddingHost = withV1(c.EmbeddingHost)
	c.SmallHost = withV1(c.SmallHost)
	if c.LargeProvider == ProviderOpenAI {
		c.LargeHost = withV1(c.LargeHost)
	}
}

func withV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.SmallHost == "" {
		return errors.New("ai config: SmallHost is required")
	}
	if c.SmallModel == "" {
		return errors.New("ai config: SmallModel is required")
	}
	switch c.LargeProvider {
	case ProviderNone:
	case ProviderOpenAI, ProviderAnthropic:
		if c.LargeModel == "" {
			return errors.New("ai config: LargeModel is required when LargeProvider is set")
		}
	default:
		return errors.New("ai config: LargeProvider must be openai, anthropic or empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	if c.MaxTokens < 1 {
		return errors.New("ai config: MaxTokens must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("ai config: Timeout must be positive")
	}
	return nil
}

// Client returns the HTTP client backends should use.
func (c *Config) Client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}
