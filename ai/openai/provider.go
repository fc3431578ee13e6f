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


package openai

import (
	"log/slog"

	"github.com/drorzp/justel-pipeline/ai"
	"github.com/drorzp/justel-pipeline/ai/anthropic"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// It manages the embedder and both generator backends.
type Provider struct {
	config   *ai.Config
	embedder *Embedder
	small    *Generator
	large    ai.Generator
	logger   *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	small, err := newGenerator(config, config.SmallHost, config.SmallModel, config.SmallAPIKey)
	if err != nil {
		return nil, err
	}

	var large ai.Generator
	switch config.LargeProvider {
	case ai.ProviderOpenAI:
		large, err = NewLargeGenerator(config)
	case ai.ProviderAnthropic:
		large, err = anthropic.NewGenerator(config)
	}
	if err != nil {
		return nil, err
	}

	p := &Provider{
		config:   config,
		embedder: embedder,
		small:    small,
		large:    large,
		logger:   slog.Default().With("component", "openai-provider"),
	}
	p.logger.Debug("provider ready",
		"small", config.SmallModel,
		"large_provider", config.LargeProvider,
		"large", config.LargeModel)
	return p, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Small returns the small backend.
func (p *Provider) Small() ai.Generator {
	return p.small
}

// Large returns the large backend, or nil when none is configured.
func (p *Provider) Large() ai.Generator {
	return p.large
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
