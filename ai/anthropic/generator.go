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


package anthropic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/drorzp/justel-pipeline/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// stopMaxTokens is the stop reason reported when the completion budget ran out.
const stopMaxTokens = "max_tokens"

// Generator implements ai.Generator using the Anthropic messages API.
type Generator struct {
	client      llms.Model
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.LargeProvider != ai.ProviderAnthropic {
		return nil, ai.ErrNoLargeBackend
	}

	opts := []anthropic.Option{
		anthropic.WithModel(config.LargeModel),
		anthropic.WithHTTPClient(config.Client()),
	}
	// Without an explicit key the client falls back to ANTHROPIC_API_KEY.
	if config.LargeAPIKey != "" {
		opts = append(opts, anthropic.WithToken(config.LargeAPIKey))
	}
	if config.LargeHost != "" {
		opts = append(opts, anthropic.WithBaseURL(config.LargeHost))
	}

	client, err := anthropic.New(opts...)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:      client,
		model:       config.LargeModel,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		logger:      slog.Default().With("component", "anthropic-generator", "model", config.LargeModel),
	}, nil
}

// NewGenerator creates the Anthropic large backend.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	return g.model
}

// Generate sends a system + user exchange and returns the text of the first
// content block.
func (g *Generator) Generate(ctx context.Context, prompt ai.Prompt) (string, error) {
	temperature := prompt.Temperature
	if temperature == 0 {
		temperature = g.temperature
	}
	maxTokens := prompt.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompt.System),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt.User),
	}

	response, err := g.client.GenerateContent(ctx, content,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		g.logger.Debug("generation failed", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		return "", ai.ErrEmptyResponse
	}

	choice := response.Choices[0]
	if choice.StopReason == stopMaxTokens {
		g.logger.Debug("generation truncated", "maxTokens", maxTokens)
		return "", fmt.Errorf("%w (max_tokens=%d)", ai.ErrOutputTruncated, maxTokens)
	}
	return choice.Content, nil
}
