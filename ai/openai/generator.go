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
	"context"
	"fmt"
	"log/slog"

	"github.com/drorzp/justel-pipeline/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// stopMaxTokens is the stop reason reported when the completion budget ran out.
const stopMaxTokens = "length"

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client      llms.Model
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
func newGenerator(config *ai.Config, host, model, token string) (*Generator, error) {
	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken(tokenOrNone(token)),
		openai.WithModel(model),
		openai.WithHTTPClient(config.Client()),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:      client,
		model:       model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		logger:      slog.Default().With("component", "openai-generator", "model", model),
	}, nil
}

// NewGenerator creates the small backend generator.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newGenerator(config, config.SmallHost, config.SmallModel, config.SmallAPIKey)
}

// NewLargeGenerator creates an OpenAI-compatible large backend generator.
// The large host defaults to the small host when unset.
func NewLargeGenerator(config *ai.Config) (ai.Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.LargeProvider != ai.ProviderOpenAI {
		return nil, ai.ErrNoLargeBackend
	}
	host := config.LargeHost
	if host == "" {
		host = config.SmallHost
	}
	token := config.LargeAPIKey
	if token == "" {
		token = config.SmallAPIKey
	}
	return newGenerator(config, host, config.LargeModel, token)
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	return g.model
}

// Generate sends a system + user exchange and returns the first choice.
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
