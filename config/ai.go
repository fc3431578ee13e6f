package config

import (
	"strings"

	"github.com/drorzp/justel-pipeline/ai"
)

// AIConfig maps the AI settings onto an ai.Config. The OpenAI key serves the
// embedder and the small backend; the large backend gets the key of its
// provider.
func (s *Settings) AIConfig() *ai.Config {
	a := s.AI
	provider := strings.ToLower(strings.TrimSpace(a.LargeProvider))

	opts := []ai.ConfigOption{
		ai.WithEmbeddingHost(a.EmbeddingHost),
		ai.WithEmbeddingModel(a.EmbeddingModel),
		ai.WithSmallHost(a.SmallHost),
		ai.WithSmallModel(a.SmallModel),
		ai.WithAPIKey(a.OpenAIAPIKey),
		ai.WithLargeProvider(provider),
		ai.WithLargeModel(a.LargeModel),
	}
	if a.Temperature > 0 {
		opts = append(opts, ai.WithTemperature(a.Temperature))
	}
	if a.MaxTokens > 0 {
		opts = append(opts, ai.WithMaxTokens(a.MaxTokens))
	}
	if a.Timeout > 0 {
		opts = append(opts, ai.WithTimeout(a.Timeout))
	}

	switch provider {
	case ai.ProviderAnthropic:
		opts = append(opts, ai.WithLargeAPIKey(a.AnthropicAPIKey))
		if a.LargeHost != "" {
			opts = append(opts, ai.WithLargeHost(a.LargeHost))
		}
	case ai.ProviderOpenAI:
		host := a.LargeHost
		if host == "" {
			host = a.SmallHost
		}
		opts = append(opts, ai.WithLargeHost(host), ai.WithLargeAPIKey(a.OpenAIAPIKey))
	}
	return ai.NewConfig(opts...)
}
