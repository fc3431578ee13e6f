package ai

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "https://api.openai.com/v1", cfg.EmbeddingHost)
	assert.Equal(t, "https://api.openai.com/v1", cfg.SmallHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.SmallModel)
	assert.Equal(t, ProviderNone, cfg.LargeProvider)
	assert.InDelta(t, 0.1, cfg.Temperature, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.False(t, cfg.HasLarge())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, "https://api.openai.com/v1", cfg.EmbeddingHost)
		assert.Equal(t, 4096, cfg.MaxTokens)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.SmallHost)
	})

	t.Run("with api key", func(t *testing.T) {
		cfg := NewConfig(WithAPIKey("sk-test"))

		assert.Equal(t, "sk-test", cfg.EmbeddingAPIKey)
		assert.Equal(t, "sk-test", cfg.SmallAPIKey)
	})

	t.Run("with large backend", func(t *testing.T) {
		cfg := NewConfig(
			WithLargeProvider(ProviderAnthropic),
			WithLargeModel("claude-sonnet-4-5"),
			WithLargeAPIKey("ak-test"),
			WithLargeHost("http://proxy:9000"),
		)

		assert.True(t, cfg.HasLarge())
		assert.Equal(t, "claude-sonnet-4-5", cfg.LargeModel)
		assert.Equal(t, "ak-test", cfg.LargeAPIKey)
		assert.Equal(t, "http://proxy:9000", cfg.LargeHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		client := &http.Client{}
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithSmallHost("http://small:9090/v1"),
			WithEmbeddingModel("custom-embed"),
			WithEmbeddingAPIKey("ek"),
			WithSmallModel("custom-small"),
			WithTemperature(0.2),
			WithMaxTokens(1000),
			WithTimeout(5*time.Second),
			WithHTTPClient(client),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://small:9090/v1", cfg.SmallHost)
		assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
		assert.Equal(t, "ek", cfg.EmbeddingAPIKey)
		assert.Equal(t, "custom-small", cfg.SmallModel)
		assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
		assert.Equal(t, 1000, cfg.MaxTokens)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.Same(t, client, cfg.Client())
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name          string
		host          string
		largeProvider string
		largeHost     string
		expectedHost  string
		expectedLarge string
	}{
		{
			name:          "already has /v1",
			host:          "http://localhost:11434/v1",
			expectedHost:  "http://localhost:11434/v1",
			expectedLarge: "",
		},
		{
			name:          "missing /v1",
			host:          "http://localhost:11434",
			expectedHost:  "http://localhost:11434/v1",
			expectedLarge: "",
		},
		{
			name:          "has trailing slash",
			host:          "http://localhost:11434/",
			expectedHost:  "http://localhost:11434/v1",
			expectedLarge: "",
		},
		{
			name:          "empty hosts",
			host:          "",
			expectedHost:  "",
			expectedLarge: "",
		},
		{
			name:          "openai large host is normalized",
			host:          "http://a",
			largeProvider: ProviderOpenAI,
			largeHost:     "http://b",
			expectedHost:  "http://a/v1",
			expectedLarge: "http://b/v1",
		},
		{
			name:          "anthropic large host is left alone",
			host:          "http://a",
			largeProvider: ProviderAnthropic,
			largeHost:     "http://b",
			expectedHost:  "http://a/v1",
			expectedLarge: "http://b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				EmbeddingHost: tt.host,
				SmallHost:     tt.host,
				LargeProvider: tt.largeProvider,
				LargeHost:     tt.largeHost,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expectedHost, cfg.EmbeddingHost)
			assert.Equal(t, tt.expectedHost, cfg.SmallHost)
			assert.Equal(t, tt.expectedLarge, cfg.LargeHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			EmbeddingHost:  "http://localhost:11434",
			EmbeddingModel: "embed",
			SmallHost:      "http://localhost:11434",
			SmallModel:     "small",
			Temperature:    0.1,
			MaxTokens:      4096,
			Timeout:        time.Second,
		}
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid()

		err := cfg.Validate()
		assert.NoError(t, err)

		// Should also normalize
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.SmallHost)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"missing small host", func(c *Config) { c.SmallHost = "" }, "SmallHost"},
		{"missing small model", func(c *Config) { c.SmallModel = "" }, "SmallModel"},
		{"large provider without model", func(c *Config) { c.LargeProvider = ProviderAnthropic }, "LargeModel"},
		{"unknown large provider", func(c *Config) { c.LargeProvider = "gemini"; c.LargeModel = "x" }, "LargeProvider"},
		{"temperature too high", func(c *Config) { c.Temperature = 3 }, "Temperature"},
		{"max tokens zero", func(c *Config) { c.MaxTokens = 0 }, "MaxTokens"},
		{"timeout zero", func(c *Config) { c.Timeout = 0 }, "Timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	t.Run("large provider is case insensitive", func(t *testing.T) {
		cfg := valid()
		cfg.LargeProvider = " Anthropic "
		cfg.LargeModel = "claude"

		require.NoError(t, cfg.Validate())
		assert.Equal(t, ProviderAnthropic, cfg.LargeProvider)
	})
}

func TestConfigValidate_Integration(t *testing.T) {
	// Test that NewConfig produces a valid configuration
	cfg := NewConfig()
	err := cfg.Validate()
	require.NoError(t, err)

	// Test that DefaultConfig produces a valid configuration
	cfg = DefaultConfig()
	err = cfg.Validate()
	require.NoError(t, err)
}
