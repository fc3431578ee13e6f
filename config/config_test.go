package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drorzp/justel-pipeline/ai"
)

// clearEnv unsets every bound variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, b := range getEnvBindings() {
		for _, name := range b.EnvVars {
			if _, ok := os.LookupEnv(name); ok {
				t.Setenv(name, "")
				os.Unsetenv(name)
			}
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "justel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "batch_checkpoint.json", s.Batch.CheckpointPath)
	assert.Equal(t, ".zip", s.Batch.Extension)
	assert.Equal(t, 4, s.Batch.Workers)
	assert.Equal(t, 500, s.Batch.MaxFailures)
	assert.Equal(t, 3, s.Batch.MaxAttempts)
	assert.Equal(t, int64(256<<20), s.Batch.MaxRecordSize)
	assert.Equal(t, "sqlite://justel.db", s.Database.URL)
	assert.Equal(t, 6334, s.Qdrant.Port)
	assert.Equal(t, 30*time.Second, s.AI.Timeout)
	assert.True(t, s.Transform.Enabled)
	assert.Equal(t, 12000, s.Transform.SmallInputLimit)
	assert.Empty(t, s.S3.Bucket)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
log_level: debug
s3:
  bucket: justel-archives
  prefix: exports/
  endpoint: http://localhost:9000
  use_path_style: true
batch:
  workers: 2
  checkpoint_path: /var/lib/justel/checkpoint.json
ai:
  large_provider: anthropic
  large_model: claude-sonnet-4-5
  timeout: 45s
transform:
  retry_delay: 250ms
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "justel-archives", s.S3.Bucket)
	assert.Equal(t, "exports/", s.S3.Prefix)
	assert.True(t, s.S3.UsePathStyle)
	assert.Equal(t, 2, s.Batch.Workers)
	assert.Equal(t, "/var/lib/justel/checkpoint.json", s.Batch.CheckpointPath)
	assert.Equal(t, "anthropic", s.AI.LargeProvider)
	assert.Equal(t, 45*time.Second, s.AI.Timeout)
	assert.Equal(t, 250*time.Millisecond, s.Transform.RetryDelay)
	// untouched keys keep their defaults
	assert.Equal(t, 8, s.Sync.Workers)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	t.Run("legacy names", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("S3_BUCKET_NAME", "legacy-bucket")
		t.Setenv("OPENAI_API_KEY", "sk-openai")
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
		t.Setenv("MONGO_URI", "mongodb://localhost:27017")
		t.Setenv("QDRANT_HOST", "qdrant.internal")
		t.Setenv("DATABASE_URL", "postgres://justel@db/justel")

		s, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "legacy-bucket", s.S3.Bucket)
		assert.Equal(t, "sk-openai", s.AI.OpenAIAPIKey)
		assert.Equal(t, "sk-ant", s.AI.AnthropicAPIKey)
		assert.Equal(t, "mongodb://localhost:27017", s.Mongo.URI)
		assert.Equal(t, "qdrant.internal", s.Qdrant.Host)
		assert.Equal(t, "postgres://justel@db/justel", s.Database.URL)
	})

	t.Run("prefixed names win over legacy names", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("S3_BUCKET_NAME", "legacy-bucket")
		t.Setenv("JUSTEL_S3_BUCKET", "new-bucket")

		s, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "new-bucket", s.S3.Bucket)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		clearEnv(t)
		path := writeConfig(t, "s3:\n  bucket: from-file\nbatch:\n  workers: 2\n")
		t.Setenv("JUSTEL_S3_BUCKET", "from-env")
		t.Setenv("JUSTEL_BATCH_WORKERS", "6")

		s, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", s.S3.Bucket)
		assert.Equal(t, 6, s.Batch.Workers)
	})

	t.Run("invalid values are reported", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("JUSTEL_BATCH_WORKERS", "zero")
		t.Setenv("DATABASE_URL", "oracle://db")

		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JUSTEL_BATCH_WORKERS")
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Settings {
		clearEnv(t)
		t.Chdir(t.TempDir())
		s, err := Load("")
		require.NoError(t, err)
		s.S3.Bucket = "justel"
		return s
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid(t).Validate())
	})

	t.Run("missing bucket", func(t *testing.T) {
		s := valid(t)
		s.S3.Bucket = ""
		err := s.Validate()
		assert.ErrorIs(t, err, ErrBucketRequired)
		assert.EqualError(t, err, "config: bucket is required")
	})

	t.Run("missing checkpoint", func(t *testing.T) {
		s := valid(t)
		s.Batch.CheckpointPath = " "
		assert.ErrorIs(t, s.Validate(), ErrCheckpointRequired)
	})

	t.Run("bad table name", func(t *testing.T) {
		s := valid(t)
		s.Database.Content = "content; DROP TABLE laws"
		assert.Error(t, s.Validate())
	})

	t.Run("bad schedule", func(t *testing.T) {
		s := valid(t)
		s.Schedule.Cron = "every day"
		assert.ErrorContains(t, s.Validate(), "schedule")
	})

	t.Run("zero record size", func(t *testing.T) {
		s := valid(t)
		s.Batch.MaxRecordSize = 0
		assert.ErrorContains(t, s.Validate(), "max record size")
	})

	t.Run("unknown provider", func(t *testing.T) {
		s := valid(t)
		s.AI.LargeProvider = "mistral"
		assert.ErrorContains(t, s.Validate(), "large provider")
	})
}

func TestAIConfig(t *testing.T) {
	base := Settings{AI: AISettings{
		OpenAIAPIKey:    "sk-openai",
		AnthropicAPIKey: "sk-ant",
		EmbeddingHost:   "https://api.openai.com/v1",
		EmbeddingModel:  "text-embedding-3-small",
		SmallHost:       "https://api.openai.com/v1",
		SmallModel:      "gpt-4o-mini",
		Temperature:     0.2,
		MaxTokens:       2048,
		Timeout:         time.Minute,
	}}

	t.Run("small only", func(t *testing.T) {
		s := base
		cfg := s.AIConfig()
		require.NoError(t, cfg.Validate())
		assert.False(t, cfg.HasLarge())
		assert.Equal(t, "sk-openai", cfg.EmbeddingAPIKey)
		assert.Equal(t, "sk-openai", cfg.SmallAPIKey)
		assert.Equal(t, 0.2, cfg.Temperature)
		assert.Equal(t, 2048, cfg.MaxTokens)
		assert.Equal(t, time.Minute, cfg.Timeout)
	})

	t.Run("anthropic large backend", func(t *testing.T) {
		s := base
		s.AI.LargeProvider = "Anthropic"
		s.AI.LargeModel = "claude-sonnet-4-5"
		cfg := s.AIConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, ai.ProviderAnthropic, cfg.LargeProvider)
		assert.Equal(t, "sk-ant", cfg.LargeAPIKey)
	})

	t.Run("openai large backend defaults to the small host", func(t *testing.T) {
		s := base
		s.AI.LargeProvider = "openai"
		s.AI.LargeModel = "gpt-4.1"
		cfg := s.AIConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "https://api.openai.com/v1", cfg.LargeHost)
		assert.Equal(t, "sk-openai", cfg.LargeAPIKey)
	})
}
