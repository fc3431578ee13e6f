package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Settings is the complete pipeline configuration.
type Settings struct {
	LogLevel  string            `mapstructure:"log_level"`
	S3        S3Settings        `mapstructure:"s3"`
	Batch     BatchSettings     `mapstructure:"batch"`
	Database  DatabaseSettings  `mapstructure:"database"`
	Mongo     MongoSettings     `mapstructure:"mongo"`
	Qdrant    QdrantSettings    `mapstructure:"qdrant"`
	Badger    BadgerSettings    `mapstructure:"badger"`
	AI        AISettings        `mapstructure:"ai"`
	Transform TransformSettings `mapstructure:"transform"`
	Sync      SyncSettings      `mapstructure:"sync"`
	Titles    TitleSettings     `mapstructure:"titles"`
	Reembed   ReembedSettings   `mapstructure:"reembed"`
	Metrics   MetricsSettings   `mapstructure:"metrics"`
	Sentry    SentrySettings    `mapstructure:"sentry"`
	Schedule  ScheduleSettings  `mapstructure:"schedule"`
}

// S3Settings locates the archive bucket.
type S3Settings struct {
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	Anonymous    bool   `mapstructure:"anonymous"`
}

// BatchSettings controls archive ingestion.
type BatchSettings struct {
	CheckpointPath string `mapstructure:"checkpoint_path"`
	WorkDir        string `mapstructure:"work_dir"`
	ErrorDir       string `mapstructure:"error_dir"`
	Extension      string `mapstructure:"extension"`
	Workers        int    `mapstructure:"workers"`
	MaxFailures    int    `mapstructure:"max_failures"`
	MaxAttempts    int    `mapstructure:"max_archive_attempts"`
	MaxRecordSize  int64  `mapstructure:"max_record_size"`
	Force          bool   `mapstructure:"force"`
}

// DatabaseSettings locates the relational store.
type DatabaseSettings struct {
	URL      string `mapstructure:"url"`
	Schema   string `mapstructure:"schema"`
	Laws     string `mapstructure:"laws_table"`
	Content  string `mapstructure:"content_table"`
	Snapshot string `mapstructure:"snapshot_table"`
}

// MongoSettings locates the document store. An empty URI selects badger.
type MongoSettings struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// QdrantSettings locates the vector store. An empty host selects badger.
type QdrantSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
}

// BadgerSettings locates the local document and vector store.
type BadgerSettings struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// AISettings configures the embedding service and both LLM backends.
type AISettings struct {
	OpenAIAPIKey    string        `mapstructure:"openai_api_key"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	EmbeddingHost   string        `mapstructure:"embedding_host"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	SmallHost       string        `mapstructure:"small_host"`
	SmallModel      string        `mapstructure:"small_model"`
	LargeProvider   string        `mapstructure:"large_provider"`
	LargeHost       string        `mapstructure:"large_host"`
	LargeModel      string        `mapstructure:"large_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// TransformSettings configures the transformation router.
type TransformSettings struct {
	Enabled            bool          `mapstructure:"enabled"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	CallTimeout        time.Duration `mapstructure:"call_timeout"`
	RateLimit          float64       `mapstructure:"rate_limit"`
	SmallInputLimit    int           `mapstructure:"small_input_limit"`
	SmallOutputCeiling int           `mapstructure:"small_output_ceiling"`
	LargeOutputCeiling int           `mapstructure:"large_output_ceiling"`
}

// SyncSettings configures the multi-store upsert layer.
type SyncSettings struct {
	Workers   int     `mapstructure:"workers"`
	EmbedRate float64 `mapstructure:"embed_rate"`
}

// TitleSettings configures title cleaning.
type TitleSettings struct {
	BatchSize int `mapstructure:"batch_size"`
	Limit     int `mapstructure:"limit"`
	Workers   int `mapstructure:"workers"`
}

// ReembedSettings configures a full re-embedding run.
type ReembedSettings struct {
	BatchSize  int           `mapstructure:"batch_size"`
	Workers    int           `mapstructure:"workers"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// MetricsSettings configures Prometheus export.
type MetricsSettings struct {
	PushURL string `mapstructure:"push_url"`
	Listen  string `mapstructure:"listen"`
	Job     string `mapstructure:"job"`
}

// SentrySettings configures error reporting. An empty DSN disables it.
type SentrySettings struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// ScheduleSettings configures the long-running scheduler.
type ScheduleSettings struct {
	Cron string `mapstructure:"cron"`
}

// Load reads settings from path, or from justel.yaml in the usual locations
// when path is empty, then applies the environment. A missing default file
// is not an error; a missing explicit file is.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if err := configureEnvironmentVariables(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("justel")
		v.SetConfigType("yaml")
		for _, dir := range configPaths() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return settings, nil
}

func configPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "justel"))
	}
	return append(paths, "/etc/justel")
}
