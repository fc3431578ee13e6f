package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/drorzp/justel-pipeline/ai"
	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage/sqlstore"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVars   []string           // Variable names, first set one wins
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"log_level", []string{"JUSTEL_LOG_LEVEL"}, validateEnvLogLevel},

		// Object storage
		{"s3.bucket", []string{"JUSTEL_S3_BUCKET", "S3_BUCKET_NAME"}, nil},
		{"s3.prefix", []string{"JUSTEL_S3_PREFIX"}, nil},
		{"s3.region", []string{"JUSTEL_S3_REGION", "AWS_REGION"}, nil},
		{"s3.endpoint", []string{"JUSTEL_S3_ENDPOINT"}, validateEnvURL},
		{"s3.use_path_style", []string{"JUSTEL_S3_USE_PATH_STYLE"}, validateEnvBool},
		{"s3.anonymous", []string{"JUSTEL_S3_ANONYMOUS"}, validateEnvBool},

		// Batch ingestion
		{"batch.checkpoint_path", []string{"JUSTEL_CHECKPOINT_PATH"}, nil},
		{"batch.work_dir", []string{"JUSTEL_WORK_DIR"}, nil},
		{"batch.error_dir", []string{"JUSTEL_ERROR_DIR"}, nil},
		{"batch.extension", []string{"JUSTEL_ARCHIVE_EXTENSION"}, validateEnvExtension},
		{"batch.workers", []string{"JUSTEL_BATCH_WORKERS"}, validateEnvPositiveInt},
		{"batch.max_failures", []string{"JUSTEL_MAX_FAILURES"}, validateEnvPositiveInt},
		{"batch.max_archive_attempts", []string{"JUSTEL_MAX_ARCHIVE_ATTEMPTS"}, validateEnvPositiveInt},
		{"batch.max_record_size", []string{"JUSTEL_MAX_RECORD_SIZE"}, validateEnvPositiveInt},
		{"batch.force", []string{"JUSTEL_FORCE"}, validateEnvBool},

		// Stores
		{"database.url", []string{"JUSTEL_DATABASE_URL", "DATABASE_URL"}, validateEnvDatabaseURL},
		{"database.schema", []string{"JUSTEL_DATABASE_SCHEMA"}, core.ValidateIdentifier},
		{"mongo.uri", []string{"JUSTEL_MONGO_URI", "MONGO_URI"}, validateEnvMongoURI},
		{"mongo.database", []string{"JUSTEL_MONGO_DATABASE"}, core.ValidateIdentifier},
		{"qdrant.host", []string{"JUSTEL_QDRANT_HOST", "QDRANT_HOST"}, nil},
		{"qdrant.port", []string{"JUSTEL_QDRANT_PORT", "QDRANT_PORT"}, validateEnvPort},
		{"qdrant.api_key", []string{"JUSTEL_QDRANT_API_KEY", "QDRANT_API_KEY"}, nil},
		{"qdrant.use_tls", []string{"JUSTEL_QDRANT_USE_TLS"}, validateEnvBool},
		{"qdrant.collection", []string{"JUSTEL_QDRANT_COLLECTION"}, nil},
		{"badger.path", []string{"JUSTEL_BADGER_PATH"}, nil},

		// AI backends
		{"ai.openai_api_key", []string{"JUSTEL_OPENAI_API_KEY", "OPENAI_API_KEY"}, nil},
		{"ai.anthropic_api_key", []string{"JUSTEL_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"}, nil},
		{"ai.embedding_host", []string{"JUSTEL_EMBEDDING_HOST"}, validateEnvURL},
		{"ai.embedding_model", []string{"JUSTEL_EMBEDDING_MODEL"}, nil},
		{"ai.small_host", []string{"JUSTEL_SMALL_HOST"}, validateEnvURL},
		{"ai.small_model", []string{"JUSTEL_SMALL_MODEL"}, nil},
		{"ai.large_provider", []string{"JUSTEL_LARGE_PROVIDER"}, validateEnvLargeProvider},
		{"ai.large_host", []string{"JUSTEL_LARGE_HOST"}, validateEnvURL},
		{"ai.large_model", []string{"JUSTEL_LARGE_MODEL"}, nil},
		{"ai.temperature", []string{"JUSTEL_TEMPERATURE"}, validateEnvTemperature},

		// Pipeline tuning
		{"transform.enabled", []string{"JUSTEL_TRANSFORM_ENABLED"}, validateEnvBool},
		{"transform.rate_limit", []string{"JUSTEL_TRANSFORM_RATE_LIMIT"}, validateEnvNonNegativeFloat},
		{"sync.workers", []string{"JUSTEL_SYNC_WORKERS"}, validateEnvPositiveInt},
		{"sync.embed_rate", []string{"JUSTEL_EMBED_RATE"}, validateEnvNonNegativeFloat},

		// Observability
		{"metrics.push_url", []string{"JUSTEL_METRICS_PUSH_URL"}, validateEnvURL},
		{"metrics.listen", []string{"JUSTEL_METRICS_LISTEN"}, nil},
		{"sentry.dsn", []string{"JUSTEL_SENTRY_DSN", "SENTRY_DSN"}, validateEnvURL},
		{"sentry.environment", []string{"JUSTEL_SENTRY_ENVIRONMENT"}, nil},
		{"schedule.cron", []string{"JUSTEL_SCHEDULE"}, nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		args := append([]string{binding.ConfigKey}, binding.EnvVars...)
		if err := v.BindEnv(args...); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVars[0], err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		for _, name := range binding.EnvVars {
			envValue := os.Getenv(name)
			if envValue == "" {
				continue
			}
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", name, err))
			}
			break
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars(v)
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateEnvPort(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", n)
	}
	return nil
}

func validateEnvNonNegativeFloat(value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f < 0 {
		return fmt.Errorf("must not be negative, got %g", f)
	}
	return nil
}

func validateEnvTemperature(value string) error {
	t, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid temperature: %w", err)
	}
	if t < 0 || t > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", t)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("must be one of: debug, info, warn, error")
}

func validateEnvLargeProvider(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case ai.ProviderNone, ai.ProviderOpenAI, ai.ProviderAnthropic:
		return nil
	}
	return fmt.Errorf("must be one of: %s, %s", ai.ProviderOpenAI, ai.ProviderAnthropic)
}

func validateEnvExtension(value string) error {
	if !strings.HasPrefix(value, ".") || len(value) < 2 {
		return fmt.Errorf("extension must start with a dot, got '%s'", value)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url must include scheme and host")
	}
	return nil
}

func validateEnvDatabaseURL(value string) error {
	_, err := sqlstore.Dialector(value)
	return err
}

func validateEnvMongoURI(value string) error {
	if !strings.HasPrefix(value, "mongodb://") && !strings.HasPrefix(value, "mongodb+srv://") {
		return fmt.Errorf("uri must start with mongodb:// or mongodb+srv://")
	}
	return nil
}
