package config

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.region", "eu-west-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.use_path_style", false)
	v.SetDefault("s3.anonymous", false)

	v.SetDefault("batch.checkpoint_path", "batch_checkpoint.json")
	v.SetDefault("batch.work_dir", "")
	v.SetDefault("batch.error_dir", "errors")
	v.SetDefault("batch.extension", ".zip")
	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.max_failures", 500)
	v.SetDefault("batch.max_archive_attempts", 3)
	v.SetDefault("batch.max_record_size", 256<<20)
	v.SetDefault("batch.force", false)

	v.SetDefault("database.url", "sqlite://justel.db")
	v.SetDefault("database.schema", "")
	v.SetDefault("database.laws_table", "laws")
	v.SetDefault("database.content_table", "article_content")
	v.SetDefault("database.snapshot_table", "article_content_snapshot")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "justel")

	v.SetDefault("qdrant.host", "")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.api_key", "")
	v.SetDefault("qdrant.use_tls", false)
	v.SetDefault("qdrant.collection", "justel_articles")

	v.SetDefault("badger.path", "data/badger")
	v.SetDefault("badger.in_memory", false)

	v.SetDefault("ai.openai_api_key", "")
	v.SetDefault("ai.anthropic_api_key", "")
	v.SetDefault("ai.embedding_host", "https://api.openai.com/v1")
	v.SetDefault("ai.embedding_model", "text-embedding-3-small")
	v.SetDefault("ai.small_host", "https://api.openai.com/v1")
	v.SetDefault("ai.small_model", "gpt-4o-mini")
	v.SetDefault("ai.large_provider", "")
	v.SetDefault("ai.large_host", "")
	v.SetDefault("ai.large_model", "")
	v.SetDefault("ai.temperature", 0.1)
	v.SetDefault("ai.max_tokens", 4096)
	v.SetDefault("ai.timeout", 30*time.Second)

	v.SetDefault("transform.enabled", true)
	v.SetDefault("transform.max_attempts", 3)
	v.SetDefault("transform.retry_delay", time.Second)
	v.SetDefault("transform.call_timeout", 30*time.Second)
	v.SetDefault("transform.rate_limit", 5.0)
	v.SetDefault("transform.small_input_limit", 12000)
	v.SetDefault("transform.small_output_ceiling", 16384)
	v.SetDefault("transform.large_output_ceiling", 64000)

	v.SetDefault("sync.workers", 8)
	v.SetDefault("sync.embed_rate", 20.0)

	v.SetDefault("titles.batch_size", 20)
	v.SetDefault("titles.limit", 0)
	v.SetDefault("titles.workers", 2)

	v.SetDefault("reembed.batch_size", 100)
	v.SetDefault("reembed.workers", 2)
	v.SetDefault("reembed.max_retries", 3)
	v.SetDefault("reembed.retry_delay", time.Second)

	v.SetDefault("metrics.push_url", "")
	v.SetDefault("metrics.listen", ":9108")
	v.SetDefault("metrics.job", "justel_pipeline")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("schedule.cron", "0 3 * * *")
}
