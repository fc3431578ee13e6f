// Package config loads pipeline settings from an optional YAML file and the
// environment using viper.
//
// Every setting has a JUSTEL_* variable. The variable names used by earlier
// deployments (S3_BUCKET_NAME, OPENAI_API_KEY, ANTHROPIC_API_KEY, MONGO_URI,
// QDRANT_HOST, DATABASE_URL) are still honoured as fallbacks.
package config
