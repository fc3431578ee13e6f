package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		validate func(string) error
		value    string
		wantErr  bool
	}{
		{"bool true", validateEnvBool, "true", false},
		{"bool with spaces", validateEnvBool, " 1 ", false},
		{"bool yes", validateEnvBool, "yes", true},
		{"positive int", validateEnvPositiveInt, "8", false},
		{"zero int", validateEnvPositiveInt, "0", true},
		{"not an int", validateEnvPositiveInt, "eight", true},
		{"port", validateEnvPort, "6334", false},
		{"port out of range", validateEnvPort, "70000", true},
		{"rate", validateEnvNonNegativeFloat, "2.5", false},
		{"negative rate", validateEnvNonNegativeFloat, "-1", true},
		{"temperature", validateEnvTemperature, "0.7", false},
		{"temperature too high", validateEnvTemperature, "3", true},
		{"log level", validateEnvLogLevel, "DEBUG", false},
		{"log level unknown", validateEnvLogLevel, "trace", true},
		{"provider anthropic", validateEnvLargeProvider, "anthropic", false},
		{"provider unknown", validateEnvLargeProvider, "mistral", true},
		{"extension", validateEnvExtension, ".zip", false},
		{"extension without dot", validateEnvExtension, "zip", true},
		{"url", validateEnvURL, "http://localhost:9000", false},
		{"url without scheme", validateEnvURL, "localhost:9000", true},
		{"sqlite url", validateEnvDatabaseURL, "sqlite://justel.db", false},
		{"mysql url", validateEnvDatabaseURL, "mysql://u:p@tcp(db:3306)/justel", false},
		{"unknown driver", validateEnvDatabaseURL, "oracle://db", true},
		{"mongo uri", validateEnvMongoURI, "mongodb+srv://cluster.example.net", false},
		{"mongo uri wrong scheme", validateEnvMongoURI, "http://mongo", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvBindingsHaveNames(t *testing.T) {
	seen := map[string]bool{}
	for _, b := range getEnvBindings() {
		assert.NotEmpty(t, b.EnvVars, b.ConfigKey)
		assert.False(t, seen[b.ConfigKey], "duplicate key %s", b.ConfigKey)
		seen[b.ConfigKey] = true
	}
}
