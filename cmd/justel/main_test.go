package main

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	justel "github.com/drorzp/justel-pipeline"
	"github.com/drorzp/justel-pipeline/batch"
	"github.com/drorzp/justel-pipeline/upsert"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

// unsetBucket clears every variable that could supply a bucket.
func unsetBucket(t *testing.T) {
	t.Helper()
	for _, name := range []string{"JUSTEL_S3_BUCKET", "S3_BUCKET_NAME"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestAppCommands(t *testing.T) {
	app := newApp()

	for _, name := range []string{"process", "status", "reset", "sync", "reembed", "clean-titles", "purge", "schedule"} {
		t.Run(name, func(t *testing.T) {
			cmd := findCommand(t, app, name)
			assert.NotNil(t, cmd.Action)
			assert.NotEmpty(t, cmd.Usage)
		})
	}

	t.Run("reembed defaults", func(t *testing.T) {
		cmd := findCommand(t, app, "reembed")
		defaults := map[string]int{}
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok {
				defaults[f.Name] = f.Value
			}
		}
		assert.Equal(t, map[string]int{"batch-size": 100, "workers": 2, "max-retries": 3}, defaults)
	})

	t.Run("purge requires a suffix", func(t *testing.T) {
		cmd := findCommand(t, app, "purge")
		var suffix *cli.StringFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "suffix" {
				suffix = f
			}
		}
		require.NotNil(t, suffix)
		assert.True(t, suffix.Required)
	})
}

func TestMissingBucket(t *testing.T) {
	unsetBucket(t)
	t.Chdir(t.TempDir())

	for _, args := range [][]string{
		{"justel", "status"},
		{"justel", "process"},
		{"justel", "--log-level", "error", "reset"},
	} {
		app := newApp()
		app.Writer = &bytes.Buffer{}
		err := app.Run(args)
		require.Error(t, err, args)
		assert.EqualError(t, err, "config: bucket is required")
	}
}

func TestMissingConfigFile(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"justel", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "status"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestReembedFlagValidation(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"justel", "reembed", "--batch-size", "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch-size must be greater than 0")
}

func TestConfigureLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	for _, level := range []string{"debug", "INFO", "warn", "error"} {
		assert.NoError(t, configureLogger(level), level)
	}
	err := configureLogger("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	app := newApp()
	err = app.Run([]string{"justel", "--log-level", "loud", "status"})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestCommandName(t *testing.T) {
	assert.Equal(t, "process", commandName([]string{"justel", "process"}))
	assert.Equal(t, "sync", commandName([]string{"justel", "-l", "debug", "sync"}))
	assert.Equal(t, "", commandName([]string{"justel"}))
}

func TestPrintProcessReport(t *testing.T) {
	var buf bytes.Buffer
	printProcessReport(&buf, justel.ProcessReport{
		Snapshot: 12,
		Batch:    batch.RunSummary{Listed: 3, Selected: 1, Completed: 1, Records: 4, RecordsSucceeded: 3, RecordsFailed: 1, Duration: time.Second},
		Sync: upsert.Report{
			New:     1,
			Changed: 2,
			Stores: map[string]upsert.StoreStats{
				upsert.StoreVector:   {Processed: 3, Succeeded: 2, Failed: 1},
				upsert.StoreDocument: {Processed: 3, Succeeded: 3},
			},
			Errors: []upsert.RecordError{{Key: "2003022532/2", Store: upsert.StoreVector, Err: "embed: timeout"}},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Snapshot: 12 records")
	assert.Contains(t, out, "listed=3 selected=1 completed=1 failed=0")
	assert.Contains(t, out, "total=4 succeeded=3 failed=1")
	assert.Contains(t, out, "new=1 changed=2")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("document")), bytes.Index(buf.Bytes(), []byte("vector ")))
	assert.Contains(t, out, "error 2003022532/2 [vector]: embed: timeout")
}

func TestPrintRetrySummary(t *testing.T) {
	t.Run("nothing pending", func(t *testing.T) {
		var buf bytes.Buffer
		printRetrySummary(&buf, batch.BatchCheckpoint{LastProcessedFile: "batch_0003.zip"})
		assert.Empty(t, buf.String())
	})

	t.Run("retries and abandoned", func(t *testing.T) {
		var buf bytes.Buffer
		printRetrySummary(&buf, batch.BatchCheckpoint{
			RetryArchives:     []string{"batch_0004.zip"},
			RetryAttempts:     map[string]int{"batch_0004.zip": 2},
			AbandonedArchives: []string{"batch_0001.zip"},
		})
		out := buf.String()
		assert.Contains(t, out, "Pending retries: 1")
		assert.Contains(t, out, "batch_0004.zip (2 failed attempts)")
		assert.Contains(t, out, "Abandoned: 1")
		assert.Contains(t, out, "batch_0001.zip")
	})
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	l := cronLogger{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Info("schedule", "entry", 1)
	l.Error(errors.New("boom"), "job failed", "entry", 1)

	out := buf.String()
	assert.Contains(t, out, "msg=schedule")
	assert.Contains(t, out, "msg=\"job failed\"")
	assert.Contains(t, out, "err=boom")
}
