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


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/drorzp/justel-pipeline/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const reporterKey = "reporter"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		if r, ok := app.Metadata[reporterKey].(*telemetry.Reporter); ok {
			r.CaptureError(err, "cli", map[string]string{"command": commandName(os.Args)})
			r.Flush(2 * time.Second)
		}
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "justel",
		Usage:    "Incremental sync of Justel legal documents into relational, document and vector stores",
		Version:  version,
		Metadata: map[string]any{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (default: ./justel.yaml if present)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "process",
				Usage:  "Snapshot, ingest pending archives and sync the changed records",
				Action: processCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Rewrite articles even when their source is unchanged",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Print the batch checkpoint",
				Action: statusCommand,
			},
			{
				Name:   "reset",
				Usage:  "Clear the batch checkpoint so the next run starts from the first archive",
				Action: resetCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "break-lock",
						Usage: "Also remove a stale run lock left by a crashed process",
					},
				},
			},
			{
				Name:   "sync",
				Usage:  "Sync changed records into the document and vector stores without ingesting",
				Action: syncCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-transform",
						Usage: "Skip markup repair",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed every content record with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to embed in each call",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of batches embedded concurrently",
						Value: 2,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for each embedding call",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "clean-titles",
				Usage:  "Generate display titles for laws that have none",
				Action: cleanTitlesCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Stop after this many laws (0 means all)",
					},
				},
			},
			{
				Name:   "purge",
				Usage:  "Delete objects under the prefix whose key ends with a suffix",
				Action: purgeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "suffix",
						Usage:    "Key suffix to delete, e.g. .json",
						Required: true,
					},
				},
			},
			{
				Name:   "schedule",
				Usage:  "Run process on a cron schedule and serve metrics",
				Action: scheduleCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "cron",
						Usage: "Cron expression (overrides schedule.cron)",
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Listen address for /metrics (overrides metrics.listen)",
					},
					&cli.BoolFlag{
						Name:  "run-now",
						Usage: "Run once immediately before waiting for the schedule",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	return configureLogger(c.String("log-level"))
}

func configureLogger(levelStr string) error {
	// Normalize to lowercase
	levelStr = strings.ToLower(levelStr)

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func commandName(args []string) string {
	for _, a := range args[1:] {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return ""
}
