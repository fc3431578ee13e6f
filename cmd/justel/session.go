package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	justel "github.com/drorzp/justel-pipeline"
	"github.com/drorzp/justel-pipeline/config"
	"github.com/drorzp/justel-pipeline/metrics"
	"github.com/drorzp/justel-pipeline/telemetry"
)

// session is what every command needs: validated settings, an engine, and
// the metrics and error reporting around it.
type session struct {
	settings *config.Settings
	engine   *justel.Engine
	metrics  *metrics.PipelineMetrics
	reporter *telemetry.Reporter
	logger   *slog.Logger
}

// loadSettings reads the config file named by --config and validates it.
func loadSettings(c *cli.Context) (*config.Settings, error) {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if !c.IsSet("log-level") && settings.LogLevel != "" {
		if err := configureLogger(settings.LogLevel); err != nil {
			return nil, err
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// openSession loads settings, lets adjust tweak them, then opens the engine.
func openSession(c *cli.Context, adjust func(*config.Settings)) (*session, error) {
	settings, err := loadSettings(c)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(settings)
	}
	logger := slog.Default()

	reporter, err := telemetry.New(telemetry.Config{
		DSN:         settings.Sentry.DSN,
		Environment: settings.Sentry.Environment,
		SampleRate:  settings.Sentry.SampleRate,
		Release:     "justel-pipeline@" + version,
	}, logger)
	if err != nil {
		logger.Warn("error reporting disabled", "err", err)
	}
	if reporter != nil {
		c.App.Metadata[reporterKey] = reporter
	}

	m, err := metrics.NewPipelineMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	engine, err := justel.NewEngine(c.Context, settings,
		justel.WithMetrics(m),
		justel.WithReporter(reporter),
		justel.WithProgress(os.Stderr),
		justel.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}

	return &session{
		settings: settings,
		engine:   engine,
		metrics:  m,
		reporter: reporter,
		logger:   logger,
	}, nil
}

// Close pushes metrics, flushes error reports and closes the engine.
func (r *session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.metrics.Push(ctx, r.settings.Metrics.PushURL, r.settings.Metrics.Job)
	r.reporter.Flush(2 * time.Second)
	return r.engine.Close()
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
