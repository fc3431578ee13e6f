package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}

func scheduleCommand(c *cli.Context) error {
	ctx, stop := signalContext(c.Context)
	defer stop()

	s, err := openSession(c, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	spec := s.settings.Schedule.Cron
	if c.IsSet("cron") {
		spec = c.String("cron")
	}
	addr := s.settings.Metrics.Listen
	if c.IsSet("metrics-addr") {
		addr = c.String("metrics-addr")
	}

	logger := s.logger.With("component", "scheduler")
	run := newScheduledRun(ctx, s, logger)

	scheduler := cron.New(
		cron.WithLogger(cronLogger{logger: logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: logger})),
	)
	if _, err := scheduler.AddFunc(spec, run); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.metrics.Serve(gctx, addr)
	})
	g.Go(func() error {
		scheduler.Start()
		logger.Info("scheduler started", "cron", spec, "metrics", addr)
		if c.Bool("run-now") {
			run()
		}
		<-gctx.Done()
		<-scheduler.Stop().Done()
		logger.Info("scheduler stopped")
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// newScheduledRun returns the job the scheduler fires. Runs never overlap;
// failures are logged and reported but do not stop the scheduler.
func newScheduledRun(ctx context.Context, s *session, logger *slog.Logger) func() {
	var mu sync.Mutex
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}

		report, err := s.engine.Process(ctx)
		if err != nil {
			logger.Error("scheduled run failed", "err", err)
			s.reporter.CaptureError(err, "scheduler", nil)
			return
		}
		logger.Info("scheduled run finished",
			"archives", report.Batch.Completed,
			"records", report.Batch.Records,
			"new", report.Sync.New,
			"changed", report.Sync.Changed,
			"failed_writes", report.Sync.Failed())
		if err := s.metrics.Push(ctx, s.settings.Metrics.PushURL, s.settings.Metrics.Job); err != nil {
			logger.Debug("metrics push skipped", "err", err)
		}
	}
}
