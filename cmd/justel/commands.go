package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/drorzp/justel-pipeline/batch"
	"github.com/drorzp/justel-pipeline/config"
)

func processCommand(c *cli.Context) error {
	ctx, stop := signalContext(c.Context)
	defer stop()

	s, err := openSession(c, func(cfg *config.Settings) {
		if c.Bool("force") {
			cfg.Batch.Force = true
		}
	})
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.engine.Process(ctx)
	printProcessReport(c.App.Writer, report)
	if err != nil {
		return fmt.Errorf("process failed: %w", err)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	s, err := openSession(c, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	state, err := s.engine.Status()
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}
	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	// stderr keeps stdout valid JSON
	printRetrySummary(c.App.ErrWriter, state)
	return nil
}

func resetCommand(c *cli.Context) error {
	s, err := openSession(c, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if c.Bool("break-lock") {
		if err := batch.BreakRunLock(s.settings.Batch.CheckpointPath); err != nil {
			return fmt.Errorf("failed to remove run lock: %w", err)
		}
	}
	if err := s.engine.Reset(); err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Checkpoint reset: %s\n", s.settings.Batch.CheckpointPath)
	return nil
}

func syncCommand(c *cli.Context) error {
	ctx, stop := signalContext(c.Context)
	defer stop()

	s, err := openSession(c, func(cfg *config.Settings) {
		if c.Bool("no-transform") {
			cfg.Transform.Enabled = false
		}
	})
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.engine.Sync(ctx)
	printSyncReport(c.App.Writer, report)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx, stop := signalContext(c.Context)
	defer stop()

	// Validate flags
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if c.Int("workers") <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if c.Int("max-retries") <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	s, err := openSession(c, func(cfg *config.Settings) {
		cfg.Reembed.BatchSize = c.Int("batch-size")
		cfg.Reembed.Workers = c.Int("workers")
		cfg.Reembed.MaxRetries = c.Int("max-retries")
		cfg.Reembed.RetryDelay = c.Duration("retry-delay")
	})
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", s.settings.AI.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", s.settings.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	if err := s.engine.Reembed(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func cleanTitlesCommand(c *cli.Context) error {
	ctx, stop := signalContext(c.Context)
	defer stop()

	if c.Int("limit") < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	s, err := openSession(c, func(cfg *config.Settings) {
		if c.IsSet("limit") {
			cfg.Titles.Limit = c.Int("limit")
		}
	})
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.engine.CleanTitles(ctx)
	fmt.Fprintf(c.App.Writer, "Titles: processed=%d cleaned=%d failed=%d\n",
		report.Processed, report.Cleaned, report.Failed)
	if err != nil {
		return fmt.Errorf("title cleaning failed: %w", err)
	}
	return nil
}

func purgeCommand(c *cli.Context) error {
	ctx, stop := signalContext(c.Context)
	defer stop()

	suffix := c.String("suffix")
	if suffix == "" {
		return fmt.Errorf("suffix must not be empty")
	}

	s, err := openSession(c, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.engine.Purge(ctx, suffix)
	fmt.Fprintf(c.App.Writer, "Deleted %d objects ending in %q\n", n, suffix)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	return nil
}
