package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrorSummaryFile is written next to the failed records of an archive.
const ErrorSummaryFile = "error_summary.json"

type errorSummary struct {
	Archive     string          `json:"archive"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Failed      int             `json:"failed"`
	Failures    []RecordFailure `json:"failures"`
}

// quarantine moves failed records into <errorDir>/<archive>/ and writes the
// error summary there. Records are never deleted: a record that cannot be
// moved stays in place and is still reported.
func (c *Controller) quarantine(key, extractDir string, failed []failedRecord) []RecordFailure {
	dest := filepath.Join(c.errorDir, archiveName(key))
	failures := make([]RecordFailure, 0, len(failed))

	if err := os.MkdirAll(dest, 0o755); err != nil {
		c.logger.Error("failed to create error directory", "dir", dest, "err", err)
	}
	for _, f := range failed {
		rel, err := filepath.Rel(extractDir, f.path)
		if err != nil {
			rel = filepath.Base(f.path)
		}
		failures = append(failures, RecordFailure{Path: filepath.ToSlash(rel), Reason: f.err.Error()})

		if err := moveFile(f.path, filepath.Join(dest, rel)); err != nil {
			c.logger.Error("failed to move record to error directory", "record", rel, "err", err)
		}
	}

	summary := errorSummary{
		Archive:     key,
		GeneratedAt: c.now(),
		Failed:      len(failures),
		Failures:    failures,
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(dest, ErrorSummaryFile), data, 0o644)
	}
	if err != nil {
		c.logger.Error("failed to write error summary", "archive", key, "err", err)
	}
	return failures
}

// moveFile renames src to dst, copying across file systems when needed.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
