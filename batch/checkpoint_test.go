package batch

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestShouldProcess(t *testing.T) {
	tests := []struct {
		name string
		key  string
		last string
		want bool
	}{
		{"empty checkpoint", "batch_0001.zip", "", true},
		{"after last", "batch_0006.zip", "batch_0005.zip", true},
		{"equal to last", "batch_0005.zip", "batch_0005.zip", false},
		{"before last", "batch_0004.zip", "batch_0005.zip", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldProcess(tt.key, BatchCheckpoint{LastProcessedFile: tt.last})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_ArchiveCompleted(t *testing.T) {
	start := BatchCheckpoint{LastProcessedFile: "batch_0004.zip"}
	next := Apply(start, ArchiveCompleted{
		RunID: "run-1",
		Key:   "batch_0005.zip",
		Summary: ArchiveSummary{
			Total:      3,
			Successful: 2,
			Failed:     1,
			Failures:   []RecordFailure{{Path: "doc_b.json", Reason: "bad json"}},
		},
		At: t0,
	})

	assert.Equal(t, "batch_0005.zip", next.LastProcessedFile)
	assert.Equal(t, "run-1", next.RunID)
	assert.Equal(t, Counters{
		FilesProcessed:   1,
		FilesSucceeded:   1,
		RecordsProcessed: 3,
		RecordsSucceeded: 2,
		RecordsFailed:    1,
	}, next.Counters)
	require.Len(t, next.Failures, 1)
	assert.Equal(t, FailureEntry{Archive: "batch_0005.zip", RecordPath: "doc_b.json", Reason: "bad json", Timestamp: t0}, next.Failures[0])
	assert.Equal(t, t0, next.LastUpdateTime)

	// input untouched
	assert.Equal(t, "batch_0004.zip", start.LastProcessedFile)
	assert.Empty(t, start.Failures)
}

func TestApply_NeverMovesBackwards(t *testing.T) {
	start := BatchCheckpoint{LastProcessedFile: "batch_0006.zip"}
	next := Apply(start, ArchiveCompleted{Key: "batch_0003.zip", At: t0})
	assert.Equal(t, "batch_0006.zip", next.LastProcessedFile)
}

func TestApply_ArchiveFailed(t *testing.T) {
	start := BatchCheckpoint{LastProcessedFile: "batch_0005.zip"}
	next := Apply(start, ArchiveFailed{Key: "batch_0006.zip", Reason: "download failed", At: t0})

	assert.Equal(t, "batch_0005.zip", next.LastProcessedFile)
	assert.Equal(t, 1, next.Counters.FilesFailed)
	assert.Equal(t, 1, next.Counters.FilesProcessed)
	require.Len(t, next.Failures, 1)
	assert.Empty(t, next.Failures[0].RecordPath)
	assert.True(t, next.NeedsRetry("batch_0006.zip"))

	t.Run("repeated failure is listed once", func(t *testing.T) {
		again := Apply(next, ArchiveFailed{Key: "batch_0006.zip", Reason: "download failed", At: t0})
		assert.Equal(t, []string{"batch_0006.zip"}, again.RetryArchives)
		assert.Equal(t, 2, again.Counters.FilesFailed)
	})

	t.Run("completion clears retry", func(t *testing.T) {
		done := Apply(next, ArchiveCompleted{Key: "batch_0006.zip", At: t0})
		assert.False(t, done.NeedsRetry("batch_0006.zip"))
		assert.Equal(t, "batch_0006.zip", done.LastProcessedFile)
	})
}

func TestApply_ArchiveAttemptsBound(t *testing.T) {
	const key = "batch_0006.zip"
	fail := ArchiveFailed{Key: key, Reason: "zip: not a valid zip file", MaxAttempts: 3, At: t0}

	cp := Apply(BatchCheckpoint{}, fail)
	assert.True(t, cp.NeedsRetry(key))
	assert.Equal(t, 1, cp.RetryAttempts[key])

	cp = Apply(cp, fail)
	assert.True(t, cp.NeedsRetry(key))
	assert.Equal(t, 2, cp.RetryAttempts[key])

	cp = Apply(cp, fail)
	assert.False(t, cp.NeedsRetry(key))
	assert.True(t, cp.IsAbandoned(key))
	assert.Nil(t, cp.RetryAttempts)
	assert.Equal(t, []string{key}, cp.AbandonedArchives)
	assert.Equal(t, 3, cp.Counters.FilesFailed)

	t.Run("input untouched", func(t *testing.T) {
		before := Apply(BatchCheckpoint{}, fail)
		_ = Apply(before, fail)
		assert.Equal(t, 1, before.RetryAttempts[key])
	})

	t.Run("completion clears attempts", func(t *testing.T) {
		partial := Apply(Apply(BatchCheckpoint{}, fail), fail)
		done := Apply(partial, ArchiveCompleted{Key: key, At: t0})
		assert.Nil(t, done.RetryAttempts)
		assert.Empty(t, done.RetryArchives)
	})

	t.Run("reset clears abandoned", func(t *testing.T) {
		assert.False(t, Apply(cp, Reset{At: t0}).IsAbandoned(key))
	})

	t.Run("zero bound retries forever", func(t *testing.T) {
		unbounded := BatchCheckpoint{}
		for range 10 {
			unbounded = Apply(unbounded, ArchiveFailed{Key: key, Reason: "x", At: t0})
		}
		assert.True(t, unbounded.NeedsRetry(key))
		assert.Equal(t, 10, unbounded.RetryAttempts[key])
	})
}

func TestApply_BoundedFailureLog(t *testing.T) {
	var cp BatchCheckpoint
	for i := range 12 {
		cp = ApplyBounded(cp, ArchiveFailed{Key: fmt.Sprintf("batch_%04d.zip", i), Reason: "x", At: t0}, 5)
	}
	require.Len(t, cp.Failures, 5)
	assert.Equal(t, "batch_0007.zip", cp.Failures[0].Archive)
	assert.Equal(t, "batch_0011.zip", cp.Failures[4].Archive)
	assert.Equal(t, 12, cp.Counters.FilesFailed)
}

func TestApply_Reset(t *testing.T) {
	cp := BatchCheckpoint{
		LastProcessedFile: "batch_0009.zip",
		Counters:          Counters{FilesProcessed: 9},
		Failures:          []FailureEntry{{Archive: "batch_0002.zip"}},
		RetryArchives:     []string{"batch_0002.zip"},
	}
	next := Apply(cp, Reset{At: t0})
	assert.Equal(t, BatchCheckpoint{LastUpdateTime: t0}, next)
}

func TestApply_RunStartedOnlyStamps(t *testing.T) {
	cp := BatchCheckpoint{LastProcessedFile: "batch_0002.zip", Counters: Counters{FilesProcessed: 2}}
	next := Apply(cp, RunStarted{At: t0})

	want := cp
	want.LastUpdateTime = t0
	assert.Equal(t, want, next)
}
