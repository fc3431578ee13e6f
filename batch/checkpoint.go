package batch

import (
	"maps"
	"slices"
	"time"
)

const (
	// DefaultMaxFailures bounds the failure log kept in a checkpoint.
	DefaultMaxFailures = 500

	// DefaultMaxArchiveAttempts bounds how often an archive that fails as
	// a whole is attempted before it is abandoned.
	DefaultMaxArchiveAttempts = 3
)

// Counters are the cumulative totals kept across runs.
type Counters struct {
	FilesProcessed   int `json:"filesProcessed"`
	FilesSucceeded   int `json:"filesSucceeded"`
	FilesFailed      int `json:"filesFailed"`
	RecordsProcessed int `json:"recordsProcessed"`
	RecordsSucceeded int `json:"recordsSucceeded"`
	RecordsFailed    int `json:"recordsFailed"`
}

// FailureEntry is one logged failure. RecordPath is empty when the whole
// archive failed.
type FailureEntry struct {
	Archive    string    `json:"archive"`
	RecordPath string    `json:"recordPath,omitempty"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// BatchCheckpoint is the persisted progress of the batch controller.
// Values are treated as immutable; use Apply to derive the next state.
type BatchCheckpoint struct {
	LastProcessedFile string         `json:"lastProcessedFile"`
	RunID             string         `json:"runId,omitempty"`
	Counters          Counters       `json:"counters"`
	Failures          []FailureEntry `json:"failures"`
	RetryArchives     []string       `json:"retryArchives,omitempty"`
	RetryAttempts     map[string]int `json:"retryAttempts,omitempty"`
	AbandonedArchives []string       `json:"abandonedArchives,omitempty"`
	LastUpdateTime    time.Time      `json:"lastUpdateTime"`
}

// ShouldProcess reports whether key is past the checkpoint.
func ShouldProcess(key string, cp BatchCheckpoint) bool {
	return cp.LastProcessedFile == "" || key > cp.LastProcessedFile
}

// NeedsRetry reports whether key failed as a whole in an earlier run and has
// not completed since.
func (cp BatchCheckpoint) NeedsRetry(key string) bool {
	return slices.Contains(cp.RetryArchives, key)
}

// IsAbandoned reports whether key used up its attempts. Abandoned archives
// are skipped until the checkpoint is reset.
func (cp BatchCheckpoint) IsAbandoned(key string) bool {
	return slices.Contains(cp.AbandonedArchives, key)
}

// Event is a checkpoint transition.
type Event interface {
	apply(cp BatchCheckpoint, maxFailures int) BatchCheckpoint
}

// RunStarted marks the start of a run.
type RunStarted struct {
	At time.Time
}

// ArchiveCompleted records an archive whose records were all attempted.
// Per-record failures are part of Summary.
type ArchiveCompleted struct {
	RunID   string
	Key     string
	Summary ArchiveSummary
	At      time.Time
}

// ArchiveFailed records an archive that could not be processed at all
// (download, extraction). It does not advance LastProcessedFile. The
// archive is queued for retry until it has failed MaxAttempts times, then
// abandoned. A zero MaxAttempts never abandons.
type ArchiveFailed struct {
	RunID       string
	Key         string
	Reason      string
	MaxAttempts int
	At          time.Time
}

// Reset clears the checkpoint.
type Reset struct {
	At time.Time
}

// Apply returns the checkpoint that results from ev. The input is not
// modified. The failure log keeps the newest DefaultMaxFailures entries.
func Apply(cp BatchCheckpoint, ev Event) BatchCheckpoint {
	return ApplyBounded(cp, ev, DefaultMaxFailures)
}

// ApplyBounded is Apply with an explicit failure log bound.
func ApplyBounded(cp BatchCheckpoint, ev Event, maxFailures int) BatchCheckpoint {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	next := cp
	next.Failures = slices.Clone(cp.Failures)
	next.RetryArchives = slices.Clone(cp.RetryArchives)
	next.RetryAttempts = maps.Clone(cp.RetryAttempts)
	next.AbandonedArchives = slices.Clone(cp.AbandonedArchives)
	return ev.apply(next, maxFailures)
}

func (e RunStarted) apply(cp BatchCheckpoint, _ int) BatchCheckpoint {
	cp.LastUpdateTime = e.At
	return cp
}

func (e ArchiveCompleted) apply(cp BatchCheckpoint, maxFailures int) BatchCheckpoint {
	if e.Key > cp.LastProcessedFile {
		cp.LastProcessedFile = e.Key
	}
	cp.RunID = e.RunID
	cp.Counters.FilesProcessed++
	cp.Counters.FilesSucceeded++
	cp.Counters.RecordsProcessed += e.Summary.Total
	cp.Counters.RecordsSucceeded += e.Summary.Successful
	cp.Counters.RecordsFailed += e.Summary.Failed

	for _, f := range e.Summary.Failures {
		cp.Failures = append(cp.Failures, FailureEntry{
			Archive:    e.Key,
			RecordPath: f.Path,
			Reason:     f.Reason,
			Timestamp:  e.At,
		})
	}
	cp.Failures = trimFailures(cp.Failures, maxFailures)
	cp.RetryArchives = removeKey(cp.RetryArchives, e.Key)
	cp.AbandonedArchives = removeKey(cp.AbandonedArchives, e.Key)
	delete(cp.RetryAttempts, e.Key)
	if len(cp.RetryAttempts) == 0 {
		cp.RetryAttempts = nil
	}
	cp.LastUpdateTime = e.At
	return cp
}

func (e ArchiveFailed) apply(cp BatchCheckpoint, maxFailures int) BatchCheckpoint {
	cp.RunID = e.RunID
	cp.Counters.FilesProcessed++
	cp.Counters.FilesFailed++
	cp.Failures = append(cp.Failures, FailureEntry{
		Archive:   e.Key,
		Reason:    e.Reason,
		Timestamp: e.At,
	})
	cp.Failures = trimFailures(cp.Failures, maxFailures)

	attempts := cp.RetryAttempts[e.Key] + 1
	if e.MaxAttempts > 0 && attempts >= e.MaxAttempts {
		cp.RetryArchives = removeKey(cp.RetryArchives, e.Key)
		delete(cp.RetryAttempts, e.Key)
		if len(cp.RetryAttempts) == 0 {
			cp.RetryAttempts = nil
		}
		cp.AbandonedArchives = addKey(cp.AbandonedArchives, e.Key)
	} else {
		if cp.RetryAttempts == nil {
			cp.RetryAttempts = make(map[string]int)
		}
		cp.RetryAttempts[e.Key] = attempts
		cp.RetryArchives = addKey(cp.RetryArchives, e.Key)
	}
	cp.LastUpdateTime = e.At
	return cp
}

func addKey(keys []string, key string) []string {
	if slices.Contains(keys, key) {
		return keys
	}
	keys = append(keys, key)
	slices.Sort(keys)
	return keys
}

func removeKey(keys []string, key string) []string {
	keys = slices.DeleteFunc(keys, func(k string) bool { return k == key })
	if len(keys) == 0 {
		return nil
	}
	return keys
}

func (e Reset) apply(_ BatchCheckpoint, _ int) BatchCheckpoint {
	return BatchCheckpoint{LastUpdateTime: e.At}
}

func trimFailures(failures []FailureEntry, limit int) []FailureEntry {
	if len(failures) <= limit {
		return failures
	}
	return slices.Clone(failures[len(failures)-limit:])
}
