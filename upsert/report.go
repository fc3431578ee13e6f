package upsert

import (
	"sync"
	"time"
)

// Store names used in reports and metrics.
const (
	StoreRelational = "relational"
	StoreDocument   = "document"
	StoreVector     = "vector"
)

// maxReportedErrors bounds Report.Errors.
const maxReportedErrors = 200

// StoreStats counts what happened to the change set in one store.
type StoreStats struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
}

// RecordError is one failed store write.
type RecordError struct {
	Key   string
	Store string
	Err   string
}

// Report summarizes a sync run.
type Report struct {
	New         int
	Changed     int
	Pending     int // unchanged but left over from an unfinished sync
	Synced      int // records that reached every store and left the pending set
	Restored    int
	Transformed int
	Stores      map[string]StoreStats
	Errors      []RecordError
	Duration    time.Duration
}

// Failed returns the number of failed writes over all stores.
func (r Report) Failed() int {
	n := 0
	for _, s := range r.Stores {
		n += s.Failed
	}
	return n
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeSkipped
)

// reportBuilder collects results from concurrent workers.
type reportBuilder struct {
	mu     sync.Mutex
	report Report
	// blocked holds article keys and law document numbers whose sync must
	// be retried next run.
	blocked map[string]bool
}

func newReportBuilder() *reportBuilder {
	return &reportBuilder{
		report: Report{Stores: map[string]StoreStats{
			StoreRelational: {},
			StoreDocument:   {},
			StoreVector:     {},
		}},
		blocked: make(map[string]bool),
	}
}

func (b *reportBuilder) add(store string, o outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.report.Stores[store]
	s.Processed++
	switch o {
	case outcomeSucceeded:
		s.Succeeded++
	case outcomeFailed:
		s.Failed++
	case outcomeSkipped:
		s.Skipped++
	}
	b.report.Stores[store] = s
}

// fail records a failure that keeps key pending.
func (b *reportBuilder) fail(store, key string, err error) {
	b.record(store, key, err)
	b.mu.Lock()
	b.blocked[key] = true
	b.mu.Unlock()
}

// record counts a failure without blocking key. Used for outcomes that a
// retry cannot change.
func (b *reportBuilder) record(store, key string, err error) {
	b.add(store, outcomeFailed)
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.report.Errors) < maxReportedErrors {
		b.report.Errors = append(b.report.Errors, RecordError{Key: key, Store: store, Err: err.Error()})
	}
}

// isBlocked reports whether any of keys failed in a way a retry may fix.
func (b *reportBuilder) isBlocked(keys ...string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		if b.blocked[k] {
			return true
		}
	}
	return false
}

func (b *reportBuilder) restored() {
	b.mu.Lock()
	b.report.Restored++
	b.mu.Unlock()
}

func (b *reportBuilder) transformed() {
	b.mu.Lock()
	b.report.Transformed++
	b.mu.Unlock()
}

func (b *reportBuilder) build(start time.Time) Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.report
	r.Duration = time.Since(start)
	return r
}
