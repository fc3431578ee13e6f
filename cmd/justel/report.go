package main

import (
	"fmt"
	"io"
	"slices"
	"time"

	justel "github.com/drorzp/justel-pipeline"
	"github.com/drorzp/justel-pipeline/batch"
	"github.com/drorzp/justel-pipeline/upsert"
)

func printProcessReport(w io.Writer, r justel.ProcessReport) {
	b := r.Batch
	fmt.Fprintf(w, "Snapshot: %d records\n", r.Snapshot)
	fmt.Fprintf(w, "Archives: listed=%d selected=%d completed=%d failed=%d abandoned=%d\n",
		b.Listed, b.Selected, b.Completed, b.Failed, b.Abandoned)
	fmt.Fprintf(w, "Records: total=%d succeeded=%d failed=%d (%v)\n",
		b.Records, b.RecordsSucceeded, b.RecordsFailed, b.Duration.Round(time.Millisecond))
	printSyncReport(w, r.Sync)
}

// printRetrySummary lists archives waiting for another attempt and those
// that ran out of attempts.
func printRetrySummary(w io.Writer, cp batch.BatchCheckpoint) {
	if len(cp.RetryArchives) == 0 && len(cp.AbandonedArchives) == 0 {
		return
	}
	fmt.Fprintf(w, "Pending retries: %d\n", len(cp.RetryArchives))
	for _, key := range cp.RetryArchives {
		fmt.Fprintf(w, "  %s (%d failed attempts)\n", key, cp.RetryAttempts[key])
	}
	if len(cp.AbandonedArchives) > 0 {
		fmt.Fprintf(w, "Abandoned: %d (reset to retry)\n", len(cp.AbandonedArchives))
		for _, key := range cp.AbandonedArchives {
			fmt.Fprintf(w, "  %s\n", key)
		}
	}
}

func printSyncReport(w io.Writer, r upsert.Report) {
	fmt.Fprintf(w, "Changes: new=%d changed=%d pending=%d restored=%d transformed=%d synced=%d (%v)\n",
		r.New, r.Changed, r.Pending, r.Restored, r.Transformed, r.Synced, r.Duration.Round(time.Millisecond))

	stores := make([]string, 0, len(r.Stores))
	for name := range r.Stores {
		stores = append(stores, name)
	}
	slices.Sort(stores)
	for _, name := range stores {
		s := r.Stores[name]
		fmt.Fprintf(w, "  %-10s processed=%d succeeded=%d skipped=%d failed=%d\n",
			name, s.Processed, s.Succeeded, s.Skipped, s.Failed)
	}

	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error %s [%s]: %s\n", e.Key, e.Store, e.Err)
	}
}
