// Package metrics provides Prometheus metrics for the pipeline stages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status labels shared by the pipeline counters.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusRestored  = "restored"
	StatusCapacity  = "capacity"
	StatusInvalid   = "validation_failed"
	StatusRetryable = "retryable"
)

// PipelineMetrics contains Prometheus metrics for one pipeline process.
// All Record methods are safe to call on a nil receiver.
type PipelineMetrics struct {
	registry *prometheus.Registry

	archivesTotal       *prometheus.CounterVec
	recordsTotal        *prometheus.CounterVec
	backendCallsTotal   *prometheus.CounterVec
	backendCallDuration *prometheus.HistogramVec
	transformsTotal     *prometheus.CounterVec
	storeWritesTotal    *prometheus.CounterVec
	embeddingsTotal     *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
}

// NewPipelineMetrics creates and registers new pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Registry returns the registry the metrics were registered with.
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *PipelineMetrics) initMetrics() {
	m.archivesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "justel_archives_total",
			Help: "Total number of archives handled by the batch controller",
		},
		[]string{"status"}, // success, failed, skipped
	)

	m.recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "justel_records_total",
			Help: "Total number of archive records handled",
		},
		[]string{"status"},
	)

	m.backendCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "justel_backend_calls_total",
			Help: "Total number of language model calls by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	m.backendCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "justel_backend_call_duration_seconds",
			Help: "Time taken by a single language model call",
			// 250ms to ~2 minutes
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"backend"},
	)

	m.transformsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "justel_transforms_total",
			Help: "Total number of transformation results by status",
		},
		[]string{"status"},
	)

	m.storeWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "justel_store_writes_total",
			Help: "Total number of downstream store writes by store and status",
		},
		[]string{"store", "status"},
	)

	m.embeddingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "justel_embeddings_total",
			Help: "Total number of vector upserts by whether an embedding was computed",
		},
		[]string{"status"}, // success, skipped, failed
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "justel_stage_duration_seconds",
			Help: "Wall time of a pipeline stage",
			// 1s to ~4.5h
			Buckets: prometheus.ExponentialBuckets(1, 2.5, 10),
		},
		[]string{"stage"},
	)
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.archivesTotal.Describe(ch)
	m.recordsTotal.Describe(ch)
	m.backendCallsTotal.Describe(ch)
	m.backendCallDuration.Describe(ch)
	m.transformsTotal.Describe(ch)
	m.storeWritesTotal.Describe(ch)
	m.embeddingsTotal.Describe(ch)
	m.stageDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.archivesTotal.Collect(ch)
	m.recordsTotal.Collect(ch)
	m.backendCallsTotal.Collect(ch)
	m.backendCallDuration.Collect(ch)
	m.transformsTotal.Collect(ch)
	m.storeWritesTotal.Collect(ch)
	m.embeddingsTotal.Collect(ch)
	m.stageDuration.Collect(ch)
}

// RecordArchive records one archive outcome
func (m *PipelineMetrics) RecordArchive(status string) {
	if m == nil {
		return
	}
	m.archivesTotal.WithLabelValues(status).Inc()
}

// RecordRecords records n archive records with the same outcome
func (m *PipelineMetrics) RecordRecords(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsTotal.WithLabelValues(status).Add(float64(n))
}

// RecordBackendCall records one language model call and its duration
func (m *PipelineMetrics) RecordBackendCall(backend, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.backendCallsTotal.WithLabelValues(backend, outcome).Inc()
	m.backendCallDuration.WithLabelValues(backend).Observe(seconds)
}

// RecordTransform records the final status of one transformation
func (m *PipelineMetrics) RecordTransform(status string) {
	if m == nil {
		return
	}
	m.transformsTotal.WithLabelValues(status).Inc()
}

// RecordStoreWrite records one write against a downstream store
func (m *PipelineMetrics) RecordStoreWrite(store, status string) {
	if m == nil {
		return
	}
	m.storeWritesTotal.WithLabelValues(store, status).Inc()
}

// RecordEmbedding records one vector upsert decision
func (m *PipelineMetrics) RecordEmbedding(status string) {
	if m == nil {
		return
	}
	m.embeddingsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records the wall time of a pipeline stage
func (m *PipelineMetrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}
