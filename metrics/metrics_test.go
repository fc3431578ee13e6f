package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *PipelineMetrics {
	t.Helper()
	m, err := NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestNewPipelineMetrics_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPipelineMetrics(reg)
	require.NoError(t, err)

	_, err = NewPipelineMetrics(reg)
	assert.Error(t, err, "registering twice on one registry should fail")
}

func TestPipelineMetrics_Counters(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordArchive(StatusSuccess)
	m.RecordArchive(StatusSuccess)
	m.RecordArchive(StatusFailed)
	m.RecordRecords(StatusSuccess, 7)
	m.RecordRecords(StatusFailed, 0)
	m.RecordBackendCall("small", "ok", 0.5)
	m.RecordTransform(StatusSkipped)
	m.RecordStoreWrite("mongo", StatusSuccess)
	m.RecordEmbedding(StatusSkipped)
	m.ObserveStage("sync", 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.archivesTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.archivesTotal.WithLabelValues(StatusFailed)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.recordsTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.recordsTotal.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendCallsTotal.WithLabelValues("small", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transformsTotal.WithLabelValues(StatusSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeWritesTotal.WithLabelValues("mongo", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddingsTotal.WithLabelValues(StatusSkipped)))
}

func TestPipelineMetrics_NilReceiver(t *testing.T) {
	var m *PipelineMetrics

	assert.NotPanics(t, func() {
		m.RecordArchive(StatusSuccess)
		m.RecordRecords(StatusSuccess, 1)
		m.RecordBackendCall("small", "ok", 1)
		m.RecordTransform(StatusSuccess)
		m.RecordStoreWrite("qdrant", StatusFailed)
		m.RecordEmbedding(StatusSuccess)
		m.ObserveStage("process", 1)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.Push(context.Background(), "http://unused", "job"))
}

func TestPipelineMetrics_Handler(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordArchive(StatusSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `justel_archives_total{status="success"} 1`))
}

func TestPipelineMetrics_Push(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := newTestMetrics(t)
	m.RecordArchive(StatusSuccess)

	require.NoError(t, m.Push(context.Background(), srv.URL, "justel"))
	assert.Equal(t, "/metrics/job/justel", gotPath)

	assert.NoError(t, m.Push(context.Background(), "", "justel"), "empty url is a no-op")
}
