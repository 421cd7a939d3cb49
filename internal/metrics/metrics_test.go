package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("rendering", 150*time.Millisecond)
	pr.ObservePublishDuration(20 * time.Second)
	pr.IncStageResult("rendering", ResultDegraded)
	pr.IncPublishOutcome("ready")
	pr.IncPublishOutcome("ready")
	pr.IncBusyRejection()
	pr.IncRecoveredArtifact("pdf")
	pr.IncClassifiedEvent("continue")

	assert.Equal(t, 2.0, testutil.ToFloat64(pr.publishOutcome.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.busyRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.recovered.WithLabelValues("pdf")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.stageResults.WithLabelValues("rendering", "degraded")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncBusyRejection()
		pr.ObserveStageDuration("uploading", time.Second)
	})
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	assert.NotPanics(t, func() {
		r.IncPublishOutcome("failed")
		r.ObservePublishDuration(time.Second)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncBusyRejection()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cvpublish_busy_rejections_total 1")
}
