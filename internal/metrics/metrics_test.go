package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_JobLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetQueueLength(4)
	m.JobStarted()
	m.JobStarted()
	m.JobFinished("completed", 2*time.Second)
	m.JobFinished("retried", time.Second)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueLength))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeJobs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("retried")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal))
}

func TestMetrics_Artifacts(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ArtifactDelivered("rendition")
	m.ArtifactDelivered("rendition")
	m.ArtifactFailed("thumbnail")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.artifactsTotal.WithLabelValues("rendition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.artifactsFailed.WithLabelValues("thumbnail")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SetQueueLength(1)
		m.JobStarted()
		m.JobFinished("failed", time.Second)
		m.ObserveStage("probe", time.Second)
		m.ArtifactDelivered("rendition")
		m.ArtifactFailed("rendition")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveStage("transcode", 3*time.Second)
	m.SetQueueLength(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "reel_queue_length 2")
	assert.Contains(t, string(body), `reel_stage_duration_seconds_count{stage="transcode"} 1`)
}
