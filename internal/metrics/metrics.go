// Package metrics exposes queue and pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reel"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	queueLength     prometheus.Gauge
	activeJobs      prometheus.Gauge
	jobsTotal       *prometheus.CounterVec
	retriesTotal    prometheus.Counter
	jobDuration     prometheus.Histogram
	stageDuration   *prometheus.HistogramVec
	artifactsFailed *prometheus.CounterVec
	artifactsTotal  *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		queueLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Jobs waiting in the queue",
		}),
		activeJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Jobs currently running",
		}),
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished job attempts by outcome",
		}, []string{"outcome"}),
		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Failed attempts scheduled for another try",
		}),
		jobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of one pipeline run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of one pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"stage"}),
		artifactsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_failed_total",
			Help:      "Renditions or thumbnails skipped after an error",
		}, []string{"kind"}),
		artifactsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Renditions or thumbnails delivered",
		}, []string{"kind"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SetQueueLength(n int) {
	if m == nil {
		return
	}
	m.queueLength.Set(float64(n))
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.activeJobs.Inc()
}

// JobFinished records one attempt. outcome is completed, retried or failed.
func (m *Metrics) JobFinished(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.activeJobs.Dec()
	m.jobsTotal.WithLabelValues(outcome).Inc()
	m.jobDuration.Observe(took.Seconds())
	if outcome == "retried" {
		m.retriesTotal.Inc()
	}
}

func (m *Metrics) ObserveStage(stage string, took time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(took.Seconds())
}

func (m *Metrics) ArtifactDelivered(kind string) {
	if m == nil {
		return
	}
	m.artifactsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ArtifactFailed(kind string) {
	if m == nil {
		return
	}
	m.artifactsFailed.WithLabelValues(kind).Inc()
}
