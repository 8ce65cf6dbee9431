// Package metrics exposes sync run telemetry as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"bricksync/internal/domain"
)

// Namespace prefixes every bricksync metric.
const Namespace = "bricksync"

// Label names.
const (
	LabelStatus = "status"
	LabelAction = "action"
)

// Metrics implements syncrun.Observer.
type Metrics struct {
	results        *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	projectionWait prometheus.Histogram
	runs           *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "sync_results_total",
				Help:      "Sync results by status",
			},
			[]string{LabelStatus},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "sync_duration_seconds",
				Help:      "Time to sync one source object",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{LabelStatus, LabelAction},
		),
		projectionWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "projection_wait_seconds",
				Help:      "Time spent waiting for iceberg projection metadata",
				Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Finished sync runs by status",
			},
			[]string{LabelStatus},
		),
	}
	reg.MustRegister(m.results, m.duration, m.projectionWait, m.runs)
	return m
}

// NewRegistry returns a registry with the Go and process collectors and a
// Metrics registered on it.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg)
}

// ObserveResult counts r and records its duration.
func (m *Metrics) ObserveResult(r domain.SyncResult) {
	status := string(r.Status)
	m.results.WithLabelValues(status).Inc()
	m.duration.WithLabelValues(status, string(r.Action)).Observe(r.Duration.Seconds())
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(status domain.RunStatus) {
	m.runs.WithLabelValues(string(status)).Inc()
}

// ObserveProjectionWait records one projection wait.
func (m *Metrics) ObserveProjectionWait(d time.Duration) {
	m.projectionWait.Observe(d.Seconds())
}
