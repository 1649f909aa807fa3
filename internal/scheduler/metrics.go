package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the scheduler's Prometheus collectors.
type Metrics struct {
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	Merges        *prometheus.CounterVec
	Dropped       prometheus.Counter
	QueueDepth    prometheus.Gauge
}

// NewMetrics registers the collectors with reg. Pass a fresh
// prometheus.NewRegistry() per scheduler in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docsync",
			Subsystem: "scheduler",
			Name:      "jobs_processed_total",
			Help:      "Jobs dispatched, by group.",
		}, []string{"group"}),
		JobsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docsync",
			Subsystem: "scheduler",
			Name:      "jobs_failed_total",
			Help:      "Jobs that returned an error or panicked, by group.",
		}, []string{"group"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docsync",
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Wall time of one job, by group.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"group"}),
		Merges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docsync",
			Subsystem: "scheduler",
			Name:      "merges_total",
			Help:      "Merge rule applications, by outcome.",
		}, []string{"outcome"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "docsync",
			Subsystem: "scheduler",
			Name:      "dropped_callers_total",
			Help:      "Callers dropped because another caller was already waiting.",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "docsync",
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Jobs queued and not yet drained.",
		}),
	}
}

func (m *Metrics) observeMerge(rep MergeReport) {
	m.Merges.WithLabelValues("combined").Add(float64(rep.Combined))
	m.Merges.WithLabelValues("collided").Add(float64(rep.Collided))
	m.Merges.WithLabelValues("coalesced").Add(float64(rep.Coalesced))
	m.Merges.WithLabelValues("orphaned").Add(float64(rep.Orphaned))
}
