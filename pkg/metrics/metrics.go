package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stories"

// Cleanup collects metrics about the expired story reclamation job.
type Cleanup struct {
	Runs            *prometheus.CounterVec
	SkippedTriggers prometheus.Counter
	StoriesRemoved  prometheus.Counter
	StoriesRetained prometheus.Counter
	Enqueued        prometheus.Counter
	Retried         prometheus.Counter
	RetrySucceeded  prometheus.Counter
	StuckDeletions  prometheus.Gauge
	RunDuration     prometheus.Histogram
}

func NewCleanup() *Cleanup {
	return &Cleanup{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Cleanup runs by outcome.",
		}, []string{"outcome"}),
		SkippedTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "skipped_triggers_total",
			Help:      "Triggers ignored because a run was still in flight.",
		}),
		StoriesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "stories_removed_total",
			Help:      "Expired stories removed from the database.",
		}),
		StoriesRetained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "stories_retained_total",
			Help:      "Expired stories kept because media deletion is pending.",
		}),
		Enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "deletions_enqueued_total",
			Help:      "Media deletions recorded in the failed deletion ledger.",
		}),
		Retried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "deletions_retried_total",
			Help:      "Ledger rows retried.",
		}),
		RetrySucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "deletions_retry_succeeded_total",
			Help:      "Ledger rows cleared by a retry.",
		}),
		StuckDeletions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "stuck_deletions",
			Help:      "Ledger rows that reached the attempt ceiling.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "run_duration_seconds",
			Help:      "Duration of a cleanup run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Cleanup) Describe(ch chan<- *prometheus.Desc) {
	for _, col := range c.collectors() {
		col.Describe(ch)
	}
}

// Collect is part of the prometheus.Collector interface.
func (c *Cleanup) Collect(ch chan<- prometheus.Metric) {
	for _, col := range c.collectors() {
		col.Collect(ch)
	}
}

func (c *Cleanup) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.Runs, c.SkippedTriggers, c.StoriesRemoved, c.StoriesRetained,
		c.Enqueued, c.Retried, c.RetrySucceeded, c.StuckDeletions, c.RunDuration,
	}
}

// HTTP collects request metrics for the API.
type HTTP struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

func NewHTTP() *HTTP {
	return &HTTP{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Describe is part of the prometheus.Collector interface.
func (h *HTTP) Describe(ch chan<- *prometheus.Desc) {
	h.Requests.Describe(ch)
	h.Latency.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (h *HTTP) Collect(ch chan<- prometheus.Metric) {
	h.Requests.Collect(ch)
	h.Latency.Collect(ch)
}
