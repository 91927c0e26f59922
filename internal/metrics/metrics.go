// Package metrics counts what a deletion session did, for export in the
// Prometheus text format (node_exporter textfile collector).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DurationBuckets: 100ms to 5min for task durations.
var DurationBuckets = []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300}

// Recorder holds the session metrics on its own registry. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	attempts     *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	bytesFreed   prometheus.Counter
	taskDuration prometheus.Histogram
	lastRun      prometheus.Gauge
}

// New creates and registers the metrics.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "purewipe_strategy_attempts_total",
			Help: "Deletion strategy attempts by strategy and result.",
		}, []string{"strategy", "result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "purewipe_outcomes_total",
			Help: "Objects processed by final status (removed, deferred, failed).",
		}, []string{"status"}),
		bytesFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "purewipe_bytes_freed_total",
			Help: "Bytes of regular files removed.",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "purewipe_task_duration_seconds",
			Help:    "Duration of deletion tasks in seconds.",
			Buckets: DurationBuckets,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "purewipe_last_run_timestamp_seconds",
			Help: "Unix time the last session finished.",
		}),
	}
	r.registry.MustRegister(r.attempts, r.outcomes, r.bytesFreed, r.taskDuration, r.lastRun)
	return r
}

// ObserveAttempt counts one strategy attempt.
func (r *Recorder) ObserveAttempt(strategy, result string) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(strategy, result).Inc()
}

// ObserveOutcome counts one finished object.
func (r *Recorder) ObserveOutcome(removed, deferred bool, bytes int64) {
	if r == nil {
		return
	}
	switch {
	case removed:
		r.outcomes.WithLabelValues("removed").Inc()
		if bytes > 0 {
			r.bytesFreed.Add(float64(bytes))
		}
	case deferred:
		r.outcomes.WithLabelValues("deferred").Inc()
	default:
		r.outcomes.WithLabelValues("failed").Inc()
	}
}

// ObserveTask records how long one task took.
func (r *Recorder) ObserveTask(d time.Duration) {
	if r == nil {
		return
	}
	r.taskDuration.Observe(d.Seconds())
}

// Finish stamps the end of the session.
func (r *Recorder) Finish(t time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(t.Unix()))
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
