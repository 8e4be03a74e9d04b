// Package metrics collects Prometheus metrics for the queue runtime:
// job lifecycle counters, per-attempt execution duration, and
// point-in-time queue depth by state.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric jobq exports.
type Collector struct {
	jobsEnqueued  prometheus.Counter
	jobsClaimed   prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsRetried   prometheus.Counter
	jobsDead      prometheus.Counter
	jobsTimedOut  prometheus.Counter

	jobLatency prometheus.Histogram

	jobsPending    prometheus.Gauge
	jobsProcessing prometheus.Gauge
	jobsScheduled  prometheus.Gauge
}

// NewCollector builds a Collector and registers its metrics against reg.
// Passing nil registers against the default global registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		jobsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobq_jobs_enqueued_total",
			Help: "Total number of jobs enqueued.",
		}),
		jobsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobq_jobs_claimed_total",
			Help: "Total number of jobs claimed by a worker.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobq_jobs_completed_total",
			Help: "Total number of jobs completed successfully.",
		}),
		jobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobq_jobs_retried_total",
			Help: "Total number of failed attempts rescheduled for retry.",
		}),
		jobsDead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobq_jobs_dead_total",
			Help: "Total number of jobs moved to the dead letter queue.",
		}),
		jobsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobq_jobs_timed_out_total",
			Help: "Total number of jobs reclaimed after their visibility timeout expired.",
		}),
		jobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobq_job_duration_seconds",
			Help:    "Duration of a single job execution attempt, in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		jobsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobq_jobs_pending",
			Help: "Current number of jobs in the Pending state.",
		}),
		jobsProcessing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobq_jobs_processing",
			Help: "Current number of jobs in the Processing state.",
		}),
		jobsScheduled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobq_jobs_scheduled",
			Help: "Current number of jobs in the Scheduled state.",
		}),
	}
	reg.MustRegister(
		c.jobsEnqueued, c.jobsClaimed, c.jobsCompleted, c.jobsRetried,
		c.jobsDead, c.jobsTimedOut, c.jobLatency,
		c.jobsPending, c.jobsProcessing, c.jobsScheduled,
	)
	return c
}

// RecordEnqueue records a successful enqueue.
func (c *Collector) RecordEnqueue() { c.jobsEnqueued.Inc() }

// RecordClaim records a successful claim.
func (c *Collector) RecordClaim() { c.jobsClaimed.Inc() }

// RecordCompleted records a successful completion, along with the
// attempt's wall-clock duration.
func (c *Collector) RecordCompleted(durationSeconds float64) {
	c.jobsCompleted.Inc()
	c.jobLatency.Observe(durationSeconds)
}

// RecordRetry records an attempt rescheduled for retry.
func (c *Collector) RecordRetry(durationSeconds float64) {
	c.jobsRetried.Inc()
	c.jobLatency.Observe(durationSeconds)
}

// RecordDead records a job moved to the dead letter queue.
func (c *Collector) RecordDead() { c.jobsDead.Inc() }

// RecordTimeout records a job reclaimed by the timeout reaper.
func (c *Collector) RecordTimeout() { c.jobsTimedOut.Inc() }

// SetQueueDepth updates the point-in-time gauges for the three
// non-terminal states.
func (c *Collector) SetQueueDepth(pending, processing, scheduled int64) {
	c.jobsPending.Set(float64(pending))
	c.jobsProcessing.Set(float64(processing))
	c.jobsScheduled.Set(float64(scheduled))
}

// Handler returns the HTTP handler to mount at /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer starts a dedicated HTTP server exposing /metrics on port.
// It blocks until the server returns an error (typically on shutdown).
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
