// Package metrics exposes Prometheus instrumentation for the job lifecycle.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
)

const namespace = "jobscheduler"

// Metrics holds the job lifecycle collectors
type Metrics struct {
	JobsSubmitted     prometheus.Counter
	JobsStarted       prometheus.Counter
	JobsFinished      *prometheus.CounterVec
	JobDuration       prometheus.Histogram
	MalformedIDs      prometheus.Counter
	QueueErrors       prometheus.Counter
	TransitionErrors  *prometheus.CounterVec
	BroadcastReceived prometheus.Histogram
}

// New creates the collectors and registers them with reg when it is non-nil
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Jobs accepted by the submission gateway.",
		}),
		JobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Jobs moved to RUNNING by a worker.",
		}),
		JobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal status.",
		}, []string{"status"}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_execution_seconds",
			Help:      "Time spent in the executor per job.",
			Buckets:   []float64{.01, .1, .5, 1, 2, 5, 10, 30, 60},
		}),
		MalformedIDs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_malformed_ids_total",
			Help:      "Queue entries discarded because they are not job ids.",
		}),
		QueueErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_errors_total",
			Help:      "Failed dequeue attempts.",
		}),
		TransitionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_errors_total",
			Help:      "Store writes that failed while moving a job.",
		}, []string{"target"}),
		BroadcastReceived: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_receivers",
			Help:      "Subscribers reached per published update.",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.JobsSubmitted,
			m.JobsStarted,
			m.JobsFinished,
			m.JobDuration,
			m.MalformedIDs,
			m.QueueErrors,
			m.TransitionErrors,
			m.BroadcastReceived,
		)
	}
	return m
}

// ObserveSubmitted counts an accepted job
func (m *Metrics) ObserveSubmitted() {
	if m == nil {
		return
	}
	m.JobsSubmitted.Inc()
}

// ObserveStarted counts a job entering RUNNING
func (m *Metrics) ObserveStarted() {
	if m == nil {
		return
	}
	m.JobsStarted.Inc()
}

// ObserveFinished counts a terminal job and records how long it executed
func (m *Metrics) ObserveFinished(status models.JobStatus, took time.Duration) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(status.String()).Inc()
	m.JobDuration.Observe(took.Seconds())
}

// ObserveMalformedID counts a discarded queue entry
func (m *Metrics) ObserveMalformedID() {
	if m == nil {
		return
	}
	m.MalformedIDs.Inc()
}

// ObserveQueueError counts a failed dequeue
func (m *Metrics) ObserveQueueError() {
	if m == nil {
		return
	}
	m.QueueErrors.Inc()
}

// ObserveTransitionError counts a failed store write towards target
func (m *Metrics) ObserveTransitionError(target models.JobStatus) {
	if m == nil {
		return
	}
	m.TransitionErrors.WithLabelValues(target.String()).Inc()
}

// ObserveBroadcast records how many subscribers received an update
func (m *Metrics) ObserveBroadcast(receivers int) {
	if m == nil {
		return
	}
	m.BroadcastReceived.Observe(float64(receivers))
}
