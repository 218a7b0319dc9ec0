package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	gradingRequestsTotal  *prometheus.CounterVec
	gradingLatencySeconds *prometheus.HistogramVec
	taskTransitionsTotal  *prometheus.CounterVec
	abandonFlaggedTotal   prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the grading engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		gradingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_requests_total",
			Help: "Total number of grading API requests served.",
		}, []string{"method", "route", "status"})

		gradingLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_latency_seconds",
			Help:    "Latency distribution for grading API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		taskTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_task_transitions_total",
			Help: "Task state transitions applied, by transition and outcome.",
		}, []string{"transition", "outcome"})

		abandonFlaggedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grading_tasks_flagged_total",
			Help: "Tasks flagged for administrator attention after repeated abandonment.",
		})

		prometheus.MustRegister(gradingRequestsTotal, gradingLatencySeconds, taskTransitionsTotal, abandonFlaggedTotal)
	})
}

// GradingRequests exposes the counter for grading API requests.
func GradingRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingRequestsTotal
}

// GradingLatency exposes the latency histogram for grading API requests.
func GradingLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradingLatencySeconds
}

// TaskTransitions exposes the counter for task state transitions.
func TaskTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return taskTransitionsTotal
}

// AbandonFlagged exposes the counter for tasks flagged by the reassignment policy.
func AbandonFlagged() prometheus.Counter {
	RegisterMetrics()
	return abandonFlaggedTotal
}
