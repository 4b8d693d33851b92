package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	SessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "yangstore_sessions_active",
			Help: "Number of open sessions by datastore",
		},
		[]string{"datastore"},
	)

	SessionsOpenedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "yangstore_sessions_opened_total",
			Help: "Total number of sessions opened since startup",
		},
	)

	// Lock Set metrics
	LocksHeld = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "yangstore_locks_held",
			Help: "Number of locks currently held by kind",
		},
		[]string{"kind"},
	)

	LockWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yangstore_lock_wait_duration_seconds",
			Help:    "Time spent blocked acquiring a module or file lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	LockContentionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "yangstore_lock_contention_total",
			Help: "Total number of lock acquisitions that had to wait or were rejected non-blocking",
		},
	)

	// Commit Engine metrics
	CommitPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yangstore_commit_phase_duration_seconds",
			Help:    "Duration of each commit phase",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yangstore_commits_total",
			Help: "Total number of commits attempted, by result",
		},
		[]string{"result"},
	)

	CommitOptimizedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "yangstore_commits_optimized_total",
			Help: "Total number of commits that skipped diff/verify because only the originating session touched the data",
		},
	)

	// Subscription Registry metrics
	SubscriptionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "yangstore_subscriptions_active",
			Help: "Number of registered subscriptions by kind",
		},
		[]string{"kind"},
	)

	NotifyDeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yangstore_notify_delivery_duration_seconds",
			Help:    "Time to deliver VERIFY/NOTIFY events to all matching subscribers for one commit",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Operational-Data Broker metrics
	OperDataRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yangstore_oper_data_requests_total",
			Help: "Total operational-data provider requests, by result",
		},
		[]string{"result"},
	)

	OperDataRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yangstore_oper_data_request_duration_seconds",
			Help:    "Time spent suspended waiting for an operational-data provider",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Request Dispatcher metrics
	DispatcherQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "yangstore_dispatcher_queue_depth",
			Help: "Current number of requests waiting in the dispatcher queue",
		},
	)

	DispatcherRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yangstore_dispatcher_requests_total",
			Help: "Total requests processed by the dispatcher, by outcome",
		},
		[]string{"outcome"},
	)

	DispatcherWorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "yangstore_dispatcher_workers_active",
			Help: "Number of worker goroutines currently processing a request",
		},
	)
)

func init() {
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionsOpenedTotal)
	prometheus.MustRegister(LocksHeld)
	prometheus.MustRegister(LockWaitDuration)
	prometheus.MustRegister(LockContentionTotal)
	prometheus.MustRegister(CommitPhaseDuration)
	prometheus.MustRegister(CommitsTotal)
	prometheus.MustRegister(CommitOptimizedTotal)
	prometheus.MustRegister(SubscriptionsActive)
	prometheus.MustRegister(NotifyDeliveryDuration)
	prometheus.MustRegister(OperDataRequestsTotal)
	prometheus.MustRegister(OperDataRequestDuration)
	prometheus.MustRegister(DispatcherQueueDepth)
	prometheus.MustRegister(DispatcherRequestsTotal)
	prometheus.MustRegister(DispatcherWorkersActive)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
