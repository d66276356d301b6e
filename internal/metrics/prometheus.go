package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchesTotal counts dispatches by workflow and outcome.
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatrelay_dispatches_total",
			Help: "Total number of jobs dispatched to external workers",
		},
		[]string{"workflow", "outcome"},
	)

	// DispatchDuration tracks the round trip to the worker webhook in seconds.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threatrelay_dispatch_duration_seconds",
			Help:    "Duration of webhook dispatches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"workflow"},
	)

	// CallbacksTotal counts worker callbacks by outcome.
	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatrelay_callbacks_total",
			Help: "Total number of worker callbacks received",
		},
		[]string{"outcome"},
	)

	// StatusChecksTotal counts status checks by reported status.
	StatusChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatrelay_status_checks_total",
			Help: "Total number of status checks",
		},
		[]string{"status"},
	)

	// PendingResults tracks results stored but not yet taken.
	PendingResults = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatrelay_pending_results",
			Help: "Number of results waiting to be picked up by a poller",
		},
	)

	// EvictedResults counts records removed by the eviction sweep.
	EvictedResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatrelay_evicted_results_total",
			Help: "Total number of abandoned results evicted",
		},
	)

	// NotificationsTotal counts notifier deliveries by sink and outcome.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatrelay_notifications_total",
			Help: "Total number of notifier deliveries",
		},
		[]string{"sink", "outcome"},
	)

	// NotificationsDropped counts events dropped because the notifier queue was full.
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatrelay_notifications_dropped_total",
			Help: "Total number of events dropped by a full notifier queue",
		},
	)

	// NotifyWorkersActive tracks notifier workers currently delivering.
	NotifyWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatrelay_notify_workers_active",
			Help: "Number of notifier goroutines currently delivering an event",
		},
	)

	// OrchestrationsTotal counts orchestrated submissions by terminal state.
	OrchestrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatrelay_orchestrations_total",
			Help: "Total number of orchestrated submissions",
		},
		[]string{"state"},
	)

	// PollDuration tracks how long polling took before a terminal answer.
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "threatrelay_poll_duration_seconds",
			Help:    "Duration of status polling in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 13), // 50ms to ~200s
		},
	)
)
