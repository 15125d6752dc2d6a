// Package metrics defines Prometheus metrics for flight-price-tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fpt"

// HTTP metrics.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HealthzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "healthz_up",
		Help:      "Whether the last liveness probe succeeded (1) or failed (0).",
	})

	ReadyzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "readyz_up",
		Help:      "Whether the last readiness probe succeeded (1) or failed (0).",
	})
)

// Poll loop metrics.
var (
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_cycle_duration_seconds",
		Help:      "Duration of monitoring poll cycles in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "filter_checks_total",
		Help:      "Total number of filter checks by outcome.",
	}, []string{"outcome"})

	ChecksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "filter_checks_in_flight",
		Help:      "Number of filter checks currently running.",
	})

	DueFilters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "due_filters",
		Help:      "Number of filters due at the start of the last cycle.",
	})

	DegradeFactor = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "poll_degrade_factor",
		Help:      "Current polling interval multiplier applied during provider outages.",
	})
)

// Provider metrics.
var (
	ProviderCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_calls_total",
		Help:      "Total provider calls by provider and result.",
	}, []string{"provider", "result"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_latency_seconds",
		Help:      "Latency of provider quote calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	ProviderDailyUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "provider_daily_usage",
		Help:      "Current call count within the rolling 24-hour window per provider.",
	}, []string{"provider"})

	ProviderBudgetExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_budget_exhausted_total",
		Help:      "Total number of calls rejected because the provider budget was spent.",
	}, []string{"provider"})

	QuoteCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_cache_total",
		Help:      "Quote cache lookups by result (hit, miss, error).",
	}, []string{"result"})
)

// Aggregation and scoring metrics.
var (
	NoDataTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aggregate_no_data_total",
		Help:      "Total number of aggregations that produced no data.",
	})

	QualityScoreDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "quality_score_distribution",
		Help:      "Distribution of quality scores for triggered alerts.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11), // 0, 10, 20, ..., 100
	})
)

// Alert metrics.
var (
	AlertsTriggeredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_triggered_total",
		Help:      "Total number of alert triggers by match kind.",
	}, []string{"kind"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_transitions_total",
		Help:      "Total number of alert state transitions.",
	}, []string{"from", "to"})

	TransitionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_transition_failures_total",
		Help:      "Total number of alert transitions rolled back after a persistence failure.",
	})
)

// Delivery metrics.
var (
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Total delivery outcomes by channel and status.",
	}, []string{"channel", "status"})

	DeliveryRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_retries_total",
		Help:      "Total delivery retry attempts by channel.",
	}, []string{"channel"})

	DeliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "delivery_duration_seconds",
		Help:      "Duration of a single channel send.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"channel"})
)

// Scheduler metrics.
var (
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Total scheduled job runs by job and status.",
	}, []string{"job_name", "status"})

	JobLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "job_last_success_timestamp",
		Help:      "Unix timestamp of the last successful run per job.",
	}, []string{"job_name"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total analytics events by type and result.",
	}, []string{"type", "result"})
)
