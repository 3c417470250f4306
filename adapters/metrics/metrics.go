// Package metrics provides Prometheus metrics collection for aimeter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for aimeter.
type Collector struct {
	// Recording metrics
	EventsRecorded *prometheus.CounterVec
	EventCostUSD   *prometheus.CounterVec

	// Evaluation metrics
	Evaluations          prometheus.Counter
	MonthlyResets        prometheus.Counter
	CacheReconciliations prometheus.Counter
	CreditLookupFailures prometheus.Counter

	// Limit metrics
	ThresholdAlerts prometheus.Counter
	LimitHits       prometheus.Counter

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates a new metrics collector with all metrics registered.
func New() *Collector {
	return &Collector{
		EventsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aimeter",
				Name:      "usage_events_total",
				Help:      "Total number of usage events recorded",
			},
			[]string{"feature", "success"},
		),
		EventCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aimeter",
				Name:      "usage_cost_usd_total",
				Help:      "Total raw provider cost recorded, in USD",
			},
			[]string{"feature"},
		),

		Evaluations: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aimeter",
				Name:      "evaluations_total",
				Help:      "Total number of limit evaluations",
			},
		),
		MonthlyResets: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aimeter",
				Name:      "monthly_resets_total",
				Help:      "Total number of lazy monthly resets performed",
			},
		),
		CacheReconciliations: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aimeter",
				Name:      "cache_reconciliations_total",
				Help:      "Times the cached month spend was corrected from the event log",
			},
		),
		CreditLookupFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aimeter",
				Name:      "credit_lookup_failures_total",
				Help:      "Plan credit lookups that failed and degraded to zero",
			},
		),

		ThresholdAlerts: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aimeter",
				Name:      "threshold_alerts_total",
				Help:      "Spend alerts sent for crossing the alert threshold",
			},
		),
		LimitHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aimeter",
				Name:      "limit_hits_total",
				Help:      "Times a hard spending limit was first hit in a period",
			},
		),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aimeter",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aimeter",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
	}
}
