package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatasetLoads counts dataset (re)load attempts by outcome.
	DatasetLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iris_dataset_loads_total",
			Help: "Total number of dataset load attempts",
		},
		[]string{"result"}, // "success", "error"
	)

	DatasetLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "iris_dataset_load_duration_seconds",
			Help:    "Duration of dataset parse, validation and statistics computation",
			Buckets: prometheus.DefBuckets,
		},
	)

	DatasetRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iris_dataset_records",
			Help: "Number of records in the published snapshot",
		},
	)

	DatasetDroppedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iris_dataset_dropped_rows_total",
			Help: "Rows dropped while cleaning the dataset",
		},
		[]string{"reason"}, // "unknown_category", "invalid_value"
	)

	// AuthAttempts counts login attempts by outcome.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iris_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"}, // "success", "not_found", "wrong_password", "inactive"
	)

	TokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iris_token_verifications_total",
			Help: "Total number of token verifications",
		},
		[]string{"kind", "result"},
	)

	AccessDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iris_access_denials_total",
			Help: "Category reads rejected by the access decision",
		},
		[]string{"category"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iris_rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iris_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iris_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
