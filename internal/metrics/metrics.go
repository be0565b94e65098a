// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortlink_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortlink_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shortlink_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	// Application Metrics
	URLCreationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_url_creation_total",
			Help: "Total number of short URL creation attempts by outcome",
		},
		[]string{"status"},
	)

	URLAccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_url_access_total",
			Help: "Total number of redirects by outcome",
		},
		[]string{"status"},
	)

	CodeCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_code_collisions_total",
			Help: "Generated short codes rejected because they were already taken",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortlink_db_query_duration_seconds",
			Help:    "Storage query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "query_type"},
	)

	ClickBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shortlink_click_batch_size",
			Help:    "Number of click events applied per worker flush",
			Buckets: prometheus.LinearBuckets(1, 5, 6),
		},
	)
)

// RecordHTTPMetrics records metrics for an HTTP request
func RecordHTTPMetrics(method, path, status string, duration time.Duration, responseSize int64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	HTTPResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))
}
