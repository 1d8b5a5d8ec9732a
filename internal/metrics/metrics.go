// Package metrics holds the prometheus collectors for the browser: row store
// query latency, resolver outcomes per route family and HTTP traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Row store
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metaexplorer_store_query_duration_seconds",
			Help:    "Duration of catalog queries in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"query"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaexplorer_store_query_errors_total",
			Help: "Total number of catalog queries that failed for reasons other than an absent row",
		},
		[]string{"query"},
	)

	// Resolver
	ResolveOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaexplorer_resolve_outcomes_total",
			Help: "Resolved requests by route family and outcome kind",
		},
		[]string{"route", "outcome"}, // outcome: "document", "fragment", "redirect", "not_found", "error"
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaexplorer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metaexplorer_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metaexplorer_http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	StaticReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaexplorer_static_reloads_total",
			Help: "Static asset reloads triggered by file changes",
		},
		[]string{"asset", "result"},
	)
)

// ObserveQuery records one catalog query.
func ObserveQuery(query string, duration time.Duration, failed bool) {
	StoreQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
	if failed {
		StoreQueryErrors.WithLabelValues(query).Inc()
	}
}

// RecordResolve records the outcome of one resolver dispatch.
func RecordResolve(route, outcome string) {
	ResolveOutcomes.WithLabelValues(route, outcome).Inc()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}

// RecordStaticReload records a hot reload attempt for a static asset.
func RecordStaticReload(asset string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StaticReloads.WithLabelValues(asset, result).Inc()
}
