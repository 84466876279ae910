// Package metrics exposes Prometheus collectors for the catalog service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	indexerItemsTotal          *prometheus.CounterVec
	indexerRunsTotal           *prometheus.CounterVec
	indexerRunDurationSeconds  prometheus.Histogram
	searchQueriesTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		indexerItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_items_total",
				Help: "Total sitemap candidates processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		indexerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_runs_total",
				Help: "Total ingestion runs, labeled by result.",
			},
			[]string{"result"},
		)

		indexerRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "indexer_run_duration_seconds",
				Help:    "Histogram of ingestion run durations.",
				Buckets: []float64{1, 5, 15, 60, 120, 300, 600},
			},
		)

		searchQueriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries, labeled by kind.",
			},
			[]string{"kind"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem increments the per-candidate outcome counter.
func ObserveItem(outcome string) {
	if indexerItemsTotal == nil {
		return
	}
	indexerItemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun records a finished ingestion run.
func ObserveRun(result string, duration time.Duration) {
	if indexerRunsTotal == nil {
		return
	}
	indexerRunsTotal.WithLabelValues(result).Inc()
	indexerRunDurationSeconds.Observe(duration.Seconds())
}

// ObserveQuery increments the retrieval query counter.
func ObserveQuery(kind string) {
	if searchQueriesTotal == nil {
		return
	}
	searchQueriesTotal.WithLabelValues(kind).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
