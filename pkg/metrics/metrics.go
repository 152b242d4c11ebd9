// Package metrics defines the Prometheus metric collectors used across the
// server and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the server.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	LoaderRequestsTotal  *prometheus.CounterVec
	LoaderLatency        *prometheus.HistogramVec
	StoreHitsTotal       prometheus.Counter
	StoreMissesTotal     prometheus.Counter
	FetchesTotal         *prometheus.CounterVec
	FetchBytes           prometheus.Histogram
	BondsDerivedTotal    prometheus.Counter
	BondComparisons      prometheus.Histogram
	ChunksWrittenTotal   prometheus.Counter
	ViewSavesTotal       *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		LoaderRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loader_requests_total",
				Help: "Total loader requests by outcome (hit, miss, fetch_error, error).",
			},
			[]string{"outcome"},
		),
		LoaderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loader_latency_seconds",
				Help:    "Loader request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"store_status"},
		),
		StoreHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "store_hits_total",
				Help: "Total number of artifact store hits.",
			},
		),
		StoreMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "store_misses_total",
				Help: "Total number of artifact store misses.",
			},
		),
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "structure_fetches_total",
				Help: "Total remote structure fetches by status (ok, timeout, not_found, too_large, circuit_open, error).",
			},
			[]string{"status"},
		),
		FetchBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "structure_fetch_bytes",
				Help:    "Size of fetched structure files in bytes.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		BondsDerivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bonds_derived_total",
				Help: "Total number of bonds derived across all structures.",
			},
		),
		BondComparisons: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bond_pair_comparisons",
				Help:    "Number of candidate pair comparisons per structure.",
				Buckets: prometheus.ExponentialBuckets(1000, 4, 10),
			},
		),
		ChunksWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "store_chunks_written_total",
				Help: "Total artifact chunks written to the store.",
			},
		),
		ViewSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "view_saves_total",
				Help: "Total view save operations by status.",
			},
			[]string{"status"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.LoaderRequestsTotal,
		m.LoaderLatency,
		m.StoreHitsTotal,
		m.StoreMissesTotal,
		m.FetchesTotal,
		m.FetchBytes,
		m.BondsDerivedTotal,
		m.BondComparisons,
		m.ChunksWrittenTotal,
		m.ViewSavesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
