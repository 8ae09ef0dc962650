package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the competition engine.
type Metrics struct {
	Registry        *prometheus.Registry
	QueriesTotal    prometheus.Counter
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	CacheHitsTotal  prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	queries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "competition_queries_total",
			Help: "Total multi-site competition queries run.",
		},
	)
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "competition_requests_total",
			Help: "Total site search requests issued, including retries.",
		},
		[]string{"site"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "competition_request_duration_seconds",
			Help:    "Site search latency including retries.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "competition_retries_total",
			Help: "Total retry attempts across all sites.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "competition_errors_total",
			Help: "Total terminal site failures by site and error type.",
		},
		[]string{"site", "error_type"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "competition_cache_hits_total",
			Help: "Queries answered from the in-run result cache.",
		},
	)

	registry.MustRegister(queries, requests, requestDuration, retries, errorsTotal, cacheHits)

	return &Metrics{
		Registry:        registry,
		QueriesTotal:    queries,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		CacheHitsTotal:  cacheHits,
	}
}

// IncQuery increments the queries counter.
func (m *Metrics) IncQuery() {
	if m == nil {
		return
	}
	m.QueriesTotal.Inc()
}

// IncRequests adds n issued requests for a site.
func (m *Metrics) IncRequests(site string, n int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(site).Add(float64(n))
}

// ObserveDuration records one site search duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddRetries adds retry attempts.
func (m *Metrics) AddRetries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RetriesTotal.Add(float64(n))
}

// IncError increments the error counter for a site and type label.
func (m *Metrics) IncError(site, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(site, errorType).Inc()
}

// IncCacheHit increments the cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}
