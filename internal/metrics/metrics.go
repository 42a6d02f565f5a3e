// Package metrics provides Prometheus metrics for the assistant core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	ContextBuildsTotal   *prometheus.CounterVec
	ContextBuildDuration *prometheus.HistogramVec
	PromptsTotal         *prometheus.CounterVec
	FetchErrorsTotal     *prometheus.CounterVec
	CacheEntries         *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ContextBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assist_context_builds_total",
				Help: "Total context build attempts by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		ContextBuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assist_context_build_duration_seconds",
				Help:    "Fresh context build duration by kind.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		PromptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assist_prompts_total",
				Help: "Total prompts rendered by kind.",
			},
			[]string{"kind"},
		),
		FetchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assist_fetch_errors_total",
				Help: "Total store fetch failures by collection.",
			},
			[]string{"collection"},
		),
		CacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "assist_cache_entries",
				Help: "Current cache entry count by cache.",
			},
			[]string{"cache"},
		),
		registry: reg,
	}

	reg.MustRegister(m.ContextBuildsTotal)
	reg.MustRegister(m.ContextBuildDuration)
	reg.MustRegister(m.PromptsTotal)
	reg.MustRegister(m.FetchErrorsTotal)
	reg.MustRegister(m.CacheEntries)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordContextBuild increments the context build counter.
func (m *Metrics) RecordContextBuild(kind, outcome string) {
	m.ContextBuildsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveContextBuild records a fresh build's duration.
func (m *Metrics) ObserveContextBuild(kind string, seconds float64) {
	m.ContextBuildDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordPrompt increments the rendered prompt counter.
func (m *Metrics) RecordPrompt(kind string) {
	m.PromptsTotal.WithLabelValues(kind).Inc()
}

// RecordFetchError increments the fetch error counter.
func (m *Metrics) RecordFetchError(collection string) {
	m.FetchErrorsTotal.WithLabelValues(collection).Inc()
}

// SetCacheEntries sets the entry count gauge for a cache.
func (m *Metrics) SetCacheEntries(cacheName string, n float64) {
	m.CacheEntries.WithLabelValues(cacheName).Set(n)
}
