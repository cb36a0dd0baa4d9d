// Package metrics holds the catalog service's Prometheus instruments. A nil
// *Metrics is a valid no-op.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog"

type Metrics struct {
	registry *prometheus.Registry

	lookups        *prometheus.CounterVec
	enrichedGames  prometheus.Counter
	enrichDegraded prometheus.Counter
	upstreamErrors *prometheus.CounterVec
	cacheResults   *prometheus.CounterVec
}

// New registers all instruments on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Point lookups by outcome (hit, miss, error).",
		}, []string{"result"}),
		enrichedGames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enriched_games_total",
			Help:      "Remote games passed through the enrichment join.",
		}),
		enrichDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_degraded_total",
			Help:      "Enrichment joins returned without local data because the lookup failed.",
		}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Failed calls to the Steam Web API by endpoint.",
		}, []string{"endpoint"}),
		cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_results_total",
			Help:      "Response cache reads by outcome (hit, miss).",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.lookups, m.enrichedGames, m.enrichDegraded, m.upstreamErrors, m.cacheResults,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Lookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Enriched(games int, degraded bool) {
	if m == nil {
		return
	}
	m.enrichedGames.Add(float64(games))
	if degraded {
		m.enrichDegraded.Inc()
	}
}

func (m *Metrics) UpstreamError(endpoint string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) Cache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheResults.WithLabelValues(result).Inc()
}
