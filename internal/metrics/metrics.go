// Package metrics exposes Prometheus collectors for fetch outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes
const (
	OutcomeOK      = "ok"
	OutcomeBlocked = "blocked"
	OutcomeFailed  = "failed"
	OutcomeCached  = "cached"
)

// Render outcomes
const (
	RenderAdopted   = "adopted"
	RenderDiscarded = "discarded"
	RenderFailed    = "failed"
)

// Collector groups the fetch pipeline's collectors. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	fetchesTotal         *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	rendersTotal         *prometheus.CounterVec
	cacheLookupsTotal    *prometheus.CounterVec
	activeFetches        prometheus.Gauge
}

// New creates a Collector backed by its own registry
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagefetch_fetches_total",
				Help: "Total number of fetch-and-extract calls, labeled by outcome and whether the renderer was used.",
			},
			[]string{"outcome", "renderer"},
		),
		fetchDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagefetch_fetch_duration_seconds",
				Help:    "Histogram of fetch-and-extract latencies, labeled by outcome.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		rendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagefetch_renders_total",
				Help: "Total number of browser render passes, labeled by result.",
			},
			[]string{"result"},
		),
		cacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagefetch_cache_lookups_total",
				Help: "Total number of result cache lookups, labeled by hit or miss.",
			},
			[]string{"result"},
		),
		activeFetches: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagefetch_active_fetches",
				Help: "Number of fetch-and-extract calls in progress.",
			},
		),
	}
}

// Handler returns an http.Handler exposing this collector's metrics
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records a finished fetch-and-extract call
func (c *Collector) ObserveFetch(outcome string, usedRenderer bool, d time.Duration) {
	if c == nil {
		return
	}
	renderer := "false"
	if usedRenderer {
		renderer = "true"
	}
	c.fetchesTotal.WithLabelValues(outcome, renderer).Inc()
	c.fetchDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveRender records the result of one render pass
func (c *Collector) ObserveRender(result string) {
	if c == nil {
		return
	}
	c.rendersTotal.WithLabelValues(result).Inc()
}

// ObserveCacheLookup records a cache hit or miss
func (c *Collector) ObserveCacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// TrackActive increments the in-flight gauge and returns a func that
// decrements it
func (c *Collector) TrackActive() func() {
	if c == nil {
		return func() {}
	}
	c.activeFetches.Inc()
	return c.activeFetches.Dec
}
