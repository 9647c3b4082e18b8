package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var breakerStates = []string{"closed", "half-open", "open"}

type promSet struct {
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	externalCalls   prometheus.Counter
	fallbacks       prometheus.Counter
	errors          prometheus.Counter
	requestDuration prometheus.Histogram
	credentialUses  *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

// Registry is a dedicated Prometheus registry holding the rating collectors.
type Registry struct {
	reg *prometheus.Registry
	set *promSet
}

// NewRegistry builds a registry with the rating collectors plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	c := &promSet{
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "strive_rating_cache_hits_total",
			Help: "Rating lookups answered from the durable cache",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "strive_rating_cache_misses_total",
			Help: "Rating lookups not answered from the durable cache",
		}),
		externalCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "strive_rating_external_calls_total",
			Help: "Calls made to the rating provider",
		}),
		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "strive_rating_fallbacks_total",
			Help: "Rating requests served by the catalog fallback",
		}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "strive_rating_errors_total",
			Help: "Rating requests that ended without any rating source",
		}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "strive_rating_request_duration_seconds",
			Help:    "Duration of rating requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		credentialUses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "strive_rating_credential_uses_total",
			Help: "Successful provider fetches per credential",
		}, []string{"credential"}),
		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strive_circuit_breaker_state",
			Help: "Circuit breaker state (1 for the current state)",
		}, []string{"name", "state"}),
	}
	return &Registry{reg: reg, set: c}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (c *promSet) setBreakerState(name, state string) {
	for _, s := range breakerStates {
		value := 0.0
		if s == state {
			value = 1
		}
		c.breakerState.WithLabelValues(name, s).Set(value)
	}
}
