// Package metrics exposes account and session outcomes to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lborres/warden/core"
)

const namespace = "warden"

// Metrics owns a private registry so tests and embedders never collide on the
// global one. It implements core.Observer.
type Metrics struct {
	registry      *prometheus.Registry
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	lookups       *prometheus.CounterVec
	hashDuration  prometheus.Histogram
}

var _ core.Observer = (*Metrics)(nil)

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration attempts by result",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_lookups_total",
			Help:      "Session resolutions by outcome",
		}, []string{"result"}),
		hashDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "password_hash_duration_seconds",
			Help:      "Time spent deriving password hashes",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	registry.MustRegister(m.registrations, m.logins, m.lookups, m.hashDuration)
	return m
}

func (m *Metrics) ObserveRegistration(result string) {
	m.registrations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLogin(result string) {
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSessionLookup(result string) {
	m.lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePasswordHash(d time.Duration) {
	m.hashDuration.Observe(d.Seconds())
}

// RegisterCache publishes the cache's counters, read at scrape time.
func (m *Metrics) RegisterCache(cache core.CacheWithStats) {
	counter := func(name, help string, read func(core.CacheStats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session_cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(cache.Stats())) })
	}

	m.registry.MustRegister(
		counter("hits_total", "Session cache hits", func(s core.CacheStats) int64 { return s.Hits }),
		counter("misses_total", "Session cache misses", func(s core.CacheStats) int64 { return s.Misses }),
		counter("evictions_total", "Session cache evictions", func(s core.CacheStats) int64 { return s.Evictions }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session_cache",
			Name:      "entries",
			Help:      "Sessions currently cached",
		}, func() float64 { return float64(cache.Stats().Size) }),
	)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
