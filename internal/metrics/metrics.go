// Package metrics exposes blacklist and ingestion counters in Prometheus
// format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry      *prometheus.Registry
	checks        *prometheus.CounterVec
	writes        *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec
	size          prometheus.Gauge
	candidates    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_blacklist_checks_total",
		Help: "Total number of blacklist lookups by result",
	}, []string{"result"})

	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_blacklist_writes_total",
		Help: "Total number of blacklist writes by operation and outcome",
	}, []string{"op", "outcome"})

	writeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_blacklist_write_duration_seconds",
		Help:    "Duration of blacklist writes in seconds, lock wait included",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	size := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_blacklist_entries",
		Help: "Number of blacklisted identities after the last write",
	})

	candidates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_ingest_candidates_total",
		Help: "Total number of candidate items seen by the ingestion filter by outcome",
	}, []string{"outcome"})

	reg.MustRegister(checks, writes, writeDuration, size, candidates)

	return &Metrics{
		registry:      reg,
		checks:        checks,
		writes:        writes,
		writeDuration: writeDuration,
		size:          size,
		candidates:    candidates,
	}
}

func (m *Metrics) ObserveCheck(blocked bool) {
	result := "allowed"
	if blocked {
		result = "blocked"
	}
	m.checks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveWrite(op string, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.writes.WithLabelValues(op, outcome).Inc()
	m.writeDuration.WithLabelValues(op).Observe(took.Seconds())
}

func (m *Metrics) ObserveSize(n int) {
	m.size.Set(float64(n))
}

func (m *Metrics) RecordCandidate(outcome string) {
	m.candidates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
