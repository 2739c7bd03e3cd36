package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry
type Metrics struct {
	registry     *prometheus.Registry
	computations *prometheus.CounterVec
	duration     prometheus.Histogram
	requests     *prometheus.CounterVec
}

// NewMetrics registers the collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxcalc",
			Name:      "computations_total",
			Help:      "Tax computations by regime and outcome.",
		}, []string{"regime", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taxcalc",
			Name:      "compute_duration_seconds",
			Help:      "Time spent computing tax for one request.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxcalc",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		m.computations,
		m.duration,
		m.requests,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveComputation records one computation
func (m *Metrics) ObserveComputation(regime, outcome string, took time.Duration) {
	if regime == "" {
		regime = "unknown"
	}
	m.computations.WithLabelValues(regime, outcome).Inc()
	m.duration.Observe(took.Seconds())
}

// ObserveRequest records one HTTP response
func (m *Metrics) ObserveRequest(route string, status int) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
