// Package metrics holds the Prometheus collectors of the planner. Each
// Metrics value owns its registry so several servers (and tests) can run in
// one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fgoplanner"

type Metrics struct {
	Registry *prometheus.Registry

	Computations    *prometheus.CounterVec
	ComputeDuration prometheus.Histogram
	Warnings        *prometheus.CounterVec
	Subscribers     prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
	RateLimited     prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Computations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "computations_total",
			Help:      "Item stats computations by trigger source.",
		}, []string{"source"}),
		ComputeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "compute_duration_seconds",
			Help:      "Wall time of a single item stats computation.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Warnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "warnings_total",
			Help:      "Data problems skipped during computation.",
		}, []string{"kind"}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "subscribers",
			Help:      "Live stats subscriptions.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-IP limiter.",
		}),
	}
}

// ObserveCompute is safe on a nil *Metrics.
func (m *Metrics) ObserveCompute(source string, d time.Duration, warnings int) {
	if m == nil {
		return
	}
	m.Computations.WithLabelValues(source).Inc()
	m.ComputeDuration.Observe(d.Seconds())
	if warnings > 0 {
		m.Warnings.WithLabelValues("servant_not_found").Add(float64(warnings))
	}
}

func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.Subscribers.Inc()
	}
}

func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.Subscribers.Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
