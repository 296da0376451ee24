package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for scans, lookups and camera failures,
// registered on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	Scans          prometheus.Counter
	Lookups        *prometheus.CounterVec
	LookupDuration prometheus.Histogram
	CameraErrors   *prometheus.CounterVec
	ShoppingAdds   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fridgescan",
			Name:      "scans_total",
			Help:      "Scanned codes recorded as items.",
		}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fridgescan",
			Name:      "lookups_total",
			Help:      "Product lookups by outcome.",
		}, []string{"outcome"}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fridgescan",
			Name:      "lookup_duration_seconds",
			Help:      "Latency of product lookups.",
			Buckets:   prometheus.DefBuckets,
		}),
		CameraErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fridgescan",
			Name:      "camera_errors_total",
			Help:      "Terminal camera errors by kind.",
		}, []string{"kind"}),
		ShoppingAdds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fridgescan",
			Name:      "shopping_entries_added_total",
			Help:      "Entries added to the shopping list.",
		}),
	}
	reg.MustRegister(
		m.Scans, m.Lookups, m.LookupDuration, m.CameraErrors, m.ShoppingAdds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveLookup(outcome string, took time.Duration) {
	m.Lookups.WithLabelValues(outcome).Inc()
	m.LookupDuration.Observe(took.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
