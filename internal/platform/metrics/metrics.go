// Package metrics holds the Prometheus collectors exported on /metrics.
// They are registered with the default registry at init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinrx_alerts_total",
			Help: "Drug alerts raised while checking prescriptions",
		},
		[]string{"type", "level"},
	)

	NoteCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinrx_note_cache_total",
			Help: "Clinical note summary cache lookups",
		},
		[]string{"result"},
	)

	InterventionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinrx_interventions_total",
			Help: "Interventions saved, by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(AlertsTotal)
	prometheus.MustRegister(NoteCacheTotal)
	prometheus.MustRegister(InterventionsTotal)
}
