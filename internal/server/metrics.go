package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are registered on a per-server registry so several servers can
// live in one process.
type metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rebuilds        *prometheus.CounterVec
	rebuildDuration prometheus.Histogram
	items           *prometheus.GaugeVec
	parseErrors     prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "svdoc_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "svdoc_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "svdoc_rebuilds_total",
			Help: "Documentation rebuilds by result",
		}, []string{"result"}),
		rebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "svdoc_rebuild_duration_seconds",
			Help:    "Documentation rebuild duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		items: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "svdoc_documented_items",
			Help: "Documented items in the current build by kind",
		}, []string{"kind"}),
		parseErrors: f.NewGauge(prometheus.GaugeOpts{
			Name: "svdoc_parse_errors",
			Help: "Files that failed to parse in the current build",
		}),
	}
}
