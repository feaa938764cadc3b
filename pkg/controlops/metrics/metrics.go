package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported by the server.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpInFlight    prometheus.Gauge
	healthChecks    *prometheus.CounterVec
	healthLatency   prometheus.Histogram
	healthPassTotal prometheus.Histogram
}

// New registers all collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlops_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "controlops_http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "controlops_http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		healthChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlops_tool_health_checks_total",
				Help: "Tool health probes by resulting status.",
			},
			[]string{"status"},
		),
		healthLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "controlops_tool_health_probe_seconds",
			Help:    "Round-trip time of tool health probes.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		healthPassTotal: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "controlops_tool_health_pass_seconds",
			Help:    "Duration of a full health refresh pass.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// Middleware records request counts and latencies per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// ObserveProbe records the outcome of a single tool probe.
func (m *Metrics) ObserveProbe(status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.healthChecks.WithLabelValues(status).Inc()
	if latency > 0 {
		m.healthLatency.Observe(latency.Seconds())
	}
}

// ObservePass records the duration of a complete refresh pass.
func (m *Metrics) ObservePass(d time.Duration) {
	if m == nil {
		return
	}
	m.healthPassTotal.Observe(d.Seconds())
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
