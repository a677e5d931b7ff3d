// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "qrbatch"

// Metrics holds every collector of the service. Build one per registry with
// New; tests pass a fresh prometheus.NewRegistry().
type Metrics struct {
	registry *prometheus.Registry

	encodeTotal    *prometheus.CounterVec
	encodeDuration *prometheus.HistogramVec
	batchSize      prometheus.Histogram
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		encodeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_total",
			Help:      "Payloads encoded, by output format and result kind.",
		}, []string{"format", "result"}),
		encodeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_duration_seconds",
			Help:      "Wall time to encode one batch.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"format"}),
		batchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Payloads per generate request.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		requestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		requestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveEncode counts one payload outcome. result is "ok" or an error kind.
func (m *Metrics) ObserveEncode(format, result string) {
	if m == nil {
		return
	}
	m.encodeTotal.WithLabelValues(format, result).Inc()
}

// ObserveBatch records the size and encode time of one batch.
func (m *Metrics) ObserveBatch(format string, size int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
	m.encodeDuration.WithLabelValues(format).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency, labelled by the chi route
// pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
