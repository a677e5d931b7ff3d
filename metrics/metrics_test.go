package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveEncode(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveEncode("svg", "ok")
	m.ObserveEncode("svg", "ok")
	m.ObserveEncode("png", "invalid_payload")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.encodeTotal.WithLabelValues("svg", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.encodeTotal.WithLabelValues("png", "invalid_payload")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveEncode("svg", "ok")
	m.ObserveBatch("svg", 3, time.Millisecond)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/batches/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batches/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/batches/{id}", "404")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "qrbatch_http_requests_total")
}
