package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Create outcomes.
const (
	outcomeCreated  = "created"
	outcomeExisting = "existing"
	outcomeError    = "error"
)

// Metrics holds Prometheus metrics for the HTTP API.
//
// Metrics:
//   - daily_http_requests_total{method,route,status}
//   - daily_http_request_duration_seconds{method,route}
//   - daily_reflection_creates_total{outcome} - created | existing | error
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CreatesTotal    *prometheus.CounterVec
}

// NewMetrics creates the API metrics and registers them with reg.
// Pass a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daily_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "daily_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CreatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daily_reflection_creates_total",
				Help: "Create-or-get calls by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Middleware records request count and latency by route pattern.
// Patterns keep label cardinality bounded (no raw ids or dates).
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) observeCreate(outcome string) {
	if m == nil {
		return
	}
	m.CreatesTotal.WithLabelValues(outcome).Inc()
}
