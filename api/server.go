/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. RealIP:     Client address behind a proxy
  3. Logging:    One zap line per request (logging.Middleware)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus counters/histograms by route pattern
  6. CORS:       Cross-origin requests for the web client

ROUTE GROUPS:
  /healthz              Liveness, no auth
  /metrics              Prometheus exposition, no auth
  /api/*                Bearer auth required (RequireAuth)

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Authentication
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/daily-reflections/logging"
	"go.uber.org/zap"
)

// RequestTimeout bounds a single /api request.
const RequestTimeout = 30 * time.Second

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	Handler     *Handler
	Auth        Authenticator
	Registry    *prometheus.Registry
	Logger      *zap.Logger
	CORSOrigins []string

	// Ping backs /healthz. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// NewRouter creates a new router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	h := cfg.Handler
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(middleware.Recoverer)
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", healthz(cfg.Ping))
	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAuth(cfg.Auth))
		r.Use(middleware.Timeout(RequestTimeout))

		// Reflection routes
		r.Route("/reflections", func(r chi.Router) {
			r.Get("/", h.ListReflections)
			r.Post("/", h.CreateReflection)
			r.Post("/new", h.CreateReflection)
			r.Get("/today", h.GetToday)
			r.Get("/{id}", h.GetReflection)
			r.Put("/{id}", h.UpdateReflection)
			r.Post("/{id}", h.UpdateReflection)
			r.Delete("/{id}", h.DeleteReflection)
		})

		// Stats routes
		r.Get("/stats", h.GetStats)
	})

	return r
}

func healthz(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}
