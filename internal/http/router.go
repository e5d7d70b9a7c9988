package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jw6ventures/habitplanner/internal/api"
	"github.com/jw6ventures/habitplanner/internal/auth"
	"github.com/jw6ventures/habitplanner/internal/config"
	"github.com/jw6ventures/habitplanner/internal/http/ratelimit"
	"github.com/jw6ventures/habitplanner/internal/metrics"
)

// HealthChecker reports whether the backing database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter wires the probes, metrics and the habit API.
func NewRouter(cfg *config.Config, health HealthChecker, authService *auth.Service, habitsAPI *api.Handler, limiter *ratelimit.Limiter, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(cors(cfg.CORSAllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := health.HealthCheck(ctx); err != nil {
			log.Warn("readiness check failed", zap.Error(err))
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	// Authentication runs first so the limiter can key on the account.
	r.Route("/api/habits", func(r chi.Router) {
		r.Use(authService.RequireBearer)
		r.Use(limiter.Middleware())
		habitsAPI.Routes(r)
	})

	return r
}
