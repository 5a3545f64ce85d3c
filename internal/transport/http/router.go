package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrlink/internal/platform/middleware"
	"qrlink/pkg/platform/httputil"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// RouterConfig carries the router's cross-cutting dependencies.
type RouterConfig struct {
	Handler   *Handler
	Validator middleware.TokenValidator
	Logger    *slog.Logger
	// Checks are probed by GET /healthz, keyed by dependency name.
	Checks map[string]HealthCheck
}

// NewRouter assembles the full middleware chain and route table.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Device)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", healthz(cfg.Checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.Validator, cfg.Logger))
		r.Use(middleware.ContentTypeJSON)
		cfg.Handler.Register(r)
	})

	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status":       httpStatusText(status),
			"dependencies": deps,
		})
	}
}

func httpStatusText(status int) string {
	if status == http.StatusOK {
		return "healthy"
	}
	return "degraded"
}
