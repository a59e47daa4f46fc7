// Package httpapi assembles the public router: platform middleware, the
// admission gate, user endpoints, and operational endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ratelimitmw "usergate/internal/ratelimit/middleware"
	userhandler "usergate/internal/user/handler"
	"usergate/pkg/platform/httputil"
	"usergate/pkg/platform/middleware"
)

// HealthCheck reports readiness of one named dependency.
type HealthCheck func(ctx context.Context) error

// Deps carries everything the router mounts.
type Deps struct {
	Logger  *slog.Logger
	Limiter *ratelimitmw.Middleware
	Users   *userhandler.Handler
	Health  map[string]HealthCheck
}

// NewRouter wires the full middleware chain. Operational endpoints sit
// outside the rate limit gate so probes and scrapes are never throttled.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))

	r.Get("/healthz", healthHandler(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(deps.Limiter.RateLimit)
		}
		deps.Users.Register(r)
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
