// Package httpapi wires the HTTP surface: middleware chain, health and
// metrics endpoints, and the versioned API routes.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	analysishandler "driftgate/internal/analysis/handler"
	authhandler "driftgate/internal/authtoken/handler"
	compliancehandler "driftgate/internal/compliance/handler"
	optouthandler "driftgate/internal/optout/handler"
	"driftgate/internal/platform/middleware"
	"driftgate/internal/ratelimit"
	targethandler "driftgate/internal/target/handler"
)

// Handlers collects the route groups the router mounts.
type Handlers struct {
	Auth       *authhandler.Handler
	Targets    *targethandler.Handler
	OptOut     *optouthandler.Handler
	Analysis   *analysishandler.Handler
	Compliance *compliancehandler.Handler
}

// NewRouter assembles the full HTTP handler. Health and metrics stay outside
// the auth boundary; everything under /v1 except token issuance requires a
// workspace token and counts against the workspace rate limit. A nil limiter
// disables rate limiting.
func NewRouter(logger *slog.Logger, validator middleware.JWTValidator, limiter *ratelimit.Limiter, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h.Auth.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))
		if limiter != nil {
			r.Use(ratelimit.Middleware(limiter, logger))
		}
		h.Targets.Register(r)
		h.OptOut.Register(r)
		h.Analysis.Register(r)
		h.Compliance.Register(r)
	})

	return r
}
