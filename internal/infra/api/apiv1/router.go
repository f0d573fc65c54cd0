package apiv1

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/api"
	"ai-image-billing/internal/infra/metrics"
	"ai-image-billing/internal/infra/web"
)

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterOptions struct {
	RequestTimeout time.Duration
	// Health maps a dependency name to its ping.
	Health map[string]Pinger
	// BeforeScrape refreshes sampled gauges on /metrics.
	BeforeScrape func()
}

// NewRouter builds the full HTTP surface: public API, admin API, health and metrics.
func NewRouter(public *Server, admin *web.Server, opts RouterOptions, logger *zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		api.TraceID(logger),
		api.RequestLog(logger),
		api.Recover(logger),
	)
	if opts.RequestTimeout > 0 {
		r.Use(api.Timeout(opts.RequestTimeout))
	}

	r.Get("/healthz", healthHandler(opts.Health, logger))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(opts.BeforeScrape))

	RegisterAPIV1(r, public)
	if admin != nil {
		admin.RegisterRoutes(r)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		api.WriteError(w, req, nil, derror.New(derror.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		api.WriteJSON(w, http.StatusMethodNotAllowed, api.ErrorBody{Error: "method not allowed", Code: derror.CodeValidation})
	})
	return r
}

func healthHandler(deps map[string]Pinger, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps))
		for name, p := range deps {
			if err := p.Ping(ctx); err != nil {
				logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		api.WriteJSON(w, status, map[string]any{"ok": status == http.StatusOK, "checks": checks})
	}
}
