package handler

import (
	"context"
	"net/http"

	"github.com/gaia-magnetics/magclient/internal/api/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// NewHealthHandler checks the processing backend and, when configured, the
// result cache. A nil cache is reported as "disabled".
func NewHealthHandler(backend Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"backend": "ok",
			"cache":   "disabled",
		}

		if err := backend.Ping(r.Context()); err != nil {
			checks["backend"] = "degraded"
		}
		if cache != nil {
			checks["cache"] = "ok"
			if err := cache.Ping(r.Context()); err != nil {
				checks["cache"] = "degraded"
			}
		}

		if checks["backend"] == "degraded" || checks["cache"] == "degraded" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
