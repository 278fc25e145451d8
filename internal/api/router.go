package api

import (
	"net/http"

	mw "github.com/gaia-magnetics/magclient/internal/api/middleware"
	"github.com/gaia-magnetics/magclient/internal/api/response"
	"github.com/go-chi/chi/v5"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit
	// Metrics, when set, wraps every route and /metrics is served.
	Metrics        func(http.Handler) http.Handler
	MetricsHandler http.Handler

	HealthHandler  http.HandlerFunc
	CreateSession  http.HandlerFunc
	DeleteSession  http.HandlerFunc
	UploadHeaders  http.HandlerFunc
	SubmitJob      http.HandlerFunc
	GetJob         http.HandlerFunc
	GetResult      http.HandlerFunc
	GetPlot        http.HandlerFunc
	DownloadResult http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	if deps.Metrics != nil {
		r.Use(deps.Metrics)
	}

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Post("/api/v1/sessions", orNotImplemented(deps.CreateSession))
	r.Route("/api/v1/sessions/{sessionID}", func(r chi.Router) {
		r.Delete("/", orNotImplemented(deps.DeleteSession))
		r.Post("/headers", orNotImplemented(deps.UploadHeaders))
		r.With(deps.RateLimit.Limit).Post("/jobs", orNotImplemented(deps.SubmitJob))
		r.Get("/job", orNotImplemented(deps.GetJob))
		r.Get("/result", orNotImplemented(deps.GetResult))
		r.Get("/plot.png", orNotImplemented(deps.GetPlot))
		r.Get("/download", orNotImplemented(deps.DownloadResult))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
