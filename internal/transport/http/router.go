package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ncacli/internal/config"
	"ncacli/internal/middleware"
)

// NewRouter wires the analysis API: request ID, structured logging, panic
// recovery and optional rate limiting around the analyze, health and metrics
// endpoints.
func NewRouter(cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	if cfg.Server.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, logger)
		r.Use(limiter.Handler)
	}

	metrics := NewMetrics()
	analyzeHandler := NewAnalyzeHandler(cfg.Analysis, metrics, logger)
	healthHandler := NewHealthHandler()

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", analyzeHandler.Analyze)
		r.Get("/health", healthHandler.HealthCheck)
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}
