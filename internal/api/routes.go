package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ignite/feed-aggregator/internal/auth"
)

// RouteDeps holds everything SetupRoutes mounts. Nil handlers are skipped.
type RouteDeps struct {
	Blacklist      *BlacklistAPI
	Ingest         *IngestAPI
	Health         *HealthChecker
	Nonces         *auth.NonceGuard
	Metrics        http.Handler
	MetricsPath    string
	AllowedOrigins []string
}

// SetupRoutes configures all routes.
func SetupRoutes(d RouteDeps) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", auth.NonceHeader},
		ExposedHeaders:   []string{"Location", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.Health != nil {
		r.Get("/health", d.Health.HandleHealth)
		r.Get("/health/live", d.Health.HandleLiveness)
		r.Get("/health/ready", d.Health.HandleReadiness)
	}

	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, d.Metrics)
	}

	if d.Blacklist != nil {
		// The command checks its own nonce so it can answer with a
		// command-specific rejection.
		r.Get("/admin/feed-items/blacklist", d.Blacklist.HandleCommand)
	}

	r.Route("/api", func(r chi.Router) {
		if d.Blacklist != nil {
			r.Get("/blacklist", d.Blacklist.HandleList)
			r.Get("/blacklist/check", d.Blacklist.HandleCheck)
			r.With(d.Nonces.Require(NonceActionRemove, removeSubject)).Delete("/blacklist", d.Blacklist.HandleRemove)
		}
		if d.Ingest != nil {
			r.Post("/ingest/check", d.Ingest.HandleCheck)
		}
	})

	return r
}
