package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edgegate/edgegate/internal/core/ratelimit"
	"github.com/edgegate/edgegate/internal/server/handlers"
	servermw "github.com/edgegate/edgegate/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	hm := s.healthManager()

	// Health and version sit outside admission: probes must answer even when
	// a caller's quota is exhausted.
	s.router.Get("/health", hm.HealthHandler)
	s.router.Get("/health/live", hm.LivenessHandler)
	s.router.Get("/health/ready", hm.ReadinessHandler)
	s.router.Get("/version", handlers.VersionHandler)

	metrics := handlers.NewMetrics(s.deps.Aggregator)
	requests := handlers.NewRequests(s.deps.Correlator)

	// Ops reads share the default quota class.
	s.router.Group(func(r chi.Router) {
		r.Use(s.admit(ratelimit.ClassDefault))
		r.Get("/ops/metrics", metrics.Daily)
		r.Get("/ops/metrics/hourly", metrics.Hourly)
		r.Get("/ops/requests/{requestID}", requests.Get)
	})

	// Application routes, gated per class. Handlers here are placeholders
	// for the proxied application surface.
	s.router.Group(func(r chi.Router) {
		r.Use(s.admit(ratelimit.ClassAuth))
		r.Post("/auth/login", acceptedHandler)
		r.Post("/auth/register", acceptedHandler)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.admit(ratelimit.ClassExpensive))
		r.Get("/api/reports", acceptedHandler)
		r.Post("/api/exports", acceptedHandler)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.admit(ratelimit.ClassAPI))
		r.HandleFunc("/api/*", acceptedHandler)
	})
}

func (s *Server) admit(class string) func(http.Handler) http.Handler {
	return servermw.Admission(s.deps.Decider, s.deps.Policies, class)
}

func acceptedHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
