// Package server assembles the HTTP surface: the middleware pipeline that
// gates and records every request, the ops read endpoints, and the health
// probes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/edgegate/edgegate/internal/config"
	"github.com/edgegate/edgegate/internal/core/ratelimit"
	"github.com/edgegate/edgegate/internal/core/requestlog"
	"github.com/edgegate/edgegate/internal/core/store"
	"github.com/edgegate/edgegate/internal/core/telemetry"
	apperrors "github.com/edgegate/edgegate/internal/errors"
	"github.com/edgegate/edgegate/internal/observability"
	"github.com/edgegate/edgegate/internal/server/handlers"
	servermw "github.com/edgegate/edgegate/internal/server/middleware"
)

// Deps carries the wired domain components the server routes traffic through.
type Deps struct {
	Counter    store.Counter
	Decider    *ratelimit.Decider
	Aggregator *telemetry.Aggregator
	Correlator *requestlog.Correlator
	Policies   ratelimit.Policies
	Version    string
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    config.ServerConfig
	deps   Deps
}

// New creates a new HTTP server instance
func New(cfg config.ServerConfig, deps Deps) *Server {
	r := chi.NewRouter()

	// RealIP first so admission and snapshots see the forwarded address.
	r.Use(chimw.RealIP)

	// Pipeline order matters: the request ID must exist before the snapshot
	// opens, and recovery sits inside the lifecycle so panics still produce
	// a completion event.
	r.Use(servermw.RequestID)
	r.Use(servermw.Lifecycle(deps.Correlator, deps.Aggregator, deps.Decider))
	r.Use(servermw.Recovery(deps.Correlator))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		envelope := apperrors.New(apperrors.CodeNotFound, "The requested resource was not found")
		apperrors.Respond(w, envelope, servermw.GetRequestID(req.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		envelope := apperrors.New(apperrors.CodeMethodNotAllowed, "The requested method is not allowed for this resource")
		apperrors.Respond(w, envelope, servermw.GetRequestID(req.Context()))
	})

	s := &Server{
		router: r,
		cfg:    cfg,
		deps:   deps,
	}

	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	readTimeout := s.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	idleTimeout := s.cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 120 * time.Second
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.cfg.Host),
		zap.Int("port", s.cfg.Port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	observability.ServerLogger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.cfg.Port
}

// healthManager wires the shared store ping into the probe endpoints.
func (s *Server) healthManager() *handlers.HealthManager {
	hm := handlers.NewHealthManager(s.deps.Version)
	counter := s.deps.Counter
	hm.RegisterChecker("store", handlers.HealthCheckerFunc(func(ctx context.Context) error {
		return counter.Ping(ctx)
	}))
	return hm
}
