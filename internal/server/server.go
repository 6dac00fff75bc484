// Package server provides the local HTTP interface the browser talks to:
// the poll and revive API, the view shell, local asset proxying, static
// files, and an optional websocket nudge channel. Handlers never hold the
// cache's write lock; they read copies or dispatch into the worker.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markview/markview/internal/cache"
	"github.com/markview/markview/internal/config"
	"github.com/markview/markview/internal/logging"
	"github.com/markview/markview/internal/source"
	"github.com/markview/markview/internal/worker"
)

// Server is the HTTP front end.
type Server struct {
	mu         sync.RWMutex
	cfg        *config.Config
	httpServer *http.Server
	boundAddr  string

	cache     *cache.Cache
	worker    *worker.Worker
	src       source.BufferSource
	templates *TemplateStore
	hub       *Hub
	logger    logging.Logger

	// ready reports whether startup (registry build included) completed;
	// until then /api/revive answers NOT FOUND.
	ready func() bool
}

// New assembles the server around its collaborators.
func New(cfg *config.Config, c *cache.Cache, w *worker.Worker, src source.BufferSource, ready func() bool, logger logging.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		cache:     c,
		worker:    w,
		src:       src,
		templates: NewTemplateStore(cfg.Server.TemplateDir),
		hub:       NewHub(logger),
		logger:    logger.WithComponent("server"),
		ready:     ready,
	}
	return s
}

// Hub returns the websocket hub so the lifecycle controller can wire the
// worker's publish callback to it.
func (s *Server) Hub() *Hub { return s.hub }

// ApplyConfig swaps the active configuration. The caller decides whether a
// listener restart is needed (config.Diff).
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.templates = NewTemplateStore(cfg.Server.TemplateDir)
	s.mu.Unlock()
}

func (s *Server) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestLogger)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/public/*", s.handlePublic)
	r.Get("/local/{key}", s.handleLocal)
	r.Post("/api/query", s.handleQuery)
	r.Post("/api/revive", s.handleRevive)
	r.Delete("/api/cache", s.handleCacheClear)
	r.Get("/view/{id}", s.handleView)
	r.Get("/ws", s.hub.Serve)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Start binds the listener and begins serving. The bind itself is
// synchronous so a port conflict fails startup; serving continues in the
// background until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config()
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.boundAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info(ctx, "listening", "addr", s.Addr())
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error(ctx, err, "server error")
		}
	}()
	return nil
}

// Restart tears the listener down and brings it up on the current
// configuration. Cache, worker, and websocket clients are untouched
// (clients reconnect on their own).
func (s *Server) Restart(ctx context.Context) error {
	if err := s.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, err, "shutdown during restart")
	}
	return s.Start(ctx)
}

// Shutdown stops the listener gracefully and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.boundAddr = ""
	s.mu.Unlock()

	s.hub.CloseAll()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Addr returns the bound listen address once serving, or the configured
// one before Start. Port 0 in the configuration resolves to the port the
// OS actually picked.
func (s *Server) Addr() string {
	s.mu.RLock()
	bound := s.boundAddr
	s.mu.RUnlock()
	if bound != "" {
		return bound
	}
	cfg := s.config()
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}
