// Package server exposes the task API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/csrf"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/internal/store"
)

// Config holds the settings the server needs at construction time.
type Config struct {
	Addr          string
	AllowedOrigin string
	Logger        *slog.Logger
}

// Server wires the gin engine to an http.Server.
type Server struct {
	cfg      Config
	engine   *gin.Engine
	server   *http.Server
	handlers *Handlers
	sessions *session.Manager
	guard    *csrf.Guard
	logger   *slog.Logger
	listener net.Listener
}

// New builds a Server with all routes registered. It does not start
// listening.
func New(cfg Config, st store.Store, guard *csrf.Guard, sessions *session.Manager) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		handlers: NewHandlers(st, guard, logger),
		sessions: sessions,
		guard:    guard,
		logger:   logger,
	}

	s.engine = gin.New()
	s.engine.RedirectTrailingSlash = false
	s.engine.RedirectFixedPath = false

	s.engine.Use(gin.CustomRecoveryWithWriter(io.Discard, s.recoverPanic))
	s.engine.Use(s.loggingMiddleware())
	s.engine.Use(s.corsMiddleware())
	s.engine.Use(sessions.Middleware())

	s.registerRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	go func() {
		s.logger.Info("HTTP server starting", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	s.logger.Error("panic serving request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"panic", recovered,
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, api.Failure(api.ErrInternal))
}
