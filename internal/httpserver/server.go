// Package httpserver exposes artifact upload, browsing and export over HTTP.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/runnerr0/histlens/internal/config"
	"github.com/runnerr0/histlens/internal/httpserver/deps"
	"github.com/runnerr0/histlens/internal/httpserver/handlers"
	"github.com/runnerr0/histlens/internal/httpserver/mw"
	"github.com/runnerr0/histlens/internal/logger"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http    *http.Server
	logger  logger.Logger
	started time.Time
}

// New builds the HTTP server (router, middlewares, route registration).
func New(cfg config.ServerConfig, log logger.Logger, d deps.Deps) *Server {
	if d.StartTime.IsZero() {
		d.StartTime = time.Now()
	}
	if d.Logger == nil {
		d.Logger = log
	}

	s := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           Router(d),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &Server{
		http:    s,
		logger:  log,
		started: d.StartTime,
	}
}

// Router returns the API routes with the global middlewares applied.
func Router(d deps.Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(mw.Log(d.Logger))

	r.Get("/healthz", handlers.Healthz(d))
	r.With(mw.MaxBytes(d.MaxRequestSize)).Post("/upload", handlers.Upload(d))
	r.Get("/get_page", handlers.GetPage(d))
	r.Get("/get_downloads", handlers.GetDownloads(d))
	r.Get("/get_sync_info", handlers.GetSyncInfo(d))
	r.Get("/export/{file_id}", handlers.Export(d))
	r.Get("/artifacts", handlers.Artifacts(d))

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	s.logger.Infof("HTTP server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	// http.ErrServerClosed is expected on graceful shutdown.
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down",
		logger.Duration("uptime", time.Since(s.started)))
	return s.http.Shutdown(ctx)
}
