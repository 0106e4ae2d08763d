// Package server provides the HTTP API for openextract: template catalog,
// extraction, and run history endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/openextract/openextract/internal/config"
	"github.com/openextract/openextract/internal/engine"
	"github.com/openextract/openextract/internal/extract"
	"github.com/openextract/openextract/internal/registry"
	"github.com/openextract/openextract/internal/store"
)

// Server is the HTTP server for the openextract API.
type Server struct {
	engine    *engine.Engine
	registry  *registry.Registry
	extractor *extract.Extractor
	store     store.Store
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. store may be nil,
// in which case runs are not persisted and the run endpoints report 501.
func NewServer(
	eng *engine.Engine,
	reg *registry.Registry,
	ex *extract.Extractor,
	st store.Store,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:    eng,
		registry:  reg,
		extractor: ex,
		store:     st,
		config:    cfg,
		logger:    logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/templates", s.handleListTemplates)
	r.Get("/api/v1/templates/{id}", s.handleGetTemplate)
	r.Post("/api/v1/templates/reload", s.handleReloadTemplates)
	r.Post("/api/v1/extract", s.handleExtract)
	r.Post("/api/v1/extract/batch", s.handleExtractBatch)
	r.Post("/api/v1/extract/file", s.handleExtractFile)
	r.Get("/api/v1/runs", s.handleListRuns)
	r.Get("/api/v1/runs/{id}", s.handleGetRun)
	r.Delete("/api/v1/runs/{id}", s.handleDeleteRun)
	r.Get("/api/v1/runs/{id}/export", s.handleExportRun)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
