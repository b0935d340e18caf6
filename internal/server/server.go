// Package server provides the HTTP API for book ingestion and retrieval.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/gk6450/mcq-gen/internal/config"
	"github.com/gk6450/mcq-gen/internal/indexer"
	"github.com/gk6450/mcq-gen/internal/retrieval"
	"github.com/gk6450/mcq-gen/internal/storage"
)

// Server is the HTTP server for the book API.
type Server struct {
	pipeline *indexer.Pipeline
	engine   *retrieval.Engine
	ledger   storage.Ledger
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	pipeline *indexer.Pipeline,
	engine *retrieval.Engine,
	ledger storage.Ledger,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline: pipeline,
		engine:   engine,
		ledger:   ledger,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/books", s.handleIngestBook)
	r.Get("/api/v1/books", s.handleListBooks)
	r.Get("/api/v1/books/{id}", s.handleGetBook)
	r.Put("/api/v1/books/{id}", s.handleUpdateBook)
	r.Delete("/api/v1/books/{id}", s.handleDeleteBook)
	r.Get("/api/v1/books/{id}/chapters", s.handleListChapters)
	r.Post("/api/v1/retrieve", s.handleRetrieve)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
