package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/kozaktomas/photo-match/internal/config"
	"github.com/kozaktomas/photo-match/internal/fingerprint"
	"github.com/kozaktomas/photo-match/internal/search"
	"github.com/kozaktomas/photo-match/internal/web/handlers"
	"github.com/kozaktomas/photo-match/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	fs         afero.Fs
	engine     *fingerprint.Engine
	searcher   *search.Searcher
	log        logrus.FieldLogger
	router     *chi.Mux
	httpServer *http.Server
	jobManager *handlers.JobManager
}

// NewServer creates a new web server reading images from fsys
func NewServer(cfg *config.Config, fsys afero.Fs, log logrus.FieldLogger) *Server {
	r := chi.NewRouter()

	engine := fingerprint.New()
	searcher := search.New(fsys, engine,
		search.WithExtensions(cfg.Search.Extensions),
		search.WithWorkers(cfg.Search.Workers),
		search.WithTopK(cfg.Search.TopK),
		search.WithLogger(log),
	)

	s := &Server{
		config:     cfg,
		fs:         fsys,
		engine:     engine,
		searcher:   searcher,
		log:        log,
		router:     r,
		jobManager: handlers.NewJobManager(),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for SSE
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("Starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown cancels running scans and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down web server...")

	for _, job := range s.jobManager.ListJobs() {
		job.Cancel()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
