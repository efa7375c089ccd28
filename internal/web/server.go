package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/signet/internal/config"
	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/signature"
	"github.com/kozaktomas/signet/internal/web/handlers"
	"github.com/kozaktomas/signet/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	jobManager *handlers.JobManager
	service    *signature.Service
	artifacts  handlers.ArtifactRemover

	accounts   database.AccountStore
	rooms      database.RoomStore
	signatures database.SignatureStore
}

// NewServer creates a new web server. The database backend must be
// registered before the server is created.
func NewServer(cfg *config.Config, port int, host string, service *signature.Service, artifacts handlers.ArtifactRemover) (*Server, error) {
	ctx := context.Background()
	accounts, err := database.GetAccountStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("account store: %w", err)
	}
	rooms, err := database.GetRoomStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("room store: %w", err)
	}
	signatures, err := database.GetSignatureStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("signature store: %w", err)
	}

	r := chi.NewRouter()

	s := &Server{
		config:     cfg,
		router:     r,
		jobManager: handlers.NewJobManager(),
		service:    service,
		artifacts:  artifacts,
		accounts:   accounts,
		rooms:      rooms,
		signatures: signatures,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for SSE and uploads
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown cancels running training jobs and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	for _, job := range s.jobManager.ListJobs() {
		switch job.GetStatus() {
		case handlers.JobStatusPending, handlers.JobStatusRunning:
			job.Cancel()
		}
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
