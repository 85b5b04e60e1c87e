// Package server provides the HTTP server and routing for Foundry.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/clients/trainer"
	"github.com/aristath/foundry/internal/config"
	"github.com/aristath/foundry/internal/database"
	"github.com/aristath/foundry/internal/events"
	"github.com/aristath/foundry/internal/modules/registry"
	registryhandlers "github.com/aristath/foundry/internal/modules/registry/handlers"
	"github.com/aristath/foundry/internal/modules/schedule"
	schedulehandlers "github.com/aristath/foundry/internal/modules/schedule/handlers"
	"github.com/aristath/foundry/internal/modules/settings"
	settingshandlers "github.com/aristath/foundry/internal/modules/settings/handlers"
	"github.com/aristath/foundry/internal/modules/training"
	traininghandlers "github.com/aristath/foundry/internal/modules/training/handlers"
)

// Config holds everything the server needs to route requests.
type Config struct {
	Log          zerolog.Logger
	Cfg          *config.Config
	ModelsDB     *database.DB
	ConfigDB     *database.DB
	EventBus     *events.Bus
	Registry     *registry.Service
	Orchestrator *training.Orchestrator
	History      *training.HistoryRepository
	Scheduler    *schedule.Scheduler
	Settings     *settings.Repository
	Trainer      *trainer.Client
}

// Server is the HTTP front of the model lifecycle backend.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming endpoints manage their own deadlines
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	systemHandlers := NewSystemHandlers(s.cfg, s.log)
	streamHandler := NewEventsStreamHandler(s.cfg.EventBus, s.log)
	wsHandler := NewEventsSocketHandler(s.cfg.EventBus, s.log)

	s.router.Route("/api", func(r chi.Router) {
		// Streaming endpoints sit outside the request timeout.
		r.Get("/events/stream", streamHandler.ServeHTTP)
		r.Get("/events/ws", wsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			registryhandlers.NewHandler(s.cfg.Registry, s.cfg.Cfg.ModelKeepCount, s.log).RegisterRoutes(r)
			traininghandlers.NewHandler(s.cfg.Orchestrator, s.cfg.History, s.log).RegisterRoutes(r)
			schedulehandlers.NewHandler(s.cfg.Scheduler, s.log).RegisterRoutes(r)
			settingshandlers.NewHandler(s.cfg.Settings, s.log).RegisterRoutes(r)

			r.Route("/system", func(r chi.Router) {
				r.Get("/health", systemHandlers.HandleHealth)
				r.Get("/info", systemHandlers.HandleInfo)
			})
		})
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"foundry"}`))
}

// loggingMiddleware logs each request at debug level with timing
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("Request")
	})
}

// Router exposes the mux for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
