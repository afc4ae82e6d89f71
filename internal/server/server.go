// Package server exposes an engine's control surface over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cwbudde/algo-sketchsynth/synth"
)

// MaxRenderSeconds bounds GET /render.
const MaxRenderSeconds = 30

// Config holds server configuration
type Config struct {
	Port int
	// Headless enables GET /render. Leave it off when a device is pulling
	// audio from the engine, since rendering advances the shared clock.
	Headless bool
	Logger   *slog.Logger
}

// Server is the HTTP server
type Server struct {
	config Config
	router *chi.Mux
	logger *slog.Logger
	engine *synth.Engine
}

// New wires the routes for engine.
func New(cfg Config, engine *synth.Engine) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		engine: engine,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/state", s.handleState)

	r.Put("/waveform", s.handleWaveform)
	r.Post("/analyze", s.handleAnalyze)
	r.Get("/presets", s.handlePresets)
	r.Get("/presets/{name}", s.handlePreset)

	r.Delete("/notes", s.handleStopAll)
	r.Post("/notes/{key}", s.handleNoteOn)
	r.Delete("/notes/{key}", s.handleNoteOff)

	r.Put("/envelope", s.handleEnvelope)
	r.Put("/filter", s.handleFilter)
	r.Put("/effects", s.handleEffects)
	r.Put("/volume", s.handleVolume)

	if s.config.Headless {
		r.Get("/render", s.handleRender)
	}
}

// Run serves until ctx is cancelled or the process receives SIGINT/SIGTERM.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info("shutting down server...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.logger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	s.logger.Info("server starting", slog.Int("port", s.config.Port), slog.Bool("headless", s.config.Headless))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		stop()
		<-done
		return err
	}
	<-done
	return nil
}
