// Package server exposes the HTTP API: job control and progress polling,
// settings and presets, library views, render endpoints and the websocket
// progress stream.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/postersmith/postersmith/internal/config"
	"github.com/postersmith/postersmith/internal/library"
	"github.com/postersmith/postersmith/internal/progress"
	"github.com/postersmith/postersmith/internal/runner"
	"github.com/postersmith/postersmith/internal/settings"
	"github.com/postersmith/postersmith/pkg/interfaces"
)

// Server is the HTTP front of the service.
type Server struct {
	router     chi.Router
	httpServer *http.Server

	logger    interfaces.Logger
	tracker   *progress.Tracker
	runner    *runner.Service
	settings  *settings.Service
	cache     *library.Repository
	factories runner.Factories
	bus       interfaces.EventBus
	webhook   config.WebhookConfig
	logPath   string

	stream *progressStream
}

// Deps bundles everything the server serves.
type Deps struct {
	Logger    interfaces.Logger
	Tracker   *progress.Tracker
	Runner    *runner.Service
	Settings  *settings.Service
	Cache     *library.Repository
	Factories runner.Factories
	Bus       interfaces.EventBus
	Webhook   config.WebhookConfig
	LogPath   string
}

// New creates the server and mounts all routes.
func New(deps Deps) *Server {
	s := &Server{
		logger:    deps.Logger,
		tracker:   deps.Tracker,
		runner:    deps.Runner,
		settings:  deps.Settings,
		cache:     deps.Cache,
		factories: deps.Factories,
		bus:       deps.Bus,
		webhook:   deps.Webhook,
		logPath:   deps.LogPath,
	}
	s.stream = newProgressStream(deps.Bus, deps.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan/start", s.handleScanStart)
		r.Get("/scan/progress", s.handleScanProgress)
		r.Post("/batch/start", s.handleBatchStart)
		r.Get("/batch/progress", s.handleBatchProgress)

		r.Get("/settings", s.handleSettingsGet)
		r.Post("/settings", s.handleSettingsSave)
		r.Get("/presets", s.handlePresetsList)
		r.Post("/presets/save", s.handlePresetSave)
		r.Post("/presets/delete", s.handlePresetDelete)

		r.Get("/movies", s.handleMovies)
		r.Route("/movie/{ratingKey}", func(r chi.Router) {
			r.Get("/labels", s.handleMovieLabels)
			r.Post("/labels/remove", s.handleMovieLabelsRemove)
			r.Get("/poster", s.handleMoviePoster)
			r.Get("/tmdb", s.handleMovieTMDb)
		})
		r.Get("/tmdb/{tmdbID}/images", s.handleTMDbImages)

		r.Post("/preview", s.handlePreview)
		r.Post("/save", s.handleSave)
		r.Post("/plex/send", s.handlePlexSend)
		r.Post("/webhook/radarr", s.handleRadarrWebhook)

		r.Get("/templates", s.handleTemplates)
		r.Get("/logs", s.handleLogs)
		r.Get("/progress/ws", s.stream.handleWS)
	})

	s.router = r
	return s
}

// Router returns the mounted handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving on addr and blocks until the listener fails or
// Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("HTTP server listening", interfaces.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the stream subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stream.close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
