// Package runner executes the long-running jobs: library scans, batch poster
// generation, and the Radarr auto-poster pipeline. Runners report through the
// progress tracker and never block the request that started them.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/postersmith/postersmith/internal/assets"
	"github.com/postersmith/postersmith/internal/library"
	"github.com/postersmith/postersmith/internal/plex"
	"github.com/postersmith/postersmith/internal/progress"
	"github.com/postersmith/postersmith/internal/render"
	"github.com/postersmith/postersmith/internal/settings"
	"github.com/postersmith/postersmith/internal/tmdb"
	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/interfaces"
)

// PlexLibrary is the slice of the Plex client the runners need.
type PlexLibrary interface {
	Movies(ctx context.Context) ([]plex.Movie, error)
	TMDbID(ctx context.Context, ratingKey string) (int, error)
	Labels(ctx context.Context, ratingKey string) ([]string, error)
	RemoveLabel(ctx context.Context, ratingKey, label string) error
	UploadPoster(ctx context.Context, ratingKey string, data []byte, contentType string) error
	PosterURL(ctx context.Context, ratingKey string) (string, error)
}

// MetadataProvider is the slice of the TMDb client the runners need.
type MetadataProvider interface {
	Images(ctx context.Context, tmdbID int) (*tmdb.Images, error)
	MovieDetails(ctx context.Context, tmdbID int) (*tmdb.MovieDetails, error)
}

// Factories build provider clients from the current settings. Settings can
// change between runs, so clients are constructed per run rather than once.
type Factories struct {
	Plex func(cfg settings.PlexSettings) PlexLibrary
	TMDb func(apiKey string, ratePerSecond float64) MetadataProvider
}

// DefaultFactories returns factories backed by the real HTTP clients.
func DefaultFactories(logger interfaces.Logger) Factories {
	return Factories{
		Plex: func(cfg settings.PlexSettings) PlexLibrary {
			return plex.NewClient(cfg, logger)
		},
		TMDb: func(apiKey string, ratePerSecond float64) MetadataProvider {
			return tmdb.NewClient("", apiKey, ratePerSecond)
		},
	}
}

// Service owns job execution. One job per kind runs at a time; a second start
// of the same kind fails fast with a conflict from the tracker.
type Service struct {
	tracker    *progress.Tracker
	settings   *settings.Service
	cache      *library.Repository
	renderer   render.Renderer
	factories  Factories
	outputRoot string
	logger     interfaces.Logger

	mu          sync.Mutex
	lastResults []ItemResult
}

// NewService creates the runner service. outputRoot anchors relative save
// locations.
func NewService(
	tracker *progress.Tracker,
	settingsSvc *settings.Service,
	cache *library.Repository,
	renderer render.Renderer,
	factories Factories,
	outputRoot string,
	logger interfaces.Logger,
) *Service {
	return &Service{
		tracker:    tracker,
		settings:   settingsSvc,
		cache:      cache,
		renderer:   renderer,
		factories:  factories,
		outputRoot: outputRoot,
		logger:     logger,
	}
}

// LastBatchResults returns the per-item results of the most recent batch run,
// including one still in flight.
func (s *Service) LastBatchResults() []ItemResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ItemResult(nil), s.lastResults...)
}

func (s *Service) setResults(results []ItemResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResults = append([]ItemResult(nil), results...)
}

// clients builds provider clients from the committed settings.
func (s *Service) clients(ctx context.Context) (PlexLibrary, MetadataProvider, settings.Settings, error) {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, nil, settings.Settings{}, err
	}
	return s.factories.Plex(cfg.Plex), s.factories.TMDb(cfg.TMDb.APIKey, cfg.Performance.TMDbRateLimit), cfg, nil
}

// resolveOptions merges preset options under the request options, request
// values winning, the way the editor applies a preset before tweaks.
func (s *Service) resolveOptions(ctx context.Context, templateID, presetID string, reqOptions map[string]interface{}) map[string]interface{} {
	merged := map[string]interface{}{}
	if presetID != "" {
		presets, err := s.settings.Presets(ctx, templateID)
		if err != nil {
			s.logger.Warn("Preset lookup failed, continuing with request options",
				interfaces.String("template_id", templateID),
				interfaces.String("preset_id", presetID))
		} else {
			found := false
			for _, p := range presets {
				if p.ID == presetID {
					for k, v := range p.Options {
						merged[k] = v
					}
					found = true
					break
				}
			}
			if !found {
				s.logger.Warn("Preset not found for template",
					interfaces.String("template_id", templateID),
					interfaces.String("preset_id", presetID))
			}
		}
	}
	for k, v := range reqOptions {
		merged[k] = v
	}
	return merged
}

func optionString(options map[string]interface{}, key, fallback string) string {
	if v, ok := options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// renderItem runs the per-movie pipeline: resolve tmdb id, fetch candidates,
// auto-select assets, render. It does not save or upload.
func (s *Service) renderItem(
	ctx context.Context,
	plexClient PlexLibrary,
	provider MetadataProvider,
	cfg settings.Settings,
	ratingKey, templateID string,
	options map[string]interface{},
) (*render.Result, *itemAssets, error) {
	tmdbID, err := plexClient.TMDbID(ctx, ratingKey)
	if err != nil {
		return nil, nil, err
	}
	if tmdbID == 0 {
		return nil, nil, errors.NotFound("no tmdb id found")
	}
	if s.cache != nil {
		// Best effort, a locked cache must not fail the render.
		if err := s.cache.SetTMDbID(ctx, ratingKey, tmdbID); err != nil {
			s.logger.Debug("Cache tmdb update failed", interfaces.String("rating_key", ratingKey))
		}
	}

	images, err := provider.Images(ctx, tmdbID)
	if err != nil {
		return nil, nil, err
	}
	details, err := provider.MovieDetails(ctx, tmdbID)
	if err != nil {
		return nil, nil, err
	}

	posterFilter := optionString(options, "poster_filter", assets.FilterAll)
	logoPreference := optionString(options, "logo_preference", assets.PreferFirst)
	logoMode := optionString(options, "logo_mode", "stock")

	poster := assets.PickPoster(images.Posters, posterFilter)
	if poster == nil {
		return nil, nil, errors.NotFound("no valid poster found")
	}

	var logoURL string
	if logoMode != "none" {
		selector := assets.NewSelector(cfg.Performance.Concurrency, s.logger)
		if logo := selector.PickLogo(ctx, images.Logos, logoPreference); logo != nil {
			logoURL = logo.URL
		}
	}

	renderOptions := make(map[string]interface{}, len(options)+2)
	for k, v := range options {
		renderOptions[k] = v
	}
	renderOptions["movie_title"] = details.Title
	renderOptions["movie_year"] = details.Year

	result, err := s.renderer.Render(ctx, render.Request{
		TemplateID:    templateID,
		BackgroundURL: poster.URL,
		LogoURL:       logoURL,
		Options:       renderOptions,
		Quality:       cfg.Quality,
	})
	if err != nil {
		return nil, nil, err
	}

	return result, &itemAssets{
		TMDbID:    tmdbID,
		Title:     details.Title,
		Year:      details.Year,
		PosterURL: poster.URL,
		LogoURL:   logoURL,
	}, nil
}

type itemAssets struct {
	TMDbID    int
	Title     string
	Year      string
	PosterURL string
	LogoURL   string
}

// saveLocally writes the rendered poster under the configured save location.
func (s *Service) saveLocally(cfg settings.Settings, result *render.Result, title, year, ratingKey string, batchRun bool) (string, error) {
	ext := ".jpg"
	if result.ContentType == "image/png" {
		ext = ".png"
	}
	dir, filename := ResolveSavePath(s.outputRoot, cfg.SaveLocation, title, year, ratingKey,
		batchRun && cfg.SaveBatchInSubfolder, ext)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrorTypeInternal, "creating save directory", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, result.Data, 0o644); err != nil {
		return "", errors.Wrap(errors.ErrorTypeInternal, "writing poster file", err)
	}
	return path, nil
}

// uploadAndCleanup sends the poster to Plex and removes the requested labels.
// Label removal failures are logged, not fatal: the poster already landed.
func (s *Service) uploadAndCleanup(ctx context.Context, plexClient PlexLibrary, ratingKey string, result *render.Result, labels []string) error {
	if err := plexClient.UploadPoster(ctx, ratingKey, result.Data, result.ContentType); err != nil {
		return err
	}
	for _, label := range labels {
		if label == "" {
			continue
		}
		if err := plexClient.RemoveLabel(ctx, ratingKey, label); err != nil {
			s.logger.Warn("Label removal failed after upload",
				interfaces.String("rating_key", ratingKey),
				interfaces.String("label", label))
		}
	}
	return nil
}

func itemLogLine(ratingKey, msg string) string {
	return fmt.Sprintf("%s: %s", ratingKey, msg)
}
