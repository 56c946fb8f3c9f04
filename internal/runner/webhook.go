package runner

import (
	"context"
	"strings"

	"github.com/postersmith/postersmith/internal/render"
	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/interfaces"
)

// RadarrMovie is the movie payload Radarr posts with its webhooks.
type RadarrMovie struct {
	Title  string `json:"title"`
	Year   int    `json:"year,omitempty"`
	TMDbID int    `json:"tmdbId,omitempty"`
}

// RadarrEvent is the webhook envelope. Only download and grab events trigger
// the auto-poster pipeline.
type RadarrEvent struct {
	EventType string      `json:"eventType"`
	Movie     RadarrMovie `json:"movie"`
}

// WebhookConfig tunes the auto-poster pipeline.
type WebhookConfig struct {
	Preset   string
	AutoSend bool
}

// WebhookResult reports what the pipeline did with one event.
type WebhookResult struct {
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	RatingKey  string `json:"rating_key,omitempty"`
	SentToPlex bool   `json:"sent_to_plex"`
}

// HandleRadarr runs the Radarr → poster → Plex pipeline for one event. It is
// synchronous: Radarr retries on failure, so there is no job slot to claim.
func (s *Service) HandleRadarr(ctx context.Context, event RadarrEvent, cfg WebhookConfig) (*WebhookResult, error) {
	eventType := strings.ToLower(event.EventType)
	if eventType != "download" && eventType != "grab" {
		return &WebhookResult{Status: "ignored", Reason: "eventType not handled"}, nil
	}

	s.logger.Info("Radarr webhook received",
		interfaces.String("title", event.Movie.Title),
		interfaces.Int("year", event.Movie.Year),
		interfaces.Int("tmdb_id", event.Movie.TMDbID))

	plexClient, provider, appSettings, err := s.clients(ctx)
	if err != nil {
		return nil, err
	}

	ratingKey, err := s.findRatingKey(ctx, plexClient, event.Movie.Title, event.Movie.Year)
	if err != nil {
		return nil, err
	}
	if ratingKey == "" {
		return nil, errors.NotFound("no matching movie in the library")
	}

	tmdbID := event.Movie.TMDbID
	if tmdbID == 0 {
		tmdbID, err = plexClient.TMDbID(ctx, ratingKey)
		if err != nil {
			return nil, err
		}
	}
	if tmdbID == 0 {
		return nil, errors.NotFound("no tmdb id for movie")
	}

	images, err := provider.Images(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	if len(images.Posters) == 0 {
		return nil, errors.NotFound("no posters available")
	}

	var logoURL string
	if len(images.Logos) > 0 {
		logoURL = images.Logos[0].URL
	}

	presetID := cfg.Preset
	if presetID == "" {
		presetID = "default"
	}
	options := s.resolveOptions(ctx, "default", presetID, nil)

	rendered, err := s.renderer.Render(ctx, render.Request{
		TemplateID:    "default",
		BackgroundURL: images.Posters[0].URL,
		LogoURL:       logoURL,
		Options:       options,
		Quality:       appSettings.Quality,
	})
	if err != nil {
		return nil, err
	}

	if !cfg.AutoSend {
		s.logger.Info("Webhook rendered poster, auto-send disabled",
			interfaces.String("rating_key", ratingKey))
		return &WebhookResult{Status: "ok", RatingKey: ratingKey, SentToPlex: false}, nil
	}

	if err := s.uploadAndCleanup(ctx, plexClient, ratingKey, rendered, appSettings.DefaultLabelsToRemove); err != nil {
		return nil, err
	}

	s.logger.Info("Webhook poster sent", interfaces.String("rating_key", ratingKey))
	return &WebhookResult{Status: "ok", RatingKey: ratingKey, SentToPlex: true}, nil
}

// findRatingKey matches a Radarr movie to a library entry by title, using the
// year to break ties when both sides have one.
func (s *Service) findRatingKey(ctx context.Context, plexClient PlexLibrary, title string, year int) (string, error) {
	movies, err := plexClient.Movies(ctx)
	if err != nil {
		return "", err
	}

	fallback := ""
	for _, m := range movies {
		if !strings.EqualFold(m.Title, title) {
			continue
		}
		if year != 0 && m.Year != 0 {
			if m.Year == year {
				return m.RatingKey, nil
			}
			continue
		}
		if fallback == "" {
			fallback = m.RatingKey
		}
	}
	return fallback, nil
}
