package runner

import (
	"context"
	"strings"

	"github.com/postersmith/postersmith/internal/render"
	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/interfaces"
)

// PosterRequest describes one explicit render: the editor already picked the
// background and logo, unlike the batch pipeline which auto-selects them.
type PosterRequest struct {
	TemplateID    string                 `json:"template_id"`
	BackgroundURL string                 `json:"background_url"`
	LogoURL       string                 `json:"logo_url,omitempty"`
	PresetID      string                 `json:"preset_id,omitempty"`
	Options       map[string]interface{} `json:"options,omitempty"`
}

// SaveRequest is a PosterRequest plus the metadata the save-location template
// substitutes.
type SaveRequest struct {
	PosterRequest
	MovieTitle string `json:"movie_title"`
	MovieYear  string `json:"movie_year,omitempty"`
	RatingKey  string `json:"rating_key,omitempty"`
}

// SendRequest is a PosterRequest uploaded straight to a library item.
type SendRequest struct {
	PosterRequest
	RatingKey string   `json:"rating_key"`
	Labels    []string `json:"labels,omitempty"`
}

func validBackgroundURL(url string) bool {
	return strings.HasPrefix(url, "http://") ||
		strings.HasPrefix(url, "https://") ||
		strings.HasPrefix(url, "/uploads/")
}

// Preview renders a poster and returns the encoded bytes.
func (s *Service) Preview(ctx context.Context, req PosterRequest) (*render.Result, error) {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	options := s.resolveOptions(ctx, req.TemplateID, req.PresetID, req.Options)
	return s.renderer.Render(ctx, render.Request{
		TemplateID:    req.TemplateID,
		BackgroundURL: req.BackgroundURL,
		LogoURL:       req.LogoURL,
		Options:       options,
		Quality:       cfg.Quality,
	})
}

// SavePoster renders a poster and writes it under the configured save
// location.
func (s *Service) SavePoster(ctx context.Context, req SaveRequest) (string, error) {
	if req.MovieTitle == "" {
		return "", errors.BadRequest("movie_title is required")
	}

	rendered, err := s.Preview(ctx, req.PosterRequest)
	if err != nil {
		return "", err
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return "", err
	}
	path, err := s.saveLocally(cfg, rendered, req.MovieTitle, req.MovieYear, req.RatingKey, false)
	if err != nil {
		return "", err
	}

	s.logger.Info("Saved poster", interfaces.String("path", path))
	return path, nil
}

// SendToPlex renders a poster, uploads it to the given library item and
// removes the requested labels.
func (s *Service) SendToPlex(ctx context.Context, req SendRequest) error {
	if req.RatingKey == "" {
		return errors.BadRequest("rating_key is required")
	}
	if !validBackgroundURL(req.BackgroundURL) {
		return errors.BadRequest("invalid background_url")
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return err
	}
	if cfg.Plex.URL == "" || cfg.Plex.Token == "" {
		return errors.BadRequest("plex url and token must be configured")
	}

	rendered, err := s.Preview(ctx, req.PosterRequest)
	if err != nil {
		return err
	}

	plexClient := s.factories.Plex(cfg.Plex)
	if err := s.uploadAndCleanup(ctx, plexClient, req.RatingKey, rendered, req.Labels); err != nil {
		return err
	}

	s.logger.Info("Sent poster", interfaces.String("rating_key", req.RatingKey))
	return nil
}
