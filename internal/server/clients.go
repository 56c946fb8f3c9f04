package server

import (
	"net/http"

	"github.com/postersmith/postersmith/internal/runner"
)

// Provider clients are built per request from the committed settings, so a
// settings save takes effect without a restart.

func (s *Server) plexClient(r *http.Request) (runner.PlexLibrary, error) {
	cfg, err := s.settings.Current(r.Context())
	if err != nil {
		return nil, err
	}
	return s.factories.Plex(cfg.Plex), nil
}

func (s *Server) tmdbClient(r *http.Request) (runner.MetadataProvider, error) {
	cfg, err := s.settings.Current(r.Context())
	if err != nil {
		return nil, err
	}
	return s.factories.TMDb(cfg.TMDb.APIKey, cfg.Performance.TMDbRateLimit), nil
}
