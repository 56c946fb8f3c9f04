package server

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/postersmith/postersmith/internal/library"
	"github.com/postersmith/postersmith/internal/progress"
	"github.com/postersmith/postersmith/internal/render"
	"github.com/postersmith/postersmith/internal/runner"
	"github.com/postersmith/postersmith/internal/settings"
	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/interfaces"
)

func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request) {
	var opts runner.ScanOptions
	if err := decode(r, &opts); err != nil {
		s.respondError(w, err)
		return
	}

	runID, err := s.runner.StartScan(r.Context(), opts)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusAccepted, map[string]string{"status": "started", "run_id": runID})
}

func (s *Server) handleScanProgress(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.tracker.Snapshot(progress.KindScan))
}

func (s *Server) handleBatchStart(w http.ResponseWriter, r *http.Request) {
	var req runner.BatchRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	runID, err := s.runner.StartBatch(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusAccepted, map[string]string{"status": "started", "run_id": runID})
}

// batchProgressResponse embeds the snapshot and adds the structured per-item
// results, which the log lines only summarize.
type batchProgressResponse struct {
	progress.Snapshot
	Results []runner.ItemResult `json:"results"`
}

func (s *Server) handleBatchProgress(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, batchProgressResponse{
		Snapshot: s.tracker.Snapshot(progress.KindBatch),
		Results:  s.runner.LastBatchResults(),
	})
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	current, err := s.settings.Load(r.Context())
	if err != nil {
		// Load falls back to the committed values; serve those with a log.
		s.logger.Warn("Settings load failed, serving committed values", interfaces.Error(err))
	}
	s.respond(w, http.StatusOK, current)
}

func (s *Server) handleSettingsSave(w http.ResponseWriter, r *http.Request) {
	var staged settings.Settings
	if err := decode(r, &staged); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.settings.Save(r.Context(), staged); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePresetsList(w http.ResponseWriter, r *http.Request) {
	templateID := r.URL.Query().Get("template_id")
	if templateID == "" {
		templateID = "default"
	}
	presets, err := s.settings.Presets(r.Context(), templateID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	// Each preset ships with its editor seed expanded so the UI never
	// re-derives option semantics client-side.
	views := make([]settings.PresetView, 0, len(presets))
	for _, p := range presets {
		views = append(views, settings.PresetView{Preset: p, Editor: settings.SeedEditor(p.Options)})
	}
	s.respond(w, http.StatusOK, settings.TemplatePresets{Presets: views})
}

type presetSaveRequest struct {
	TemplateID string                 `json:"template_id"`
	PresetID   string                 `json:"preset_id"`
	Name       string                 `json:"name,omitempty"`
	Options    map[string]interface{} `json:"options"`
}

func (s *Server) handlePresetSave(w http.ResponseWriter, r *http.Request) {
	var req presetSaveRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if req.PresetID == "" {
		s.respondError(w, errors.BadRequest("preset_id is required"))
		return
	}
	err := s.settings.SavePreset(r.Context(), req.TemplateID, req.PresetID, req.Name, req.Options)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type presetDeleteRequest struct {
	TemplateID string `json:"template_id"`
	PresetID   string `json:"preset_id"`
}

func (s *Server) handlePresetDelete(w http.ResponseWriter, r *http.Request) {
	var req presetDeleteRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.settings.DeletePreset(r.Context(), req.TemplateID, req.PresetID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := s.cache.List(r.Context())
	if err == nil && len(movies) > 0 {
		s.respond(w, http.StatusOK, map[string][]library.Movie{"movies": movies})
		return
	}
	if err != nil {
		s.logger.Warn("Movie cache unavailable, falling back to live listing", interfaces.Error(err))
	}

	// Cold cache: list live and seed it.
	plexClient, err := s.plexClient(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	live, err := plexClient.Movies(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]library.Movie, 0, len(live))
	for _, m := range live {
		out = append(out, library.Movie{
			RatingKey: m.RatingKey,
			Title:     m.Title,
			Year:      m.Year,
			AddedAt:   m.AddedAt,
			Labels:    []string{},
		})
	}
	if err := s.cache.Refresh(r.Context(), out); err != nil {
		s.logger.Warn("Movie cache seed failed", interfaces.Error(err))
	}
	s.respond(w, http.StatusOK, map[string][]library.Movie{"movies": out})
}

func (s *Server) handleMovieLabels(w http.ResponseWriter, r *http.Request) {
	ratingKey := chi.URLParam(r, "ratingKey")

	plexClient, err := s.plexClient(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	labels, err := plexClient.Labels(r.Context(), ratingKey)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.cache.SetLabels(r.Context(), ratingKey, labels); err != nil {
		s.logger.Debug("Label cache update failed", interfaces.String("rating_key", ratingKey))
	}
	s.respond(w, http.StatusOK, map[string][]string{"labels": labels})
}

type labelsRemoveRequest struct {
	Labels []string `json:"labels"`
}

func (s *Server) handleMovieLabelsRemove(w http.ResponseWriter, r *http.Request) {
	ratingKey := chi.URLParam(r, "ratingKey")

	var req labelsRemoveRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if len(req.Labels) == 0 {
		s.respondError(w, errors.BadRequest("labels must not be empty"))
		return
	}

	plexClient, err := s.plexClient(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	for _, label := range req.Labels {
		if err := plexClient.RemoveLabel(r.Context(), ratingKey, label); err != nil {
			s.respondError(w, err)
			return
		}
	}
	s.respond(w, http.StatusOK, map[string]interface{}{"status": "ok", "removed": req.Labels})
}

func (s *Server) handleMoviePoster(w http.ResponseWriter, r *http.Request) {
	ratingKey := chi.URLParam(r, "ratingKey")

	plexClient, err := s.plexClient(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	url, err := plexClient.PosterURL(r.Context(), ratingKey)
	if err != nil || url == "" {
		// Mirrors the poll contract: no poster is data, not an error.
		s.respond(w, http.StatusOK, map[string]interface{}{"url": nil})
		return
	}
	if err := s.cache.SetPosterURL(r.Context(), ratingKey, url); err != nil {
		s.logger.Debug("Poster cache update failed", interfaces.String("rating_key", ratingKey))
	}
	s.respond(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleMovieTMDb(w http.ResponseWriter, r *http.Request) {
	ratingKey := chi.URLParam(r, "ratingKey")

	plexClient, err := s.plexClient(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	tmdbID, err := plexClient.TMDbID(r.Context(), ratingKey)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if tmdbID == 0 {
		s.respond(w, http.StatusOK, map[string]interface{}{"tmdb_id": nil})
		return
	}
	if err := s.cache.SetTMDbID(r.Context(), ratingKey, tmdbID); err != nil {
		s.logger.Debug("TMDb cache update failed", interfaces.String("rating_key", ratingKey))
	}
	s.respond(w, http.StatusOK, map[string]int{"tmdb_id": tmdbID})
}

func (s *Server) handleTMDbImages(w http.ResponseWriter, r *http.Request) {
	tmdbID, err := strconv.Atoi(chi.URLParam(r, "tmdbID"))
	if err != nil {
		s.respondError(w, errors.BadRequest("tmdb id must be numeric"))
		return
	}

	provider, err := s.tmdbClient(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	images, err := provider.Images(r.Context(), tmdbID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, images)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req runner.PosterRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	result, err := s.runner.Preview(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{
		"image_base64": base64.StdEncoding.EncodeToString(result.Data),
		"content_type": result.ContentType,
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req runner.SaveRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	path, err := s.runner.SavePoster(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "ok", "path": path})
}

func (s *Server) handlePlexSend(w http.ResponseWriter, r *http.Request) {
	var req runner.SendRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	if err := s.runner.SendToPlex(r.Context(), req); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRadarrWebhook(w http.ResponseWriter, r *http.Request) {
	var event runner.RadarrEvent
	if err := decode(r, &event); err != nil {
		s.respondError(w, err)
		return
	}

	result, err := s.runner.HandleRadarr(r.Context(), event, runner.WebhookConfig{
		Preset:   s.webhook.Preset,
		AutoSend: s.webhook.AutoSend,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string][]render.TemplateGroup{"groups": render.Templates()})
}
