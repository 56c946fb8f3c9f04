package settings

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/interfaces"
)

// Service is the configuration store. It holds the committed Settings in
// memory, loads them lazily on first access, and commits saves atomically:
// a failed persist leaves the prior committed values authoritative.
type Service struct {
	repo   *Repository
	logger interfaces.Logger

	mu        sync.RWMutex
	committed Settings
	loaded    bool
}

// NewService creates a configuration store seeded with defaults.
func NewService(repo *Repository, logger interfaces.Logger) *Service {
	return &Service{
		repo:      repo,
		logger:    logger,
		committed: Defaults(),
	}
}

// Current returns the committed settings, loading them from the store on
// first access. A load failure is recoverable: the in-memory values (defaults
// or the last commit) are returned alongside the error.
func (s *Service) Current(ctx context.Context) (Settings, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.committed, nil
	}
	s.mu.RUnlock()
	return s.Load(ctx)
}

// Load fetches persisted settings, overlays them on defaults and applies
// environment overrides (env > database > defaults).
func (s *Service) Load(ctx context.Context) (Settings, error) {
	kv, err := s.repo.LoadSettings(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Warn("Failed to load settings, keeping in-memory values",
			interfaces.Error(err))
		return s.committed, err
	}

	loaded := Defaults()
	if len(kv) > 0 {
		if uerr := unflatten(kv, &loaded); uerr != nil {
			s.logger.Warn("Failed to decode stored settings", interfaces.Error(uerr))
			return s.committed, uerr
		}
	}
	applyEnvOverrides(&loaded)

	s.committed = loaded
	s.loaded = true
	return s.committed, nil
}

// Save persists the staged settings and commits them on success. On failure
// the prior committed values remain in effect and the error is surfaced.
func (s *Service) Save(ctx context.Context, staged Settings) error {
	kv, err := flatten(staged)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeBadRequest, "encoding settings", err)
	}

	if err := s.repo.ReplaceSettings(ctx, kv); err != nil {
		s.logger.Error("Settings save failed, keeping committed values",
			interfaces.Error(err))
		return err
	}

	s.mu.Lock()
	s.committed = staged
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("Settings saved")
	return nil
}

// Presets returns the presets of one template; unknown templates yield an
// empty list.
func (s *Service) Presets(ctx context.Context, templateID string) ([]Preset, error) {
	rows, err := s.repo.ListPresets(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return decodePresets(rows), nil
}

// AllPresets returns every preset grouped by template id.
func (s *Service) AllPresets(ctx context.Context) (map[string]TemplatePresets, error) {
	rows, err := s.repo.AllPresets(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]TemplatePresets)
	for _, row := range rows {
		preset := decodePreset(row)
		group := out[row.TemplateID]
		group.Presets = append(group.Presets, PresetView{
			Preset: preset,
			Editor: SeedEditor(preset.Options),
		})
		out[row.TemplateID] = group
	}
	return out, nil
}

// SavePreset upserts a preset keyed by (template_id, preset_id).
func (s *Service) SavePreset(ctx context.Context, templateID, presetID, name string, options map[string]interface{}) error {
	if templateID == "" {
		templateID = "default"
	}
	if presetID == "" {
		return errors.BadRequest("preset id is required")
	}
	if name == "" {
		name = presetID
	}

	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeBadRequest, "encoding preset options", err)
	}

	rec := PresetRecord{
		TemplateID:  templateID,
		PresetID:    presetID,
		Name:        name,
		OptionsJSON: string(optionsJSON),
	}
	if err := s.repo.UpsertPreset(ctx, rec); err != nil {
		return err
	}

	s.logger.Info("Preset saved",
		interfaces.String("template_id", templateID),
		interfaces.String("preset_id", presetID))
	return nil
}

// DeletePreset removes a preset; missing presets are a NotFound error.
func (s *Service) DeletePreset(ctx context.Context, templateID, presetID string) error {
	if templateID == "" {
		templateID = "default"
	}
	deleted, err := s.repo.DeletePreset(ctx, templateID, presetID)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.NotFound("preset not found")
	}
	return nil
}

func decodePresets(rows []PresetRecord) []Preset {
	out := make([]Preset, 0, len(rows))
	for _, row := range rows {
		out = append(out, decodePreset(row))
	}
	return out
}

func decodePreset(row PresetRecord) Preset {
	options := map[string]interface{}{}
	// A row with corrupt JSON still yields a usable preset shell.
	_ = json.Unmarshal([]byte(row.OptionsJSON), &options)
	return Preset{ID: row.PresetID, Name: row.Name, Options: options}
}

// applyEnvOverrides lets container deployments force connection values.
func applyEnvOverrides(s *Settings) {
	if v := os.Getenv("PLEX_URL"); v != "" {
		s.Plex.URL = v
	}
	if v := os.Getenv("PLEX_TOKEN"); v != "" {
		s.Plex.Token = v
	}
	if v := os.Getenv("PLEX_MOVIE_LIBRARY_NAME"); v != "" {
		s.Plex.MovieLibrary = v
	}
	if v := os.Getenv("TMDB_API_KEY"); v != "" {
		s.TMDb.APIKey = v
	}
}

// flatten converts Settings into dotted-key rows with JSON-encoded leaves,
// e.g. "plex.url" → "\"http://...\"".
func flatten(s Settings) (map[string]string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}

	out := map[string]string{}
	var walk func(prefix string, node interface{}) error
	walk = func(prefix string, node interface{}) error {
		if nested, ok := node.(map[string]interface{}); ok {
			keys := make([]string, 0, len(nested))
			for k := range nested {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				key := k
				if prefix != "" {
					key = prefix + "." + k
				}
				if err := walk(key, nested[k]); err != nil {
					return err
				}
			}
			return nil
		}
		leaf, err := json.Marshal(node)
		if err != nil {
			return err
		}
		out[prefix] = string(leaf)
		return nil
	}
	if err := walk("", tree); err != nil {
		return nil, err
	}
	return out, nil
}

// unflatten rebuilds Settings from dotted-key rows on top of the values
// already present in dst.
func unflatten(kv map[string]string, dst *Settings) error {
	tree := map[string]interface{}{}
	for key, value := range kv {
		var leaf interface{}
		if err := json.Unmarshal([]byte(value), &leaf); err != nil {
			// Legacy rows stored bare strings without JSON quoting.
			leaf = value
		}
		insert(tree, key, leaf)
	}

	raw, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func insert(tree map[string]interface{}, key string, value interface{}) {
	node := tree
	for {
		i := -1
		for j := 0; j < len(key); j++ {
			if key[j] == '.' {
				i = j
				break
			}
		}
		if i < 0 {
			node[key] = value
			return
		}
		head, rest := key[:i], key[i+1:]
		child, ok := node[head].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			node[head] = child
		}
		node = child
		key = rest
	}
}
