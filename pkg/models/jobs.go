package models

// ScanOptions control how much per-movie enrichment a scan performs beyond
// refreshing the basic movie list.
type ScanOptions struct {
	IncludeLabels bool `json:"include_labels"`
	IncludeTMDb   bool `json:"include_tmdb"`
}

// BatchRequest selects the movies and render parameters for one batch run.
type BatchRequest struct {
	Items      []string               `json:"items"`
	TemplateID string                 `json:"template_id"`
	PresetID   string                 `json:"preset_id,omitempty"`
	Options    map[string]interface{} `json:"options,omitempty"`

	SaveLocally bool     `json:"save_locally"`
	SendToPlex  bool     `json:"send_to_plex"`
	Labels      []string `json:"labels,omitempty"`
}

// ItemResult is the structured outcome of one batch item. The final report
// is this data, not parsed log lines.
type ItemResult struct {
	ID        string `json:"id"`
	RatingKey string `json:"rating_key"`
	Title     string `json:"title,omitempty"`
	Status    string `json:"status"`
	Err       string `json:"error,omitempty"`
	PosterURL string `json:"poster_used,omitempty"`
	LogoURL   string `json:"logo_used,omitempty"`
	SavedPath string `json:"save_path,omitempty"`
	Uploaded  bool   `json:"uploaded"`
}

// Item statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)
