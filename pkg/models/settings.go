package models

// Settings is the user-facing configuration committed as a whole. Saves are
// atomic: a failed persist leaves the previously committed values in place.
type Settings struct {
	Theme         string `json:"theme"`
	PosterDensity int    `json:"posterDensity"`

	SaveLocation         string `json:"saveLocation"`
	SaveBatchInSubfolder bool   `json:"saveBatchInSubfolder"`

	Plex        PlexSettings        `json:"plex"`
	TMDb        TMDbSettings        `json:"tmdb"`
	Quality     QualitySettings     `json:"quality"`
	Performance PerformanceSettings `json:"performance"`

	DefaultLabelsToRemove []string `json:"defaultLabelsToRemove"`
}

// PlexSettings holds the media-server connection.
type PlexSettings struct {
	URL          string `json:"url"`
	Token        string `json:"token"`
	MovieLibrary string `json:"movieLibraryName"`
	VerifyTLS    bool   `json:"verifyTLS"`
}

// TMDbSettings holds the metadata-provider credentials.
type TMDbSettings struct {
	APIKey string `json:"apiKey"`
}

// QualitySettings holds output encoding knobs.
type QualitySettings struct {
	Format         string `json:"format"` // jpeg or png
	JPEGQuality    int    `json:"jpegQuality"`
	PNGCompression int    `json:"pngCompression"`
}

// PerformanceSettings holds concurrency and pacing knobs consumed by the
// runners and provider clients.
type PerformanceSettings struct {
	Concurrency     int     `json:"concurrency"`     // parallel asset fetches per item
	TMDbRateLimit   float64 `json:"tmdbRateLimit"`   // requests per second
	MemoryCeilingMB int     `json:"memoryCeilingMB"` // advisory image-decode budget
}

// Preset is a named parameter bundle scoped to a poster template. Options are
// free-form key→value parameters consumed by the render boundary.
type Preset struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name"`
	Options map[string]interface{} `json:"options"`
}

// PresetView is a preset as the API serves it, with the editor seed already
// expanded so UIs populate their controls without re-deriving option
// semantics.
type PresetView struct {
	Preset
	Editor EditorValues `json:"editor"`
}

// TemplatePresets groups the presets of one template for the API payload.
type TemplatePresets struct {
	Presets []PresetView `json:"presets"`
}

// EditorValues are the primitive slider/toggle values an editor seeds from a
// preset's options bundle. Ratio options (0–1) become percentages (0–100) and
// missing or unrecognized fields fall back to fixed defaults so a render call
// never receives a nil parameter.
type EditorValues struct {
	PosterZoomPct   int    `json:"posterZoomPct"`   // 100 = no zoom
	PosterShiftYPct int    `json:"posterShiftYPct"` // -50..50
	MatteHeightPct  int    `json:"matteHeightPct"`  // 0..50
	FadeHeightPct   int    `json:"fadeHeightPct"`   // 0..50
	VignettePct     int    `json:"vignettePct"`     // 0..100
	GrainPct        int    `json:"grainPct"`        // 0..60
	LogoScalePct    int    `json:"logoScalePct"`    // 0..100 of canvas width
	LogoOffsetPct   int    `json:"logoOffsetPct"`   // 0..100 top→bottom
	LogoMode        string `json:"logoMode"`        // stock, tinted, none
	LogoHex         string `json:"logoHex"`
	BorderEnabled   bool   `json:"borderEnabled"`
	BorderPx        int    `json:"borderPx"`
	BorderColor     string `json:"borderColor"`
	PosterFilter    string `json:"posterFilter"`   // all, textless, text
	LogoPreference  string `json:"logoPreference"` // first, white, color
}
