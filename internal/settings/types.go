// Package settings implements the configuration store: committed user
// settings with stage-then-commit semantics, and template-scoped render
// presets. Settings precedence is environment > database > defaults so
// container deployments can force values while the UI remains the primary
// interactive config.
package settings

import "github.com/postersmith/postersmith/pkg/models"

// The wire types live in pkg/models so the Go client can share them; this
// package holds the store behavior and the server-side defaults.
type (
	Settings            = models.Settings
	PlexSettings        = models.PlexSettings
	TMDbSettings        = models.TMDbSettings
	QualitySettings     = models.QualitySettings
	PerformanceSettings = models.PerformanceSettings
	Preset              = models.Preset
	PresetView          = models.PresetView
	TemplatePresets     = models.TemplatePresets
)

// Defaults returns the settings used before anything is persisted and as
// fallback for fields missing from the store.
func Defaults() Settings {
	return Settings{
		Theme:                "dark",
		PosterDensity:        50,
		SaveLocation:         "{movie_title} ({movie_year})/{movie_title} ({movie_year}).jpg",
		SaveBatchInSubfolder: false,
		Plex: PlexSettings{
			URL:          "http://localhost:32400",
			MovieLibrary: "1",
			VerifyTLS:    true,
		},
		Quality: QualitySettings{
			Format:         "jpeg",
			JPEGQuality:    95,
			PNGCompression: 6,
		},
		Performance: PerformanceSettings{
			Concurrency:     4,
			TMDbRateLimit:   1.5,
			MemoryCeilingMB: 512,
		},
		DefaultLabelsToRemove: []string{"Overlay"},
	}
}
