package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	repo, err := NewRepository(db)
	require.NoError(t, err)

	return NewService(repo, logger.NewNop())
}

func TestSettingsRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	staged := Defaults()
	staged.Theme = "light"
	staged.Plex.URL = "http://plex.local:32400"
	staged.Plex.Token = "token-1234"
	staged.Performance.Concurrency = 8
	staged.DefaultLabelsToRemove = []string{"Overlay", "Kometa"}

	require.NoError(t, svc.Save(ctx, staged))

	loaded, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, staged, loaded)
}

func TestCurrentReturnsDefaultsBeforeFirstSave(t *testing.T) {
	svc := newTestService(t)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults().Theme, current.Theme)
	assert.Equal(t, Defaults().Quality.JPEGQuality, current.Quality.JPEGQuality)
}

func TestFailedSaveKeepsCommittedValues(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	repo, err := NewRepository(db)
	require.NoError(t, err)
	svc := NewService(repo, logger.NewNop())
	ctx := context.Background()

	committed := Defaults()
	committed.Theme = "light"
	require.NoError(t, svc.Save(ctx, committed))

	// Break persistence underneath the service.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	staged := committed
	staged.Theme = "dark"
	err = svc.Save(ctx, staged)
	require.Error(t, err)

	current, _ := svc.Current(ctx)
	assert.Equal(t, "light", current.Theme)
}

func TestPresetSaveLoadRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SavePreset(ctx, "default", "p1", "", map[string]interface{}{
		"poster_zoom": 0.9,
	}))

	presets, err := svc.Presets(ctx, "default")
	require.NoError(t, err)
	require.Len(t, presets, 1)
	assert.Equal(t, "p1", presets[0].ID)
	assert.Equal(t, "p1", presets[0].Name)
	assert.Equal(t, 0.9, presets[0].Options["poster_zoom"])

	// Saving again overwrites rather than duplicating.
	require.NoError(t, svc.SavePreset(ctx, "default", "p1", "Muted", map[string]interface{}{
		"poster_zoom": 1.1,
	}))

	presets, err = svc.Presets(ctx, "default")
	require.NoError(t, err)
	require.Len(t, presets, 1)
	assert.Equal(t, "Muted", presets[0].Name)
	assert.Equal(t, 1.1, presets[0].Options["poster_zoom"])
}

func TestPresetsUnknownTemplateYieldsEmptyList(t *testing.T) {
	svc := newTestService(t)

	presets, err := svc.Presets(context.Background(), "no-such-template")
	require.NoError(t, err)
	assert.Empty(t, presets)
}

func TestPresetsAreScopedByTemplate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SavePreset(ctx, "default", "p1", "", nil))
	require.NoError(t, svc.SavePreset(ctx, "matte", "p1", "", nil))

	grouped, err := svc.AllPresets(ctx)
	require.NoError(t, err)
	assert.Len(t, grouped, 2)
	assert.Len(t, grouped["default"].Presets, 1)
	assert.Len(t, grouped["matte"].Presets, 1)
}

func TestDeletePreset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SavePreset(ctx, "default", "p1", "", nil))
	require.NoError(t, svc.DeletePreset(ctx, "default", "p1"))

	presets, err := svc.Presets(ctx, "default")
	require.NoError(t, err)
	assert.Empty(t, presets)

	err = svc.DeletePreset(ctx, "default", "p1")
	assert.True(t, errors.IsNotFound(err))
}

func TestSeedEditorExpandsRatiosToPercentages(t *testing.T) {
	values := SeedEditor(map[string]interface{}{
		"poster_zoom":       0.9,
		"vignette_strength": 0.25,
		"grain_amount":      0.1,
		"logo_scale":        0.4,
		"logo_mode":         "tinted",
		"border_enabled":    true,
		"border_px":         float64(12),
	})

	assert.Equal(t, 90, values.PosterZoomPct)
	assert.Equal(t, 25, values.VignettePct)
	assert.Equal(t, 10, values.GrainPct)
	assert.Equal(t, 40, values.LogoScalePct)
	assert.Equal(t, "tinted", values.LogoMode)
	assert.True(t, values.BorderEnabled)
	assert.Equal(t, 12, values.BorderPx)
}

func TestSeedEditorFallsBackToDefaults(t *testing.T) {
	values := SeedEditor(map[string]interface{}{
		"unknown_knob": 42,
		"logo_mode":    7, // wrong type, ignored
	})

	assert.Equal(t, DefaultEditorValues(), values)
}
