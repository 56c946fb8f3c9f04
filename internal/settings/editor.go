package settings

import "github.com/postersmith/postersmith/pkg/models"

// EditorValues are the primitive slider/toggle values an editor seeds from a
// preset's options bundle. Ratio options (0–1) become percentages (0–100) and
// missing or unrecognized fields fall back to fixed defaults so a render call
// never receives a nil parameter.
type EditorValues = models.EditorValues

// DefaultEditorValues returns the fixed fallbacks used for fields a preset
// does not carry.
func DefaultEditorValues() EditorValues {
	return EditorValues{
		PosterZoomPct:  100,
		LogoScalePct:   50,
		LogoOffsetPct:  75,
		LogoMode:       "stock",
		LogoHex:        "#FFFFFF",
		BorderColor:    "#FFFFFF",
		PosterFilter:   "all",
		LogoPreference: "first",
	}
}

// SeedEditor expands a preset's options bundle field by field into editor
// values. Override values edited afterwards are never written back to the
// preset unless the user explicitly re-saves it.
func SeedEditor(options map[string]interface{}) EditorValues {
	v := DefaultEditorValues()
	if options == nil {
		return v
	}

	if f, ok := optFloat(options, "poster_zoom"); ok {
		v.PosterZoomPct = int(f * 100)
	}
	if f, ok := optFloat(options, "poster_shift_y"); ok {
		v.PosterShiftYPct = int(f * 100)
	}
	if f, ok := optFloat(options, "matte_height_ratio"); ok {
		v.MatteHeightPct = int(f * 100)
	}
	if f, ok := optFloat(options, "fade_height_ratio"); ok {
		v.FadeHeightPct = int(f * 100)
	}
	if f, ok := optFloat(options, "vignette_strength"); ok {
		v.VignettePct = int(f * 100)
	}
	if f, ok := optFloat(options, "grain_amount"); ok {
		v.GrainPct = int(f * 100)
	}
	if f, ok := optFloat(options, "logo_scale"); ok {
		v.LogoScalePct = int(f * 100)
	}
	if f, ok := optFloat(options, "logo_offset"); ok {
		v.LogoOffsetPct = int(f * 100)
	}
	if s, ok := optString(options, "logo_mode"); ok {
		v.LogoMode = s
	}
	if s, ok := optString(options, "logo_hex"); ok {
		v.LogoHex = s
	}
	if b, ok := optBool(options, "border_enabled"); ok {
		v.BorderEnabled = b
	}
	if f, ok := optFloat(options, "border_px"); ok {
		v.BorderPx = int(f)
	}
	if s, ok := optString(options, "border_color"); ok {
		v.BorderColor = s
	}
	if s, ok := optString(options, "poster_filter"); ok {
		v.PosterFilter = s
	}
	if s, ok := optString(options, "logo_preference"); ok {
		v.LogoPreference = s
	}
	return v
}

func optFloat(options map[string]interface{}, key string) (float64, bool) {
	raw, ok := options[key]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func optString(options map[string]interface{}, key string) (string, bool) {
	raw, ok := options[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func optBool(options map[string]interface{}, key string) (bool, bool) {
	raw, ok := options[key]
	if !ok {
		return false, false
	}
	b, ok := raw.(bool)
	return b, ok
}
