package assets_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postersmith/postersmith/internal/assets"
	"github.com/postersmith/postersmith/internal/tmdb"
	"github.com/postersmith/postersmith/pkg/logger"
)

func TestPickPosterFilters(t *testing.T) {
	posters := []tmdb.Image{
		{URL: "a", HasText: true},
		{URL: "b", HasText: false},
		{URL: "c", HasText: true},
	}

	assert.Equal(t, "a", assets.PickPoster(posters, assets.FilterAll).URL)
	assert.Equal(t, "b", assets.PickPoster(posters, assets.FilterTextless).URL)
	assert.Equal(t, "a", assets.PickPoster(posters, assets.FilterText).URL)
	assert.Nil(t, assets.PickPoster(nil, assets.FilterAll))
}

func TestPickPosterFallsBackToFirstWhenNoMatch(t *testing.T) {
	posters := []tmdb.Image{{URL: "a", HasText: true}}
	assert.Equal(t, "a", assets.PickPoster(posters, assets.FilterTextless).URL)
}

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPickLogoByBrightness(t *testing.T) {
	white := solidPNG(t, color.RGBA{R: 250, G: 250, B: 250, A: 255})
	dark := solidPNG(t, color.RGBA{R: 20, G: 20, B: 60, A: 255})

	mux := http.NewServeMux()
	mux.HandleFunc("/white.png", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(white) })
	mux.HandleFunc("/dark.png", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(dark) })
	server := httptest.NewServer(mux)
	defer server.Close()

	logos := []tmdb.Image{
		{URL: server.URL + "/dark.png"},
		{URL: server.URL + "/white.png"},
	}

	selector := assets.NewSelector(2, logger.NewNop())

	picked := selector.PickLogo(context.Background(), logos, assets.PreferWhite)
	require.NotNil(t, picked)
	assert.Contains(t, picked.URL, "white")

	picked = selector.PickLogo(context.Background(), logos, assets.PreferColor)
	require.NotNil(t, picked)
	assert.Contains(t, picked.URL, "dark")
}

func TestPickLogoFirstPreferenceSkipsScoring(t *testing.T) {
	logos := []tmdb.Image{{URL: "first"}, {URL: "second"}}

	selector := assets.NewSelector(2, logger.NewNop())
	picked := selector.PickLogo(context.Background(), logos, assets.PreferFirst)
	require.NotNil(t, picked)
	assert.Equal(t, "first", picked.URL)
}

func TestPickLogoEmpty(t *testing.T) {
	selector := assets.NewSelector(1, logger.NewNop())
	assert.Nil(t, selector.PickLogo(context.Background(), nil, assets.PreferWhite))
}
