// Package render is the template boundary: turn a background and optional
// logo into encoded poster bytes. Template compositing lives behind the
// Renderer interface so the pipeline does not care how a style is drawn.
package render

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/postersmith/postersmith/internal/settings"
	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/interfaces"
)

// Request carries everything a single render needs. Options are the raw
// template knobs (0-1 ratios, hex colors) as stored in presets.
type Request struct {
	TemplateID    string                 `json:"template_id"`
	BackgroundURL string                 `json:"background_url"`
	LogoURL       string                 `json:"logo_url,omitempty"`
	Options       map[string]interface{} `json:"options,omitempty"`
	Quality       settings.QualitySettings
}

// Result is the encoded poster.
type Result struct {
	Data        []byte
	ContentType string
}

// Renderer renders one poster. Implementations must treat a bad background
// URL as a BadRequest error and a failed logo as recoverable.
type Renderer interface {
	Render(ctx context.Context, req Request) (*Result, error)
}

// TemplateInfo describes one selectable template for the catalog endpoint.
type TemplateInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TemplateGroup groups templates for the picker.
type TemplateGroup struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	Templates []TemplateInfo `json:"templates"`
}

// Templates returns the template catalog. "universal" is a synonym for
// "default" and is not listed separately.
func Templates() []TemplateGroup {
	return []TemplateGroup{
		{
			ID:    "basic",
			Label: "Basic",
			Templates: []TemplateInfo{
				{ID: "default", Name: "Default Poster"},
				{ID: "uniformlogo", Name: "Uniform Logo"},
			},
		},
	}
}

func knownTemplate(id string) bool {
	switch id {
	case "default", "universal", "uniformlogo":
		return true
	}
	return false
}

// HTTPRenderer downloads source images over HTTP and re-encodes them with
// the configured quality. Styling effects beyond logo placement are left to
// richer Renderer implementations.
type HTTPRenderer struct {
	httpClient *http.Client
	logger     interfaces.Logger
}

// NewHTTPRenderer creates the default renderer.
func NewHTTPRenderer(logger interfaces.Logger) *HTTPRenderer {
	return &HTTPRenderer{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger,
	}
}

// Render downloads the background (and logo, if any), composites the logo in
// the lower third, and encodes the result per the request's quality settings.
func (r *HTTPRenderer) Render(ctx context.Context, req Request) (*Result, error) {
	if req.BackgroundURL == "" {
		return nil, errors.BadRequest("background url is required")
	}
	if !knownTemplate(req.TemplateID) {
		return nil, errors.BadRequest("unknown template '" + req.TemplateID + "'")
	}

	background, err := r.download(ctx, req.BackgroundURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeBadRequest, "downloading background image", err)
	}

	var logo image.Image
	if req.LogoURL != "" {
		logo, err = r.download(ctx, req.LogoURL)
		if err != nil {
			// A broken logo should not sink the poster.
			r.logger.Warn("Logo download failed, rendering without logo",
				interfaces.String("url", req.LogoURL))
			logo = nil
		}
	}

	composed := compose(background, logo, req.Options)
	return encode(composed, req.Quality)
}

func (r *HTTPRenderer) download(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Unavailable("image fetch returned status " + resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// compose draws the logo over the background, scaled by logo_scale (ratio of
// background width) and positioned by logo_offset (ratio of height). Nearest
// neighbour is good enough for the size this runs at.
func compose(background, logo image.Image, options map[string]interface{}) image.Image {
	bounds := background.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), background, bounds.Min, draw.Src)

	if logo == nil {
		return out
	}

	scale := optionRatio(options, "logo_scale", 0.5)
	offset := optionRatio(options, "logo_offset", 0.75)

	logoBounds := logo.Bounds()
	targetW := int(float64(bounds.Dx()) * scale)
	if targetW < 1 {
		targetW = 1
	}
	targetH := targetW * logoBounds.Dy() / maxInt(logoBounds.Dx(), 1)
	if targetH < 1 {
		targetH = 1
	}

	originX := (bounds.Dx() - targetW) / 2
	originY := int(float64(bounds.Dy())*offset) - targetH/2

	for y := 0; y < targetH; y++ {
		srcY := logoBounds.Min.Y + y*logoBounds.Dy()/targetH
		for x := 0; x < targetW; x++ {
			srcX := logoBounds.Min.X + x*logoBounds.Dx()/targetW
			c := logo.At(srcX, srcY)
			if _, _, _, a := c.RGBA(); a == 0 {
				continue
			}
			dstX, dstY := originX+x, originY+y
			if dstX < 0 || dstY < 0 || dstX >= bounds.Dx() || dstY >= bounds.Dy() {
				continue
			}
			out.Set(dstX, dstY, c)
		}
	}
	return out
}

func encode(img image.Image, quality settings.QualitySettings) (*Result, error) {
	var buf bytes.Buffer
	switch quality.Format {
	case "png":
		encoder := png.Encoder{CompressionLevel: compressionLevel(quality.PNGCompression)}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, errors.Wrap(errors.ErrorTypeInternal, "encoding png poster", err)
		}
		return &Result{Data: buf.Bytes(), ContentType: "image/png"}, nil
	default:
		q := quality.JPEGQuality
		if q <= 0 || q > 100 {
			q = 95
		}
		opaque := image.NewRGBA(img.Bounds())
		draw.Draw(opaque, opaque.Bounds(), image.Black, image.Point{}, draw.Src)
		draw.Draw(opaque, opaque.Bounds(), img, img.Bounds().Min, draw.Over)
		if err := jpeg.Encode(&buf, opaque, &jpeg.Options{Quality: q}); err != nil {
			return nil, errors.Wrap(errors.ErrorTypeInternal, "encoding jpeg poster", err)
		}
		return &Result{Data: buf.Bytes(), ContentType: "image/jpeg"}, nil
	}
}

func compressionLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level >= 8:
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}

func optionRatio(options map[string]interface{}, key string, fallback float64) float64 {
	if options == nil {
		return fallback
	}
	switch v := options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
