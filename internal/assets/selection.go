// Package assets picks which candidate poster and logo a render uses, the
// same way the editor's auto-select does.
package assets

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/postersmith/postersmith/internal/tmdb"
	"github.com/postersmith/postersmith/pkg/interfaces"
)

// Poster filter modes.
const (
	FilterAll      = "all"
	FilterTextless = "textless"
	FilterText     = "text"
)

// Logo preference modes.
const (
	PreferFirst = "first"
	PreferWhite = "white"
	PreferColor = "color"
)

// Selector scores and picks artwork candidates.
type Selector struct {
	httpClient  *http.Client
	concurrency int
	logger      interfaces.Logger
}

// NewSelector creates a selector; concurrency bounds parallel logo downloads
// during brightness scoring.
func NewSelector(concurrency int, logger interfaces.Logger) *Selector {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Selector{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		concurrency: concurrency,
		logger:      logger,
	}
}

// PickPoster returns the first poster matching the filter, falling back to
// the first candidate when nothing matches. Nil means no posters at all.
func PickPoster(posters []tmdb.Image, filterMode string) *tmdb.Image {
	if len(posters) == 0 {
		return nil
	}
	switch filterMode {
	case FilterTextless:
		for i := range posters {
			if !posters[i].HasText {
				return &posters[i]
			}
		}
	case FilterText:
		for i := range posters {
			if posters[i].HasText {
				return &posters[i]
			}
		}
	}
	return &posters[0]
}

// PickLogo chooses a logo by brightness: "white" wants the brightest
// candidate, "color" the darkest, anything else the first. Nil means no
// logos at all.
func (s *Selector) PickLogo(ctx context.Context, logos []tmdb.Image, preference string) *tmdb.Image {
	if len(logos) == 0 {
		return nil
	}
	if preference != PreferWhite && preference != PreferColor {
		return &logos[0]
	}

	type scored struct {
		index      int
		brightness float64
	}
	results := make([]scored, len(logos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range logos {
		i := i
		g.Go(func() error {
			results[i] = scored{index: i, brightness: s.brightness(gctx, logos[i].URL)}
			return nil
		})
	}
	_ = g.Wait()

	// Brightest first; stable so equal scores keep provider order.
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].brightness > results[b].brightness
	})

	if preference == PreferWhite {
		return &logos[results[0].index]
	}
	return &logos[results[len(results)-1].index]
}

// brightness returns the mean luminance (0–255) of the image's opaque
// pixels. Broken downloads score 0 and sort as dark.
func (s *Selector) brightness(ctx context.Context, url string) float64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Debug("Logo download failed during scoring", interfaces.String("url", url))
		return 0
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return 0
	}

	bounds := img.Bounds()
	var sum, count float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if a>>8 <= 128 {
				continue
			}
			sum += float64(r>>8+g>>8+b>>8) / 3
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / count
}
