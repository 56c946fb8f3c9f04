// Package tmdb is the metadata-provider boundary: candidate artwork and
// movie details for a TMDb id.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/postersmith/postersmith/pkg/errors"
)

// DefaultBaseURL is the public TMDb API endpoint.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// imageBase is the public image CDN prefix for original-size assets.
const imageBase = "https://image.tmdb.org/t/p/original"

// Client represents a TMDb API client. Requests are paced by a shared rate
// limiter so batch runs stay under the provider's limits.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new TMDb client. ratePerSecond <= 0 disables pacing.
func NewClient(baseURL, apiKey string, ratePerSecond float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: limiter,
	}
}

// Image is one candidate asset. HasText is derived from the image language:
// TMDb posters carrying a language code have baked-in title text.
type Image struct {
	URL      string  `json:"url"`
	Language string  `json:"language,omitempty"`
	HasText  bool    `json:"has_text"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Vote     float64 `json:"vote,omitempty"`
}

// Images groups the candidate artwork for one movie.
type Images struct {
	Posters []Image `json:"posters"`
	Logos   []Image `json:"logos"`
}

// MovieDetails carries the fields the templates substitute into posters.
type MovieDetails struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Year  string `json:"year"`
}

type imagesResponse struct {
	Posters []imageEntry `json:"posters"`
	Logos   []imageEntry `json:"logos"`
}

type imageEntry struct {
	FilePath    string  `json:"file_path"`
	ISO639      *string `json:"iso_639_1"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	VoteAverage float64 `json:"vote_average"`
}

type detailsResponse struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
}

// Images retrieves candidate posters and logos for a movie.
func (c *Client) Images(ctx context.Context, tmdbID int) (*Images, error) {
	var payload imagesResponse
	path := fmt.Sprintf("/movie/%d/images?api_key=%s&include_image_language=en,null", tmdbID, c.apiKey)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}

	out := &Images{
		Posters: make([]Image, 0, len(payload.Posters)),
		Logos:   make([]Image, 0, len(payload.Logos)),
	}
	for _, entry := range payload.Posters {
		out.Posters = append(out.Posters, entry.toImage())
	}
	for _, entry := range payload.Logos {
		out.Logos = append(out.Logos, entry.toImage())
	}
	return out, nil
}

// MovieDetails retrieves the title and release year for a movie.
func (c *Client) MovieDetails(ctx context.Context, tmdbID int) (*MovieDetails, error) {
	var payload detailsResponse
	path := fmt.Sprintf("/movie/%d?api_key=%s", tmdbID, c.apiKey)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}

	details := &MovieDetails{ID: payload.ID, Title: payload.Title}
	if release, err := time.Parse("2006-01-02", payload.ReleaseDate); err == nil {
		details.Year = strconv.Itoa(release.Year())
	}
	return details, nil
}

func (e imageEntry) toImage() Image {
	img := Image{
		URL:    imageBase + e.FilePath,
		Width:  e.Width,
		Height: e.Height,
		Vote:   e.VoteAverage,
	}
	if e.ISO639 != nil && *e.ISO639 != "" {
		img.Language = *e.ISO639
		img.HasText = true
	}
	return img
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if c.apiKey == "" {
		return errors.BadRequest("tmdb api key is not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(errors.ErrorTypeUnavailable, "tmdb rate wait", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeInternal, "creating tmdb request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeUnavailable, "executing tmdb request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errors.BadRequest("tmdb rejected the configured api key")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Unavailable(fmt.Sprintf("tmdb returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.ErrorTypeInternal, "decoding tmdb response", err)
	}
	return nil
}
