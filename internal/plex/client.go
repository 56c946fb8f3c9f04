// Package plex is the media-server boundary: library listing, label
// management and poster upload against the Plex XML API.
package plex

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/postersmith/postersmith/internal/settings"
	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/interfaces"
)

var tmdbGuidPattern = regexp.MustCompile(`(?:tmdb|themoviedb)://(\d+)`)

// Movie is one library item as Plex reports it.
type Movie struct {
	RatingKey string `json:"rating_key"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	AddedAt   int64  `json:"added_at,omitempty"`
}

// Client talks to one Plex server. Construct it from the committed settings
// at job start or request time; it holds no mutable state.
type Client struct {
	baseURL    string
	token      string
	library    string
	httpClient *http.Client
	logger     interfaces.Logger
}

// NewClient creates a Plex client from connection settings.
func NewClient(cfg settings.PlexSettings, logger interfaces.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 32,
	}
	if !cfg.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user opt-out for self-signed servers
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		library: cfg.MovieLibrary,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
		logger: logger,
	}
}

// XML payload shapes shared by the section and metadata endpoints.
type mediaContainer struct {
	XMLName     xml.Name    `xml:"MediaContainer"`
	Directories []directory `xml:"Directory"`
	Videos      []video     `xml:"Video"`
}

type directory struct {
	Key   string `xml:"key,attr"`
	Title string `xml:"title,attr"`
}

type video struct {
	RatingKey string  `xml:"ratingKey,attr"`
	Title     string  `xml:"title,attr"`
	Year      string  `xml:"year,attr"`
	AddedAt   string  `xml:"addedAt,attr"`
	Thumb     string  `xml:"thumb,attr"`
	Guids     []guid  `xml:"Guid"`
	Tags      []tag   `xml:"Tag"`
	Labels    []label `xml:"Label"`
}

type guid struct {
	ID string `xml:"id,attr"`
}

type tag struct {
	TagType string `xml:"tagType,attr"`
	Type    string `xml:"type,attr"`
	Tag     string `xml:"tag,attr"`
}

type label struct {
	Tag string `xml:"tag,attr"`
}

// ResolveLibraryID maps the configured library name to its section key. A
// numeric name is already a key; an unknown name falls back to section 1.
func (c *Client) ResolveLibraryID(ctx context.Context) string {
	name := strings.TrimSpace(c.library)
	if name == "" {
		return "1"
	}
	if _, err := strconv.Atoi(name); err == nil {
		return name
	}

	var container mediaContainer
	if err := c.getXML(ctx, "/library/sections", &container); err != nil {
		c.logger.Warn("Failed to list Plex sections, falling back to section 1",
			interfaces.Error(err))
		return "1"
	}

	for _, dir := range container.Directories {
		if strings.EqualFold(strings.TrimSpace(dir.Title), name) {
			return dir.Key
		}
	}
	return "1"
}

// Movies lists every movie in the configured library.
func (c *Client) Movies(ctx context.Context) ([]Movie, error) {
	section := c.ResolveLibraryID(ctx)

	var container mediaContainer
	path := fmt.Sprintf("/library/sections/%s/all?type=1", section)
	if err := c.getXML(ctx, path, &container); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeUnavailable, "listing plex movies", err)
	}

	movies := make([]Movie, 0, len(container.Videos))
	for _, v := range container.Videos {
		if v.RatingKey == "" {
			continue
		}
		m := Movie{RatingKey: v.RatingKey, Title: v.Title}
		if year, err := strconv.Atoi(v.Year); err == nil {
			m.Year = year
		}
		if added, err := strconv.ParseInt(v.AddedAt, 10, 64); err == nil {
			m.AddedAt = added
		}
		movies = append(movies, m)
	}
	return movies, nil
}

// TMDbID extracts the TMDb id from an item's Guid entries; 0 means no id.
func (c *Client) TMDbID(ctx context.Context, ratingKey string) (int, error) {
	var container mediaContainer
	if err := c.getXML(ctx, "/library/metadata/"+url.PathEscape(ratingKey), &container); err != nil {
		return 0, errors.Wrap(errors.ErrorTypeUnavailable, "fetching plex metadata", err)
	}

	for _, v := range container.Videos {
		for _, g := range v.Guids {
			if match := tmdbGuidPattern.FindStringSubmatch(g.ID); match != nil {
				id, _ := strconv.Atoi(match[1])
				return id, nil
			}
		}
	}
	return 0, nil
}

// Labels returns the item's labels, covering both the modern
// <Tag tagType="label"> form and the older <Label tag="..."> form.
func (c *Client) Labels(ctx context.Context, ratingKey string) ([]string, error) {
	var container mediaContainer
	if err := c.getXML(ctx, "/library/metadata/"+url.PathEscape(ratingKey), &container); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeUnavailable, "fetching plex metadata", err)
	}

	seen := map[string]bool{}
	var labels []string
	for _, v := range container.Videos {
		for _, t := range v.Tags {
			tagType := strings.ToLower(t.TagType)
			if tagType == "" {
				tagType = strings.ToLower(t.Type)
			}
			if tagType == "label" && t.Tag != "" && !seen[t.Tag] {
				seen[t.Tag] = true
				labels = append(labels, t.Tag)
			}
		}
		for _, l := range v.Labels {
			if l.Tag != "" && !seen[l.Tag] {
				seen[l.Tag] = true
				labels = append(labels, l.Tag)
			}
		}
	}
	sort.Strings(labels)
	return labels, nil
}

// RemoveLabel removes one label from an item. Plex versions differ in which
// endpoint accepts removals, so three strategies are tried in order and the
// first success wins.
func (c *Client) RemoveLabel(ctx context.Context, ratingKey, labelName string) error {
	if labelName == "" {
		return nil
	}

	section := c.ResolveLibraryID(ctx)
	attempts := []struct {
		method string
		path   string
		params url.Values
	}{
		{
			method: http.MethodPut,
			path:   fmt.Sprintf("/library/sections/%s/all", section),
			params: url.Values{
				"type":              {"1"},
				"id":                {ratingKey},
				"label[].tag.tag-":  {labelName},
			},
		},
		{
			method: http.MethodDelete,
			path:   fmt.Sprintf("/library/metadata/%s/labels", url.PathEscape(ratingKey)),
			params: url.Values{
				"tag.tag":  {labelName},
				"tag.type": {"label"},
			},
		},
		{
			method: http.MethodPut,
			path:   "/library/metadata/" + url.PathEscape(ratingKey),
			params: url.Values{
				"label[].tag.tag-": {labelName},
				"type":             {"1"},
			},
		},
	}

	for i, attempt := range attempts {
		status, err := c.do(ctx, attempt.method, attempt.path, attempt.params, nil, "")
		if err == nil && (status == http.StatusOK || status == http.StatusCreated || status == http.StatusNoContent) {
			c.logger.Info("Removed label",
				interfaces.String("label", labelName),
				interfaces.String("rating_key", ratingKey),
				interfaces.Int("strategy", i+1))
			return nil
		}
		if err != nil {
			c.logger.Warn("Label removal strategy failed",
				interfaces.Int("strategy", i+1),
				interfaces.Error(err))
		}
	}
	return errors.Unavailable(fmt.Sprintf("all label removal strategies failed for %q", labelName))
}

// UploadPoster posts the rendered image as the item's poster.
func (c *Client) UploadPoster(ctx context.Context, ratingKey string, image []byte, contentType string) error {
	path := fmt.Sprintf("/library/metadata/%s/posters", url.PathEscape(ratingKey))
	status, err := c.do(ctx, http.MethodPost, path, nil, image, contentType)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeUnavailable, "uploading poster", err)
	}
	if status < 200 || status >= 300 {
		return errors.Unavailable(fmt.Sprintf("poster upload returned status %d", status))
	}
	return nil
}

// PosterURL returns a directly resolvable URL for the item's current poster,
// or "" if the item has none.
func (c *Client) PosterURL(ctx context.Context, ratingKey string) (string, error) {
	direct := fmt.Sprintf("%s/library/metadata/%s/thumb?X-Plex-Token=%s",
		c.baseURL, url.PathEscape(ratingKey), url.QueryEscape(c.token))
	if status, err := c.do(ctx, http.MethodGet, "/library/metadata/"+url.PathEscape(ratingKey)+"/thumb", nil, nil, ""); err == nil && status == http.StatusOK {
		return direct, nil
	}

	var container mediaContainer
	if err := c.getXML(ctx, "/library/metadata/"+url.PathEscape(ratingKey), &container); err != nil {
		return "", err
	}
	for _, v := range container.Videos {
		if v.Thumb != "" {
			return fmt.Sprintf("%s%s?X-Plex-Token=%s", c.baseURL, v.Thumb, url.QueryEscape(c.token)), nil
		}
	}
	return "", nil
}

func (c *Client) getXML(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.addToken(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, contentType string) (int, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	c.addToken(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (c *Client) addToken(req *http.Request) {
	if c.token != "" {
		req.Header.Set("X-Plex-Token", c.token)
	}
}
