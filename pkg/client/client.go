// Package client is the Go client for the postersmith HTTP API. Besides the
// request wrappers it ships the status poller and the presentation-state
// projector that UIs build on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/models"
)

// Client talks to one postersmith server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartResponse is returned by the job-start endpoints.
type StartResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// StartScan kicks off a library rescan.
func (c *Client) StartScan(ctx context.Context, opts models.ScanOptions) (*StartResponse, error) {
	var out StartResponse
	if err := c.do(ctx, http.MethodPost, "/api/scan/start", opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartBatch kicks off a batch poster run.
func (c *Client) StartBatch(ctx context.Context, req models.BatchRequest) (*StartResponse, error) {
	var out StartResponse
	if err := c.do(ctx, http.MethodPost, "/api/batch/start", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progress fetches the current snapshot for one operation kind.
func (c *Client) Progress(ctx context.Context, kind models.Kind) (models.Snapshot, error) {
	var out models.Snapshot
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/%s/progress", kind), nil, &out)
	return out, err
}

// Settings fetches the committed settings.
func (c *Client) Settings(ctx context.Context) (models.Settings, error) {
	var out models.Settings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &out)
	return out, err
}

// SaveSettings persists new settings atomically.
func (c *Client) SaveSettings(ctx context.Context, s models.Settings) error {
	return c.do(ctx, http.MethodPost, "/api/settings", s, nil)
}

// Presets fetches the presets of one template, each with its editor seed
// expanded server-side.
func (c *Client) Presets(ctx context.Context, templateID string) ([]models.PresetView, error) {
	var out models.TemplatePresets
	err := c.do(ctx, http.MethodGet, "/api/presets?template_id="+templateID, nil, &out)
	return out.Presets, err
}

type errorResponse struct {
	Type    string `json:"type"`
	Message string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(errors.ErrorTypeInternal, "encoding request", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeInternal, "creating request", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeUnavailable, "executing request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Message != "" {
			return errors.New(errors.ErrorType(payload.Type), payload.Message)
		}
		return errors.New(typeForStatus(resp.StatusCode), resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(errors.ErrorTypeInternal, "decoding response", err)
		}
	}
	return nil
}

func typeForStatus(status int) errors.ErrorType {
	switch status {
	case http.StatusNotFound:
		return errors.ErrorTypeNotFound
	case http.StatusBadRequest:
		return errors.ErrorTypeBadRequest
	case http.StatusConflict:
		return errors.ErrorTypeConflict
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return errors.ErrorTypeUnavailable
	default:
		return errors.ErrorTypeInternal
	}
}
