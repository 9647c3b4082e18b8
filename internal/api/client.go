package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDaemonUnavailable indicates the daemon could not be reached.
var ErrDaemonUnavailable = errors.New("rating daemon unavailable")

// StatusError reports a non-2xx daemon reply.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.Code)
	}
	return fmt.Sprintf("daemon returned status %d: %s", e.Code, e.Message)
}

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient targets bind, which may be a host:port pair or a full URL.
func NewClient(bind, token string, opts ...ClientOption) *Client {
	base := strings.TrimSpace(bind)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL:    strings.TrimRight(base, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health fetches daemon liveness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	return &resp, c.do(ctx, http.MethodGet, "/api/health", nil, &resp)
}

// Rating fetches one rating.
func (c *Client) Rating(ctx context.Context, mediaType, catalogID string) (*RatingResponse, error) {
	var resp RatingResponse
	path := "/api/ratings/" + url.PathEscape(mediaType) + "/" + url.PathEscape(catalogID)
	return &resp, c.do(ctx, http.MethodGet, path, nil, &resp)
}

// Batch fetches ratings for several ids.
func (c *Client) Batch(ctx context.Context, mediaType string, ids []string) (*BatchResponse, error) {
	var resp BatchResponse
	path := "/api/ratings/" + url.PathEscape(mediaType) + "/batch"
	return &resp, c.do(ctx, http.MethodPost, path, BatchRequest{IDs: ids}, &resp)
}

// Diagnostics fetches metrics, recommendations and credential status.
func (c *Client) Diagnostics(ctx context.Context) (*DiagnosticsResponse, error) {
	var resp DiagnosticsResponse
	return &resp, c.do(ctx, http.MethodGet, "/api/diagnostics", nil, &resp)
}

// ResetDiagnostics zeroes the daemon's request counters.
func (c *Client) ResetDiagnostics(ctx context.Context) (*ResetResponse, error) {
	var resp ResetResponse
	return &resp, c.do(ctx, http.MethodPost, "/api/diagnostics/reset", nil, &resp)
}

// Keys lists credential status.
func (c *Client) Keys(ctx context.Context) (*KeysResponse, error) {
	var resp KeysResponse
	return &resp, c.do(ctx, http.MethodGet, "/api/keys", nil, &resp)
}

// ResetKeys starts a new daily quota period on the daemon.
func (c *Client) ResetKeys(ctx context.Context) (*ResetResponse, error) {
	var resp ResetResponse
	return &resp, c.do(ctx, http.MethodPost, "/api/keys/reset", nil, &resp)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w at %s: %w", ErrDaemonUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		_ = json.Unmarshal(data, &apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
