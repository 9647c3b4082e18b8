package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/al0nec0der/StrIve-sub000/internal/services"
)

// ExternalIDs lists the identifiers other services use for a catalog title.
type ExternalIDs struct {
	ID          int64  `json:"id"`
	IMDbID      string `json:"imdb_id"`
	TVDBID      int64  `json:"tvdb_id"`
	WikidataID  string `json:"wikidata_id"`
	FacebookID  string `json:"facebook_id"`
	InstagramID string `json:"instagram_id"`
}

// Details captures the subset of TMDB movie/tv details used as a rating fallback.
type Details struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int64   `json:"vote_count"`
	IMDbID       string  `json:"imdb_id"`
}

// DisplayTitle returns the movie title or series name.
func (d *Details) DisplayTitle() string {
	if d == nil {
		return ""
	}
	if strings.TrimSpace(d.Title) != "" {
		return d.Title
	}
	return d.Name
}

// Year returns the four-digit release (or first air) year, if known.
func (d *Details) Year() string {
	if d == nil {
		return ""
	}
	date := d.ReleaseDate
	if date == "" {
		date = d.FirstAirDate
	}
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

// Provider is the catalog contract consumed by id resolution and rating fallback.
type Provider interface {
	ExternalIDs(ctx context.Context, catalogID string, mediaType MediaType) (*ExternalIDs, error)
	Details(ctx context.Context, catalogID string, mediaType MediaType) (*Details, error)
}

// StatusError reports a non-200 TMDB response.
type StatusError struct {
	Code    int
	Message string
	Latency time.Duration
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tmdb returned %d: %s (latency=%v)", e.Code, e.Message, e.Latency)
	}
	return fmt.Sprintf("tmdb returned %d (latency=%v)", e.Code, e.Latency)
}

// Unwrap classifies the status for errors.Is checks against services markers.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusNotFound:
		return services.ErrNotFound
	case e.Code == http.StatusTooManyRequests || e.Code >= 500:
		return services.ErrTransient
	default:
		return services.ErrExternalService
	}
}

// IsNotFound reports whether err is a definitive TMDB "no such title" answer.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	readToken  string
	baseURL    string
	language   string
	httpClient *http.Client
}

var _ Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates a TMDB client. Either an API key (v3 query parameter) or a read
// access token (v4 bearer) is required; the token wins when both are set.
func New(apiKey, readToken, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	readToken = strings.TrimSpace(readToken)
	if apiKey == "" && readToken == "" {
		return nil, errors.New("tmdb api key or read token required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		readToken:  readToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ExternalIDs fetches the external identifiers (IMDb id among them) for a title.
func (c *Client) ExternalIDs(ctx context.Context, catalogID string, mediaType MediaType) (*ExternalIDs, error) {
	var payload ExternalIDs
	if err := c.get(ctx, catalogID, mediaType, "/external_ids", false, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Details fetches title details including TMDB's own vote average.
func (c *Client) Details(ctx context.Context, catalogID string, mediaType MediaType) (*Details, error) {
	var payload Details
	if err := c.get(ctx, catalogID, mediaType, "", true, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) get(ctx context.Context, catalogID string, mediaType MediaType, suffix string, localized bool, out any) error {
	catalogID = strings.TrimSpace(catalogID)
	if catalogID == "" {
		return errors.New("catalog id must not be empty")
	}
	if !mediaType.Valid() {
		return fmt.Errorf("unsupported media type %q", mediaType)
	}
	endpoint, err := url.Parse(c.baseURL + "/" + mediaType.pathSegment() + "/" + url.PathEscape(catalogID) + suffix)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	if c.readToken == "" {
		params.Set("api_key", c.apiKey)
	}
	if localized && c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.readToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.readToken)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Message: readStatusMessage(resp.Body), Latency: latency}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}

func readStatusMessage(body io.Reader) string {
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.StatusMessage
}
