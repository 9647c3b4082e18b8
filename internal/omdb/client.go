package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/al0nec0der/StrIve-sub000/internal/logging"
	"github.com/al0nec0der/StrIve-sub000/internal/services"
)

const (
	defaultBaseURL        = "https://www.omdbapi.com/"
	defaultRequestTimeout = 10 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 8 * time.Second
	maxBodyBytes          = 1 << 20
)

// Rating is one entry of the OMDb Ratings array.
type Rating struct {
	Source string `json:"Source"`
	Value  string `json:"Value"`
}

// Response models the OMDb title payload. Absent values arrive as "N/A".
type Response struct {
	Title      string   `json:"Title"`
	Year       string   `json:"Year"`
	Rated      string   `json:"Rated"`
	Released   string   `json:"Released"`
	Runtime    string   `json:"Runtime"`
	Genre      string   `json:"Genre"`
	Plot       string   `json:"Plot"`
	Awards     string   `json:"Awards"`
	Ratings    []Rating `json:"Ratings"`
	Metascore  string   `json:"Metascore"`
	IMDbRating string   `json:"imdbRating"`
	IMDbVotes  string   `json:"imdbVotes"`
	IMDbID     string   `json:"imdbID"`
	Type       string   `json:"Type"`
	Response   string   `json:"Response"`
	Error      string   `json:"Error"`
}

// RatingFor returns the Ratings value reported by source, if any.
func (r *Response) RatingFor(source string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, rating := range r.Ratings {
		if strings.EqualFold(strings.TrimSpace(rating.Source), source) {
			return strings.TrimSpace(rating.Value), true
		}
	}
	return "", false
}

// Fetcher is the rating client contract consumed by the orchestrator.
type Fetcher interface {
	Fetch(ctx context.Context, imdbID, apiKey string) (*Response, error)
}

// Client talks to the OMDb API with per-attempt timeouts, bounded retries and
// request pacing shared by every credential.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	attempts   int
	baseDelay  time.Duration
	maxDelay   time.Duration
	limiter    *rate.Limiter
	sleep      services.Sleeper
	logger     *slog.Logger
}

var _ Fetcher = (*Client)(nil)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the per-attempt timeout (defaults to 10s).
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry overrides the attempt count and the exponential backoff base.
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if base > 0 {
			c.baseDelay = base
		}
	}
}

// WithRateLimit paces outgoing requests to rps. Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleep services.Sleeper) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "omdb")
	}
}

// New constructs an OMDb client.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    defaultRequestTimeout,
		attempts:   defaultRetryAttempts,
		baseDelay:  defaultRetryBaseDelay,
		maxDelay:   defaultRetryMaxDelay,
		sleep:      services.SleepWithContext,
		logger:     logging.NewComponentLogger(nil, "omdb"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves ratings for imdbID using apiKey. Authorization failures and
// logical not-found answers are returned immediately; timeouts, 5xx and rate
// limit signals are retried with exponential backoff.
func (c *Client) Fetch(ctx context.Context, imdbID, apiKey string) (*Response, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return nil, &Error{Kind: ErrProvider, Message: "imdb id required"}
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, &Error{Kind: ErrUnauthorized, Message: "api key required"}
	}

	logger := logging.WithContext(ctx, c.logger)
	var lastErr error
	made := 0
	for attempt := 1; attempt <= c.attempts; attempt++ {
		made = attempt
		resp, retryAfter, err := c.fetchOnce(ctx, imdbID, apiKey)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) || attempt == c.attempts {
			break
		}
		delay := c.backoffDelay(attempt)
		if retryAfter > delay {
			delay = min(retryAfter, c.maxDelay)
		}
		logger.Debug("retrying omdb request",
			logging.String(logging.FieldExternalID, imdbID),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	var typed *Error
	if errors.As(lastErr, &typed) {
		typed.Attempts = made
	}
	return nil, lastErr
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.baseDelay << (attempt - 1)
	if delay > c.maxDelay || delay <= 0 {
		return c.maxDelay
	}
	return delay
}

func (c *Client) fetchOnce(ctx context.Context, imdbID, apiKey string) (*Response, time.Duration, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			return nil, 0, &Error{Kind: ErrTimeout, Message: "request pacing would exceed deadline", Err: err}
		}
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, 0, &Error{Kind: ErrTransport, Message: "parse base url", Err: err}
	}
	params := endpoint.Query()
	params.Set("i", imdbID)
	params.Set("apikey", apiKey)
	params.Set("plot", "short")
	params.Set("r", "json")
	endpoint.RawQuery = params.Encode()

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, 0, &Error{Kind: ErrTransport, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		if isTimeout(attemptCtx, err) {
			return nil, 0, &Error{Kind: ErrTimeout, Message: fmt.Sprintf("no response within %s", c.timeout), Err: err}
		}
		return nil, 0, &Error{Kind: ErrTransport, Message: fmt.Sprintf("latency=%v", latency), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		if isTimeout(attemptCtx, err) {
			return nil, 0, &Error{Kind: ErrTimeout, Message: "reading body", Err: err}
		}
		return nil, 0, &Error{Kind: ErrTransport, Message: "read body", Err: err}
	}

	var payload Response
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode != http.StatusOK {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, retryAfter, statusError(resp.StatusCode, payload.Error)
	}
	if decodeErr != nil {
		return nil, 0, &Error{Kind: ErrTransport, StatusCode: resp.StatusCode, Message: "decode response", Err: decodeErr}
	}
	if !strings.EqualFold(strings.TrimSpace(payload.Response), "true") {
		message := strings.TrimSpace(payload.Error)
		if message == "" {
			message = "response flagged false"
		}
		return nil, 0, &Error{Kind: classifyMessage(message), StatusCode: resp.StatusCode, Message: message}
	}
	return &payload, 0, nil
}

func statusError(code int, message string) error {
	message = strings.TrimSpace(message)
	var kind error
	switch {
	case message != "" && classifyMessage(message) != ErrProvider:
		// OMDb reports both bad keys and exhausted daily limits as 401.
		kind = classifyMessage(message)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = ErrUnauthorized
	case code == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		kind = ErrTimeout
	case code >= http.StatusInternalServerError:
		kind = ErrTransport
	default:
		kind = ErrProvider
	}
	return &Error{Kind: kind, StatusCode: code, Message: message}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}
