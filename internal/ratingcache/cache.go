// Package ratingcache stores normalized rating documents in a docstore
// collection and judges their freshness at read time.
package ratingcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/al0nec0der/StrIve-sub000/internal/docstore"
	"github.com/al0nec0der/StrIve-sub000/internal/logging"
)

// Collection is the document collection holding rating entries.
const Collection = "ratings"

// DefaultFreshness is how long an entry is served before it is considered stale.
const DefaultFreshness = 24 * time.Hour

// ErrCacheWrite wraps store failures raised by Put.
var ErrCacheWrite = errors.New("rating cache write failed")

// Entry is the persisted shape of a normalized rating.
type Entry struct {
	ExternalID      string    `json:"externalId"`
	CatalogID       string    `json:"catalogId"`
	MediaType       string    `json:"mediaType"`
	PrimaryRating   string    `json:"primaryRating"`
	SecondaryRating string    `json:"secondaryRating"`
	TertiaryRating  string    `json:"tertiaryRating"`
	PrimaryScore    float64   `json:"primaryScore"`
	SecondaryScore  int       `json:"secondaryScore"`
	TertiaryScore   int       `json:"tertiaryScore"`
	VoteCount       int       `json:"voteCount"`
	Awards          string    `json:"awards,omitempty"`
	Plot            string    `json:"plot,omitempty"`
	Title           string    `json:"title,omitempty"`
	Year            string    `json:"year,omitempty"`
	CachedAt        time.Time `json:"cachedAt"`
}

// Cache reads and writes entries keyed by external id.
type Cache struct {
	store     docstore.Store
	freshness time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option customizes a Cache.
type Option func(*Cache)

// WithFreshness overrides DefaultFreshness.
func WithFreshness(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.freshness = d
		}
	}
}

// WithClock injects the time source used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New wraps store.
func New(store docstore.Store, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		store:     store,
		freshness: DefaultFreshness,
		now:       time.Now,
		logger:    logging.NewComponentLogger(logger, "ratingcache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Freshness reports the configured staleness window.
func (c *Cache) Freshness() time.Duration { return c.freshness }

// Get returns the entry for externalID when it exists and is fresh. Stale
// and undecodable documents are reported as misses; they are never deleted.
func (c *Cache) Get(ctx context.Context, externalID string) (*Entry, bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, false, nil
	}
	raw, ok, err := c.store.Get(ctx, Collection, externalID)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", externalID, err)
	}
	if !ok {
		return nil, false, nil
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("rating cache document unreadable; treating as miss",
			logging.String(logging.FieldExternalID, externalID),
			logging.String(logging.FieldEventType, "rating_cache_decode_failed"),
			logging.String(logging.FieldErrorHint, "the entry will be replaced on the next provider fetch"),
			logging.Error(err),
		)
		return nil, false, nil
	}
	if c.Stale(entry) {
		c.logger.Debug("rating cache entry stale",
			logging.String(logging.FieldExternalID, externalID),
			logging.Time("cached_at", entry.CachedAt),
		)
		return nil, false, nil
	}
	return &entry, true, nil
}

// Count reports how many rating documents the store holds, stale ones
// included. ok is false when the backend cannot count.
func (c *Cache) Count(ctx context.Context) (n int, ok bool, err error) {
	counter, ok := c.store.(docstore.Counter)
	if !ok {
		return 0, false, nil
	}
	n, err = counter.Count(ctx, Collection)
	if err != nil {
		return 0, true, fmt.Errorf("count %s: %w", Collection, err)
	}
	return n, true, nil
}

// Stale reports whether entry has reached the freshness window.
func (c *Cache) Stale(entry Entry) bool {
	if entry.CachedAt.IsZero() {
		return true
	}
	return c.now().Sub(entry.CachedAt) >= c.freshness
}

// Put writes entry. Entries carrying missing-value markers are logged and
// skipped without error; store failures are wrapped in ErrCacheWrite.
func (c *Cache) Put(ctx context.Context, entry Entry) error {
	if field, bad := missingField(entry); bad {
		c.logger.Warn("rating cache write skipped",
			logging.String(logging.FieldExternalID, entry.ExternalID),
			logging.String(logging.FieldEventType, "rating_cache_skip"),
			logging.String("field", field),
			logging.String(logging.FieldErrorHint, "entry holds a missing-value marker"),
		)
		return nil
	}
	doc, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrCacheWrite, entry.ExternalID, err)
	}
	if err := c.store.Put(ctx, Collection, entry.ExternalID, doc); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCacheWrite, entry.ExternalID, err)
	}
	return nil
}

var missingMarkers = map[string]struct{}{
	"undefined": {},
	"null":      {},
	"<nil>":     {},
}

func missingField(entry Entry) (string, bool) {
	if strings.TrimSpace(entry.ExternalID) == "" {
		return "externalId", true
	}
	if entry.CachedAt.IsZero() {
		return "cachedAt", true
	}
	fields := []struct {
		name  string
		value string
	}{
		{"externalId", entry.ExternalID},
		{"catalogId", entry.CatalogID},
		{"mediaType", entry.MediaType},
		{"primaryRating", entry.PrimaryRating},
		{"secondaryRating", entry.SecondaryRating},
		{"tertiaryRating", entry.TertiaryRating},
		{"awards", entry.Awards},
		{"plot", entry.Plot},
		{"title", entry.Title},
		{"year", entry.Year},
	}
	for _, f := range fields {
		if _, ok := missingMarkers[strings.ToLower(strings.TrimSpace(f.value))]; ok {
			return f.name, true
		}
	}
	return "", false
}
