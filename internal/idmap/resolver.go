package idmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/al0nec0der/StrIve-sub000/internal/logging"
	"github.com/al0nec0der/StrIve-sub000/internal/services"
	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

// ErrResolution reports a transport or provider failure while resolving an id.
// A title the catalog has no IMDb id for is not an error.
var ErrResolution = fmt.Errorf("%w: external id resolution failed", services.ErrExternalService)

// Retry defaults for catalog lookups.
const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 500 * time.Millisecond
)

var imdbIDPattern = regexp.MustCompile(`^tt\d{5,}$`)

// Resolver maps catalog ids to IMDb ids, consulting the local cache before
// the catalog provider.
type Resolver struct {
	provider  tmdb.Provider
	cache     *Cache
	attempts  int
	baseDelay time.Duration
	sleep     services.Sleeper
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRetry overrides attempt count and linear backoff base.
func WithRetry(attempts int, base time.Duration) ResolverOption {
	return func(r *Resolver) {
		if attempts > 0 {
			r.attempts = attempts
		}
		if base > 0 {
			r.baseDelay = base
		}
	}
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(sleep services.Sleeper) ResolverOption {
	return func(r *Resolver) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// NewResolver constructs a resolver over provider and cache.
func NewResolver(provider tmdb.Provider, cache *Cache, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	if cache == nil {
		cache = NewCache(CacheOptions{}, logger)
	}
	r := &Resolver{
		provider:  provider,
		cache:     cache,
		attempts:  DefaultAttempts,
		baseDelay: DefaultBaseDelay,
		sleep:     services.SleepWithContext,
		logger:    logging.NewComponentLogger(logger, "idmap"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache exposes the underlying mapping cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Known returns a cached mapping without contacting the provider.
func (r *Resolver) Known(catalogID string, mediaType tmdb.MediaType) (Mapping, bool) {
	return r.cache.Peek(catalogID, mediaType)
}

// Resolve returns the IMDb id for a catalog title. found=false with a nil
// error is a definitive negative, cached so it is not fetched again.
func (r *Resolver) Resolve(ctx context.Context, catalogID string, mediaType tmdb.MediaType) (string, bool, error) {
	catalogID = strings.TrimSpace(catalogID)
	if catalogID == "" {
		return "", false, fmt.Errorf("%w: catalog id is empty", ErrResolution)
	}
	if m, ok := r.cache.Get(catalogID, mediaType); ok {
		return m.ExternalID, m.Found, nil
	}

	logger := logging.WithContext(ctx, r.logger)
	if r.provider == nil {
		return "", false, fmt.Errorf("%w: no catalog provider configured", ErrResolution)
	}

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		ids, err := r.provider.ExternalIDs(ctx, catalogID, mediaType)
		if err == nil {
			raw := ""
			if ids != nil {
				raw = ids.IMDbID
			}
			externalID := normalizeIMDbID(raw)
			if externalID == "" && strings.TrimSpace(raw) != "" {
				logger.Debug("ignoring malformed imdb id", logging.String("imdb_id", raw))
			}
			r.remember(logger, catalogID, mediaType, externalID)
			return externalID, externalID != "", nil
		}
		if tmdb.IsNotFound(err) {
			r.remember(logger, catalogID, mediaType, "")
			return "", false, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, tmdb.ErrCircuitOpen) || attempt == r.attempts {
			break
		}
		delay := time.Duration(attempt) * r.baseDelay
		logger.Debug("retrying external id lookup",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := r.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	return "", false, services.Wrap(ErrResolution, "idmap", "resolve", string(mediaType)+" "+catalogID, lastErr)
}

func (r *Resolver) remember(logger *slog.Logger, catalogID string, mediaType tmdb.MediaType, externalID string) {
	err := r.cache.Put(Mapping{
		CatalogID:  catalogID,
		MediaType:  mediaType,
		ExternalID: externalID,
		Found:      externalID != "",
	})
	if err != nil {
		logging.WarnWithContext(logger, "failed to cache id mapping", "idmap_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "mapping kept in memory only"),
			logging.String(logging.FieldErrorHint, "check idmap.path permissions"),
		)
	}
}

func normalizeIMDbID(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if !imdbIDPattern.MatchString(value) {
		return ""
	}
	return value
}
