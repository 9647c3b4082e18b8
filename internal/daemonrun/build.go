package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/al0nec0der/StrIve-sub000/internal/config"
	"github.com/al0nec0der/StrIve-sub000/internal/docstore"
	"github.com/al0nec0der/StrIve-sub000/internal/docstore/redis"
	"github.com/al0nec0der/StrIve-sub000/internal/docstore/sqlite"
	"github.com/al0nec0der/StrIve-sub000/internal/idmap"
	"github.com/al0nec0der/StrIve-sub000/internal/keypool"
	"github.com/al0nec0der/StrIve-sub000/internal/logging"
	"github.com/al0nec0der/StrIve-sub000/internal/metrics"
	"github.com/al0nec0der/StrIve-sub000/internal/omdb"
	"github.com/al0nec0der/StrIve-sub000/internal/ratingcache"
	"github.com/al0nec0der/StrIve-sub000/internal/ratings"
	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

// Runtime holds the wired rating stack.
type Runtime struct {
	Service  *ratings.Service
	Pool     *keypool.Pool
	IDMap    *idmap.Cache
	Breaker  *tmdb.BreakerProvider
	Metrics  *metrics.Recorder
	Registry *metrics.Registry
	Store    docstore.Store
	Ratings  *ratingcache.Cache
}

// Close releases the document store.
func (r *Runtime) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// Build wires the rating service and its collaborators from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	registry := metrics.NewRegistry()
	recorder := metrics.New(metrics.WithRegistry(registry))

	catalog, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.ReadToken, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithTimeout(cfg.TMDBTimeout()))
	if err != nil {
		return nil, fmt.Errorf("tmdb client: %w", err)
	}
	breaker := tmdb.NewBreakerProvider(catalog, tmdb.BreakerSettings{
		ConsecutiveFailures: uint32(max(cfg.TMDB.BreakerFailures, 0)),
		Cooldown:            cfg.TMDBBreakerCooldown(),
		OnStateChange: func(name, _, to string) {
			recorder.BreakerState(name, to)
		},
	}, logger)
	recorder.BreakerState("tmdb", breaker.State())

	idOpts := idmap.CacheOptions{
		Capacity: cfg.IDMap.Capacity,
		TTL:      cfg.IDMapTTL(),
	}
	if cfg.IDMap.Persist {
		idOpts.Path = cfg.IDMap.Path
	}
	idCache := idmap.NewCache(idOpts, logger)
	resolver := idmap.NewResolver(breaker, idCache, logger,
		idmap.WithRetry(cfg.IDMap.RetryAttempts, cfg.IDMapRetryBase()))

	creds, err := keypool.Discover(cfg.OMDb.Keys, cfg.OMDb.DailyQuota, logger)
	if err != nil {
		return nil, fmt.Errorf("rating credentials: %w", err)
	}
	pool, err := keypool.New(creds, keypool.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("credential pool: %w", err)
	}

	fetcher := omdb.New(cfg.OMDb.BaseURL,
		omdb.WithTimeout(cfg.OMDbTimeout()),
		omdb.WithRetry(cfg.OMDb.RetryAttempts, cfg.OMDbRetryBase()),
		omdb.WithRateLimit(cfg.OMDb.RequestsPerSecond),
		omdb.WithLogger(logger),
	)

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cache := ratingcache.New(store, logger, ratingcache.WithFreshness(cfg.CacheFreshness()))

	svc, err := ratings.New(ratings.Deps{
		Resolver: resolver,
		Pool:     pool,
		Fetcher:  fetcher,
		Cache:    cache,
		Catalog:  breaker,
		Metrics:  recorder,
		Logger:   logger,
	},
		ratings.WithBatchConcurrency(cfg.Ratings.BatchConcurrency),
		ratings.WithCoalescing(cfg.Ratings.Coalesce),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info("rating runtime ready",
		logging.String(logging.FieldEventType, "runtime_ready"),
		logging.String("cache_backend", cfg.Cache.Backend),
		logging.Int("credentials", pool.Size()),
		logging.Int("idmap_entries", idCache.Count()),
		logging.Bool("coalesce", cfg.Ratings.Coalesce),
	)
	return &Runtime{
		Service:  svc,
		Pool:     pool,
		IDMap:    idCache,
		Breaker:  breaker,
		Metrics:  recorder,
		Registry: registry,
		Store:    store,
		Ratings:  cache,
	}, nil
}

// OpenStore opens the document store selected by cache.backend.
func OpenStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendSQLite, "":
		store, err := sqlite.Open(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite rating cache: %w", err)
		}
		return store, nil
	case config.CacheBackendRedis:
		prefix := cfg.Cache.RedisKeyPrefix
		if prefix != "" && !strings.HasSuffix(prefix, ":") {
			prefix += ":"
		}
		store, err := redis.Open(ctx, redis.Options{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis rating cache: %w", err)
		}
		return store, nil
	case config.CacheBackendMemory:
		return docstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}
}
