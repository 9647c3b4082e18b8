package config

import "time"

const (
	defaultConfigPath             = "~/.config/strive/config.toml"
	defaultStateDir               = "~/.local/share/strive"
	defaultLogDir                 = "~/.local/share/strive/logs"
	defaultTMDBBaseURL            = "https://api.themoviedb.org/3"
	defaultTMDBLanguage           = "en-US"
	defaultTMDBTimeoutSeconds     = 10
	defaultTMDBBreakerFailures    = 5
	defaultTMDBBreakerCooldown    = 30
	defaultOMDbBaseURL            = "https://www.omdbapi.com/"
	defaultOMDbDailyQuota         = 1000
	defaultOMDbTimeoutSeconds     = 10
	defaultOMDbRetryAttempts      = 3
	defaultOMDbRetryBaseMS        = 1000
	defaultOMDbRequestsPerSecond  = 10
	defaultIDMapCapacity          = 1000
	defaultIDMapTTLHours          = 7 * 24
	defaultIDMapPath              = "~/.local/share/strive/idmap.json"
	defaultIDMapRetryAttempts     = 3
	defaultIDMapRetryBaseMS       = 500
	defaultCacheBackend           = CacheBackendSQLite
	defaultCacheSQLitePath        = "~/.local/share/strive/ratings.db"
	defaultCacheRedisAddr         = "127.0.0.1:6379"
	defaultCacheRedisKeyPrefix    = "strive"
	defaultCacheFreshnessHours    = 24
	defaultRatingsBatchConcurrent = 8
	defaultAPIBind                = "127.0.0.1:7489"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Supported durable cache backends.
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		TMDB: TMDB{
			BaseURL:                defaultTMDBBaseURL,
			Language:               defaultTMDBLanguage,
			TimeoutSeconds:         defaultTMDBTimeoutSeconds,
			BreakerFailures:        defaultTMDBBreakerFailures,
			BreakerCooldownSeconds: defaultTMDBBreakerCooldown,
		},
		OMDb: OMDb{
			BaseURL:           defaultOMDbBaseURL,
			DailyQuota:        defaultOMDbDailyQuota,
			TimeoutSeconds:    defaultOMDbTimeoutSeconds,
			RetryAttempts:     defaultOMDbRetryAttempts,
			RetryBaseMS:       defaultOMDbRetryBaseMS,
			RequestsPerSecond: defaultOMDbRequestsPerSecond,
		},
		IDMap: IDMap{
			Capacity:      defaultIDMapCapacity,
			TTLHours:      defaultIDMapTTLHours,
			Persist:       true,
			Path:          defaultIDMapPath,
			RetryAttempts: defaultIDMapRetryAttempts,
			RetryBaseMS:   defaultIDMapRetryBaseMS,
		},
		Cache: Cache{
			Backend:        defaultCacheBackend,
			SQLitePath:     defaultCacheSQLitePath,
			RedisAddr:      defaultCacheRedisAddr,
			RedisKeyPrefix: defaultCacheRedisKeyPrefix,
			FreshnessHours: defaultCacheFreshnessHours,
		},
		Ratings: Ratings{
			BatchConcurrency: defaultRatingsBatchConcurrent,
			Coalesce:         true,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// Durations derived from the integer settings.

func (c *Config) TMDBTimeout() time.Duration {
	return time.Duration(c.TMDB.TimeoutSeconds) * time.Second
}

func (c *Config) TMDBBreakerCooldown() time.Duration {
	return time.Duration(c.TMDB.BreakerCooldownSeconds) * time.Second
}

func (c *Config) OMDbTimeout() time.Duration {
	return time.Duration(c.OMDb.TimeoutSeconds) * time.Second
}

func (c *Config) OMDbRetryBase() time.Duration {
	return time.Duration(c.OMDb.RetryBaseMS) * time.Millisecond
}

func (c *Config) IDMapTTL() time.Duration {
	return time.Duration(c.IDMap.TTLHours) * time.Hour
}

func (c *Config) IDMapRetryBase() time.Duration {
	return time.Duration(c.IDMap.RetryBaseMS) * time.Millisecond
}

func (c *Config) CacheFreshness() time.Duration {
	return time.Duration(c.Cache.FreshnessHours) * time.Hour
}
