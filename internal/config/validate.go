package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateOMDb(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return ensurePositiveMap(map[string]int{
		"idmap.capacity":            c.IDMap.Capacity,
		"idmap.ttl_hours":           c.IDMap.TTLHours,
		"ratings.batch_concurrency": c.Ratings.BatchConcurrency,
		"cache.freshness_hours":     c.Cache.FreshnessHours,
	})
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" && c.TMDB.ReadToken == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("tmdb.api_key or tmdb.read_token is required. Set TMDB_API_KEY/TMDB_READ_TOKEN env vars or edit %s (create with 'strive config init')", defaultPath)
	}
	if _, err := url.ParseRequestURI(c.TMDB.BaseURL); err != nil {
		return fmt.Errorf("tmdb.base_url: %w", err)
	}
	return nil
}

func (c *Config) validateOMDb() error {
	if _, err := url.ParseRequestURI(c.OMDb.BaseURL); err != nil {
		return fmt.Errorf("omdb.base_url: %w", err)
	}
	if c.OMDb.RetryAttempts > 10 {
		return errors.New("omdb.retry_attempts must be at most 10")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheBackendSQLite, CacheBackendMemory:
	case CacheBackendRedis:
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return errors.New("cache.redis_addr must be set when cache.backend is redis")
		}
		if c.Cache.RedisDB < 0 {
			return errors.New("cache.redis_db must not be negative")
		}
	default:
		return fmt.Errorf("cache.backend: unsupported value %q (expected sqlite, redis or memory)", c.Cache.Backend)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
