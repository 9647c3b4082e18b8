package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTMDB(); err != nil {
		return err
	}
	c.normalizeOMDb()
	if err := c.normalizeIDMap(); err != nil {
		return err
	}
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeRatings()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTMDB() error {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.ReadToken = strings.TrimSpace(c.TMDB.ReadToken)
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	lang := strings.TrimSpace(c.TMDB.Language)
	if lang == "" {
		lang = defaultTMDBLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("tmdb.language: %q is not a valid language tag: %w", lang, err)
	}
	c.TMDB.Language = tag.String()
	if c.TMDB.TimeoutSeconds <= 0 {
		c.TMDB.TimeoutSeconds = defaultTMDBTimeoutSeconds
	}
	if c.TMDB.BreakerFailures <= 0 {
		c.TMDB.BreakerFailures = defaultTMDBBreakerFailures
	}
	if c.TMDB.BreakerCooldownSeconds <= 0 {
		c.TMDB.BreakerCooldownSeconds = defaultTMDBBreakerCooldown
	}
	return nil
}

func (c *Config) normalizeOMDb() {
	c.OMDb.BaseURL = strings.TrimSpace(c.OMDb.BaseURL)
	if c.OMDb.BaseURL == "" {
		c.OMDb.BaseURL = defaultOMDbBaseURL
	}
	keys := make([]string, 0, len(c.OMDb.Keys))
	seen := make(map[string]struct{}, len(c.OMDb.Keys))
	for _, key := range c.OMDb.Keys {
		trimmed := strings.TrimSpace(key)
		if trimmed != "" {
			if _, dup := seen[trimmed]; dup {
				continue
			}
			seen[trimmed] = struct{}{}
		}
		// Empty entries are kept so credential discovery can report them.
		keys = append(keys, trimmed)
	}
	c.OMDb.Keys = keys
	if c.OMDb.DailyQuota <= 0 {
		c.OMDb.DailyQuota = defaultOMDbDailyQuota
	}
	if c.OMDb.TimeoutSeconds <= 0 {
		c.OMDb.TimeoutSeconds = defaultOMDbTimeoutSeconds
	}
	if c.OMDb.RetryAttempts <= 0 {
		c.OMDb.RetryAttempts = defaultOMDbRetryAttempts
	}
	if c.OMDb.RetryBaseMS <= 0 {
		c.OMDb.RetryBaseMS = defaultOMDbRetryBaseMS
	}
	if c.OMDb.RequestsPerSecond <= 0 {
		c.OMDb.RequestsPerSecond = defaultOMDbRequestsPerSecond
	}
}

func (c *Config) normalizeIDMap() error {
	if c.IDMap.Capacity <= 0 {
		c.IDMap.Capacity = defaultIDMapCapacity
	}
	if c.IDMap.TTLHours <= 0 {
		c.IDMap.TTLHours = defaultIDMapTTLHours
	}
	if c.IDMap.RetryAttempts <= 0 {
		c.IDMap.RetryAttempts = defaultIDMapRetryAttempts
	}
	if c.IDMap.RetryBaseMS <= 0 {
		c.IDMap.RetryBaseMS = defaultIDMapRetryBaseMS
	}
	if strings.TrimSpace(c.IDMap.Path) == "" {
		c.IDMap.Path = defaultIDMapPath
	}
	var err error
	if c.IDMap.Path, err = expandPath(c.IDMap.Path); err != nil {
		return fmt.Errorf("idmap.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if strings.TrimSpace(c.Cache.SQLitePath) == "" {
		c.Cache.SQLitePath = defaultCacheSQLitePath
	}
	var err error
	if c.Cache.SQLitePath, err = expandPath(c.Cache.SQLitePath); err != nil {
		return fmt.Errorf("cache.sqlite_path: %w", err)
	}
	c.Cache.RedisAddr = strings.TrimSpace(c.Cache.RedisAddr)
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = defaultCacheRedisAddr
	}
	c.Cache.RedisKeyPrefix = strings.TrimSpace(c.Cache.RedisKeyPrefix)
	if c.Cache.RedisKeyPrefix == "" {
		c.Cache.RedisKeyPrefix = defaultCacheRedisKeyPrefix
	}
	if c.Cache.FreshnessHours <= 0 {
		c.Cache.FreshnessHours = defaultCacheFreshnessHours
	}
	return nil
}

func (c *Config) normalizeRatings() {
	if c.Ratings.BatchConcurrency <= 0 {
		c.Ratings.BatchConcurrency = defaultRatingsBatchConcurrent
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
