package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state and log directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// TMDB contains configuration for The Movie Database API, the catalog provider.
type TMDB struct {
	APIKey                 string `toml:"api_key"`
	ReadToken              string `toml:"read_token"`
	BaseURL                string `toml:"base_url"`
	Language               string `toml:"language"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	BreakerFailures        int    `toml:"breaker_failures"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

// OMDb contains configuration for the rating provider and its credential pool.
type OMDb struct {
	BaseURL           string   `toml:"base_url"`
	Keys              []string `toml:"keys"`
	DailyQuota        int      `toml:"daily_quota"`
	TimeoutSeconds    int      `toml:"timeout_seconds"`
	RetryAttempts     int      `toml:"retry_attempts"`
	RetryBaseMS       int      `toml:"retry_base_ms"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// IDMap contains configuration for the catalog to external id mapping cache.
type IDMap struct {
	Capacity      int    `toml:"capacity"`
	TTLHours      int    `toml:"ttl_hours"`
	Persist       bool   `toml:"persist"`
	Path          string `toml:"path"`
	RetryAttempts int    `toml:"retry_attempts"`
	RetryBaseMS   int    `toml:"retry_base_ms"`
}

// Cache contains configuration for the durable rating cache.
type Cache struct {
	Backend        string `toml:"backend"`
	SQLitePath     string `toml:"sqlite_path"`
	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisDB        int    `toml:"redis_db"`
	RedisKeyPrefix string `toml:"redis_key_prefix"`
	FreshnessHours int    `toml:"freshness_hours"`
}

// Ratings contains configuration for the rating orchestrator.
type Ratings struct {
	BatchConcurrency int  `toml:"batch_concurrency"`
	Coalesce         bool `toml:"coalesce"`
}

// API contains configuration for the HTTP API served by the daemon.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Strive.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - TMDB: catalog lookups and fallback ratings
//   - OMDb: rating provider, credentials, retry and pacing
//   - IDMap: catalog to IMDb id mapping cache
//   - Cache: durable rating cache backend
//   - Ratings: orchestrator batch and coalescing behaviour
//   - API: daemon HTTP bind address and bearer token
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	TMDB    TMDB    `toml:"tmdb"`
	OMDb    OMDb    `toml:"omdb"`
	IDMap   IDMap   `toml:"idmap"`
	Cache   Cache   `toml:"cache"`
	Ratings Ratings `toml:"ratings"`
	API     API     `toml:"api"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("strive.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir}
	if c.Cache.Backend == CacheBackendSQLite {
		dirs = append(dirs, filepath.Dir(c.Cache.SQLitePath))
	}
	if c.IDMap.Persist {
		dirs = append(dirs, filepath.Dir(c.IDMap.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "strive.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
