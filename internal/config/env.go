package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

const (
	envTMDBAPIKey    = "TMDB_API_KEY"
	envTMDBReadToken = "TMDB_READ_TOKEN"
	envOMDbKey       = "OMDB_API_KEY"
	envAPIToken      = "STRIVE_API_TOKEN"
	envRedisAddr     = "STRIVE_REDIS_ADDR"
)

// DiscoverKeys collects rating provider credentials from the environment. The
// unnumbered OMDB_API_KEY comes first, followed by OMDB_API_KEY_1,
// OMDB_API_KEY_2, ... until the first gap in the sequence.
func DiscoverKeys(lookup LookupFunc) []string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var keys []string
	if value, ok := lookup(envOMDbKey); ok && strings.TrimSpace(value) != "" {
		keys = append(keys, strings.TrimSpace(value))
	}
	for i := 1; ; i++ {
		value, ok := lookup(envOMDbKey + "_" + strconv.Itoa(i))
		if !ok {
			break
		}
		keys = append(keys, strings.TrimSpace(value))
	}
	return keys
}

// applyEnv overlays environment-provided secrets. Values from the config file
// win for single-valued settings; discovered rating keys are appended to the
// configured list.
func (c *Config) applyEnv(lookup LookupFunc) {
	if strings.TrimSpace(c.TMDB.APIKey) == "" {
		if value, ok := lookup(envTMDBAPIKey); ok {
			c.TMDB.APIKey = value
		}
	}
	if strings.TrimSpace(c.TMDB.ReadToken) == "" {
		if value, ok := lookup(envTMDBReadToken); ok {
			c.TMDB.ReadToken = value
		}
	}
	if strings.TrimSpace(c.API.Token) == "" {
		if value, ok := lookup(envAPIToken); ok {
			c.API.Token = value
		}
	}
	if value, ok := lookup(envRedisAddr); ok && strings.TrimSpace(value) != "" {
		c.Cache.RedisAddr = value
	}
	c.OMDb.Keys = append(c.OMDb.Keys, DiscoverKeys(lookup)...)
}

// loadDotEnv loads .env files from the working directory and from the
// directory holding the config file. Existing environment variables are never
// overwritten.
func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		if _, err := os.Stat(abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", abs, err)
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load %s: %w", abs, err)
		}
	}
	return nil
}
