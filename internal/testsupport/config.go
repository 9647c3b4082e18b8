package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/al0nec0der/StrIve-sub000/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.TMDB.APIKey = "test"
	cfgVal.OMDb.Keys = []string{"testkey1"}
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.IDMap.Path = filepath.Join(base, "state", "idmap.json")
	cfgVal.Cache.Backend = config.CacheBackendMemory
	cfgVal.Cache.SQLitePath = filepath.Join(base, "state", "ratings.db")
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithTMDB points the catalog client at baseURL.
func WithTMDB(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.BaseURL = baseURL
	}
}

// WithOMDb points the rating client at baseURL and installs keys.
func WithOMDb(baseURL string, keys ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.OMDb.BaseURL = baseURL
		if len(keys) > 0 {
			b.cfg.OMDb.Keys = keys
		}
		b.cfg.OMDb.RetryBaseMS = 1
		b.cfg.OMDb.RequestsPerSecond = 0
	}
}

// WithCacheBackend selects the rating cache backend.
func WithCacheBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Backend = backend
	}
}

// WithRedis selects the redis backend at addr.
func WithRedis(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Backend = config.CacheBackendRedis
		b.cfg.Cache.RedisAddr = addr
	}
}

// WithAPIToken requires bearer authentication on the API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
