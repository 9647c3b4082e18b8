package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/al0nec0der/StrIve-sub000/internal/api"
	"github.com/al0nec0der/StrIve-sub000/internal/config"
	"github.com/al0nec0der/StrIve-sub000/internal/daemon"
	"github.com/al0nec0der/StrIve-sub000/internal/daemonrun"
	"github.com/al0nec0der/StrIve-sub000/internal/logging"
	"github.com/al0nec0der/StrIve-sub000/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	provider   *testsupport.FakeOMDb
}

func newFakes(t *testing.T) (*testsupport.FakeTMDB, *testsupport.FakeOMDb) {
	t.Helper()
	catalog := testsupport.NewFakeTMDB(t, map[string]testsupport.CatalogTitle{
		"240": {IMDbID: "tt0071562", Title: "The Godfather Part II", ReleaseDate: "1974-12-20", VoteAverage: 8.6, VoteCount: 12000},
		"999": {Title: "Unmapped", ReleaseDate: "2001-01-01", VoteAverage: 6.3, VoteCount: 40},
	})
	provider := testsupport.NewFakeOMDb(t, map[string]string{
		"tt0071562": testsupport.GodfatherPartIIPayload,
	})
	return catalog, provider
}

// setupCLITestEnv writes a config pointing at fake providers. With serve set
// it also starts a daemon and points api.bind at it.
func setupCLITestEnv(t *testing.T, serve bool) *cliTestEnv {
	t.Helper()
	for _, key := range []string{"OMDB_API_KEY", "TMDB_API_KEY", "TMDB_READ_TOKEN", "STRIVE_API_TOKEN", "STRIVE_REDIS_ADDR"} {
		t.Setenv(key, "")
	}
	catalog, provider := newFakes(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithTMDB(catalog.URL),
		testsupport.WithOMDb(provider.URL),
	)
	cfg.API.Bind = "127.0.0.1:1"

	if serve {
		rt, err := daemonrun.Build(context.Background(), cfg, logging.NewNop())
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		t.Cleanup(func() { _ = rt.Close() })
		listenCfg := *cfg
		listenCfg.API.Bind = "127.0.0.1:0"
		d, err := daemon.New(&listenCfg, daemon.Deps{
			Ratings: rt.Service,
			Pool:    rt.Pool,
			Breaker: rt.Breaker,
			Cache:   rt.Ratings,
			Metrics: rt.Registry.Handler(),
		}, logging.NewNop())
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(func() {
			cancel()
			_ = d.Close()
		})
		if err := d.Start(ctx); err != nil {
			t.Fatalf("daemon Start: %v", err)
		}
		cfg.API.Bind = d.Address()
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, provider: provider}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (env *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := env.run(t, args...)
	if err != nil {
		t.Fatalf("strive %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestRatingThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t, true)

	out := env.mustRun(t, "rating", "240", "--json")
	var rating api.Rating
	if err := json.Unmarshal([]byte(out), &rating); err != nil {
		t.Fatalf("decode rating: %v\n%s", err, out)
	}
	if rating.PrimaryRating != "9.0/10" || rating.SecondaryRating != "97%" || rating.TertiaryRating != "80/100" {
		t.Fatalf("unexpected rating: %+v", rating)
	}

	out = env.mustRun(t, "rating", "240")
	for _, want := range []string{"The Godfather Part II (1974)", "tt0071562", "cache", "1,402,003"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if got := env.provider.Calls.Load(); got != 1 {
		t.Fatalf("expected one provider call, got %d", got)
	}
}

func TestBatchThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t, true)

	out := env.mustRun(t, "batch", "240", "999", "240")
	for _, want := range []string{"240", "999", "9.0/10", "6.3/10", "provider", "fallback"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	out = env.mustRun(t, "batch", "240", "--json")
	var resp api.BatchResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if resp.Ratings["240"].Source != "cache" {
		t.Fatalf("expected cached record, got %+v", resp.Ratings["240"])
	}
}

func TestKeysAndDiagnostics(t *testing.T) {
	env := setupCLITestEnv(t, true)
	env.mustRun(t, "rating", "240")

	out := env.mustRun(t, "keys", "list")
	if !strings.Contains(out, "KEY_1") || !strings.Contains(out, "1 of 1 credentials usable") {
		t.Fatalf("unexpected keys output:\n%s", out)
	}
	if strings.Contains(out, "testkey1") {
		t.Fatalf("credential secret printed:\n%s", out)
	}

	out = env.mustRun(t, "keys", "reset")
	if !strings.Contains(out, "reset") {
		t.Fatalf("unexpected reset output: %q", out)
	}

	out = env.mustRun(t, "diagnostics", "--json")
	var diag api.DiagnosticsResponse
	if err := json.Unmarshal([]byte(out), &diag); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if diag.Metrics.TotalRequests != 1 || diag.Metrics.ExternalCalls != 1 {
		t.Fatalf("unexpected metrics: %+v", diag.Metrics)
	}
	if diag.CachedRatings == nil || *diag.CachedRatings != 1 {
		t.Fatalf("expected one cached rating, got %v", diag.CachedRatings)
	}

	out = env.mustRun(t, "diagnostics")
	if !strings.Contains(out, "Cached ratings") {
		t.Fatalf("expected cached rating count:\n%s", out)
	}
	if !strings.Contains(out, "Requests") || !strings.Contains(out, "No recommendations.") {
		t.Fatalf("unexpected diagnostics output:\n%s", out)
	}

	env.mustRun(t, "diagnostics", "--reset")
	out = env.mustRun(t, "diagnostics", "--json")
	diag = api.DiagnosticsResponse{}
	if err := json.Unmarshal([]byte(out), &diag); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if diag.Metrics.TotalRequests != 0 {
		t.Fatalf("expected metrics reset, got %+v", diag.Metrics)
	}
}

func TestDaemonUnavailable(t *testing.T) {
	env := setupCLITestEnv(t, false)

	_, err := env.run(t, "rating", "240")
	if err == nil {
		t.Fatal("expected error without daemon")
	}
	if !strings.Contains(err.Error(), "strive serve") {
		t.Fatalf("expected hint to start the daemon, got %v", err)
	}
}

func TestLocalRatingAndIDMap(t *testing.T) {
	env := setupCLITestEnv(t, false)

	out := env.mustRun(t, "rating", "240", "--local", "--json")
	var rating api.Rating
	if err := json.Unmarshal([]byte(out), &rating); err != nil {
		t.Fatalf("decode rating: %v\n%s", err, out)
	}
	if rating.ExternalID != "tt0071562" || rating.Source != "provider" {
		t.Fatalf("unexpected local rating: %+v", rating)
	}
	env.mustRun(t, "batch", "999", "--local")

	out = env.mustRun(t, "idmap", "list")
	if !strings.Contains(out, "tt0071562") || !strings.Contains(out, "(none)") {
		t.Fatalf("expected both mappings listed:\n%s", out)
	}

	out = env.mustRun(t, "idmap", "remove", "240")
	if !strings.Contains(out, "Removed movie/240") {
		t.Fatalf("unexpected remove output: %q", out)
	}
	if _, err := env.run(t, "idmap", "remove", "240"); err == nil {
		t.Fatal("expected error removing a missing mapping")
	}

	out = env.mustRun(t, "idmap", "clear")
	if !strings.Contains(out, "Cleared 1 mappings") {
		t.Fatalf("unexpected clear output: %q", out)
	}
	out = env.mustRun(t, "idmap", "list")
	if !strings.Contains(out, "No mappings cached") {
		t.Fatalf("expected empty cache:\n%s", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t, false)

	target := filepath.Join(t.TempDir(), "strive", "config.toml")
	out := env.mustRun(t, "config", "init", "--path", target)
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if string(data) != config.SampleConfig() {
		t.Fatal("sample config content mismatch")
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config exists")
	}
	env.mustRun(t, "config", "init", "--path", target, "--overwrite")

	out = env.mustRun(t, "config", "show")
	if strings.Contains(out, "testkey1") {
		t.Fatalf("secret printed by config show:\n%s", out)
	}
	if !strings.Contains(out, env.configPath) || !strings.Contains(out, "[omdb]") {
		t.Fatalf("unexpected config show output:\n%s", out)
	}
}

func TestFormatVotes(t *testing.T) {
	cases := map[int]string{0: "N/A", 7: "7", 1000: "1,000", 1402003: "1,402,003"}
	for in, want := range cases {
		if got := formatVotes(in); got != want {
			t.Fatalf("formatVotes(%d) = %q, want %q", in, got, want)
		}
	}
}
