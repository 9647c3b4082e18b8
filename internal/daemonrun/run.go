package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/al0nec0der/StrIve-sub000/internal/config"
	"github.com/al0nec0der/StrIve-sub000/internal/daemon"
	"github.com/al0nec0der/StrIve-sub000/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Logger replaces the file and console logger built from cfg.
	Logger *slog.Logger
	// Ready is called with the API address once the daemon is serving.
	Ready func(address string)
}

// Run starts the strive daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger := opts.Logger
	if logger == nil {
		runID := time.Now().UTC().Format("20060102T150405.000Z")
		logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("strive-%s.log", runID))
		level := opts.LogLevel
		if strings.TrimSpace(level) == "" {
			level = cfg.Logging.Level
		}
		var err error
		logger, err = logging.New(logging.Options{
			Level:            level,
			Format:           cfg.Logging.Format,
			OutputPaths:      []string{"stdout", logPath},
			ErrorOutputPaths: []string{"stderr", logPath},
			Development:      opts.Development,
		})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update strive.log link: %v\n", err)
		}
	}

	logConfigSnapshot(logger, cfg)
	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Build(signalCtx, cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "rating runtime build failed", "runtime_build_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check omdb.keys, tmdb credentials, and the cache backend"),
			logging.String(logging.FieldImpact, "daemon cannot serve ratings"),
		)
		return err
	}
	defer rt.Close()

	d, err := daemon.New(cfg, daemon.Deps{
		Ratings: rt.Service,
		Pool:    rt.Pool,
		Breaker: rt.Breaker,
		Cache:   rt.Ratings,
		Metrics: rt.Registry.Handler(),
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other strive instance or change api.bind"),
			logging.String(logging.FieldImpact, "ratings API is not served"),
		)
		return err
	}
	if opts.Ready != nil {
		opts.Ready(d.Address())
	}

	<-signalCtx.Done()
	logger.Info("strive daemon shutting down")
	return nil
}

// PIDPath returns the pid file written while the daemon runs.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "strive.pid")
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "strive.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Bool("tmdb_key_present", strings.TrimSpace(cfg.TMDB.APIKey) != ""),
		logging.Bool("tmdb_token_present", strings.TrimSpace(cfg.TMDB.ReadToken) != ""),
		logging.Int("omdb_keys_configured", len(cfg.OMDb.Keys)),
		logging.Int("omdb_daily_quota", cfg.OMDb.DailyQuota),
		logging.String("cache_backend", cfg.Cache.Backend),
		logging.Bool("idmap_persist", cfg.IDMap.Persist),
		logging.String("api_bind", cfg.API.Bind),
		logging.Bool("api_token_present", cfg.API.Token != ""),
	)
}
