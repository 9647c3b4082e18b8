package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/al0nec0der/StrIve-sub000/internal/config"
	"github.com/al0nec0der/StrIve-sub000/internal/keypool"
	"github.com/al0nec0der/StrIve-sub000/internal/logging"
	"github.com/al0nec0der/StrIve-sub000/internal/metrics"
	"github.com/al0nec0der/StrIve-sub000/internal/ratings"
	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

// RatingService is the rating surface the API exposes.
type RatingService interface {
	GetRating(ctx context.Context, catalogID string, mediaType tmdb.MediaType) (*ratings.Record, error)
	GetRatingsBatch(ctx context.Context, ids []string, mediaType tmdb.MediaType) map[string]*ratings.Record
	MetricsSnapshot() metrics.Snapshot
	ResetMetrics()
}

// CredentialPool exposes credential status and the daily reset trigger.
type CredentialPool interface {
	Snapshot() []keypool.Credential
	Usable() int
	ResetDaily()
}

// BreakerState reports a circuit breaker's current state.
type BreakerState interface {
	State() string
}

// RatingCache reports how many ratings the durable cache holds.
type RatingCache interface {
	Count(ctx context.Context) (int, bool, error)
}

// Deps are the runtime collaborators served by the daemon. Breaker, Cache
// and Metrics are optional.
type Deps struct {
	Ratings RatingService
	Pool    CredentialPool
	Breaker BreakerState
	Cache   RatingCache
	Metrics http.Handler
}

// Daemon serves the rating API and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Deps

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running   atomic.Bool
	startedAt atomic.Pointer[time.Time]
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	StartedAt      time.Time
	LockFilePath   string
	UsableKeys     int
	CatalogBreaker string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Ratings == nil || deps.Pool == nil {
		return nil, errors.New("daemon requires config, rating service, and credential pool")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		deps:     deps,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg.API.Bind, cfg.API.Token, d, logger)
	return d, nil
}

// Start acquires the daemon lock and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another strive daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel
	now := time.Now()
	d.startedAt.Store(&now)
	d.running.Store(true)
	d.logger.Info("strive daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
	)
	return nil
}

// Stop shuts the API server down and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("strive daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Address returns the API listen address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		UsableKeys:   d.deps.Pool.Usable(),
	}
	if started := d.startedAt.Load(); started != nil {
		status.StartedAt = *started
	}
	if d.deps.Breaker != nil {
		status.CatalogBreaker = d.deps.Breaker.State()
	}
	return status
}

// Handler returns the API handler, including authentication.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}
