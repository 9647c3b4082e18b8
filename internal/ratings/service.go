package ratings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/al0nec0der/StrIve-sub000/internal/idmap"
	"github.com/al0nec0der/StrIve-sub000/internal/keypool"
	"github.com/al0nec0der/StrIve-sub000/internal/logging"
	"github.com/al0nec0der/StrIve-sub000/internal/metrics"
	"github.com/al0nec0der/StrIve-sub000/internal/omdb"
	"github.com/al0nec0der/StrIve-sub000/internal/ratingcache"
	"github.com/al0nec0der/StrIve-sub000/internal/services"
	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

// DefaultBatchConcurrency bounds GetRatingsBatch fan-out.
const DefaultBatchConcurrency = 8

// Resolver maps catalog ids to external ids.
type Resolver interface {
	Resolve(ctx context.Context, catalogID string, mediaType tmdb.MediaType) (string, bool, error)
	Known(catalogID string, mediaType tmdb.MediaType) (idmap.Mapping, bool)
}

// CredentialPool hands out rating credentials and tracks their health.
type CredentialPool interface {
	Next() (keypool.Credential, error)
	RecordSuccess(id string)
	RecordAuthFailure(id string)
	RecordFailure(id string)
	Size() int
}

// Cache is the durable rating cache.
type Cache interface {
	Get(ctx context.Context, externalID string) (*ratingcache.Entry, bool, error)
	Put(ctx context.Context, entry ratingcache.Entry) error
}

// Catalog supplies native ratings for the fallback path.
type Catalog interface {
	Details(ctx context.Context, catalogID string, mediaType tmdb.MediaType) (*tmdb.Details, error)
}

// Deps are the collaborators a Service needs. Metrics and Logger are optional.
type Deps struct {
	Resolver Resolver
	Pool     CredentialPool
	Fetcher  omdb.Fetcher
	Cache    Cache
	Catalog  Catalog
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// Service answers rating requests.
type Service struct {
	resolver Resolver
	pool     CredentialPool
	fetcher  omdb.Fetcher
	cache    Cache
	catalog  Catalog
	metrics  *metrics.Recorder
	logger   *slog.Logger

	batchLimit int
	coalesce   bool
	group      singleflight.Group
	now        func() time.Time
	newID      func() string

	flightMu  sync.Mutex
	flights   map[string]*flight
	flightSeq uint64
}

// flight is one shared pipeline run. Its context is detached from the caller
// that started it and is cancelled once every waiter has gone.
type flight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option customizes a Service.
type Option func(*Service)

// WithBatchConcurrency bounds the number of concurrent lookups in a batch.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// WithCoalescing toggles sharing of identical in-flight lookups.
func WithCoalescing(enabled bool) Option {
	return func(s *Service) { s.coalesce = enabled }
}

// WithClock injects the time source stamped onto provider records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRequestIDs overrides the correlation id generator.
func WithRequestIDs(next func() string) Option {
	return func(s *Service) {
		if next != nil {
			s.newID = next
		}
	}
}

// New validates deps and builds a Service.
func New(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Resolver == nil:
		return nil, errors.New("ratings: resolver required")
	case deps.Pool == nil:
		return nil, errors.New("ratings: credential pool required")
	case deps.Fetcher == nil:
		return nil, errors.New("ratings: rating fetcher required")
	case deps.Cache == nil:
		return nil, errors.New("ratings: rating cache required")
	case deps.Catalog == nil:
		return nil, errors.New("ratings: catalog required")
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.New()
	}
	s := &Service{
		resolver:   deps.Resolver,
		pool:       deps.Pool,
		fetcher:    deps.Fetcher,
		cache:      deps.Cache,
		catalog:    deps.Catalog,
		metrics:    rec,
		logger:     logging.NewComponentLogger(deps.Logger, "ratings"),
		batchLimit: DefaultBatchConcurrency,
		coalesce:   true,
		now:        time.Now,
		newID:      uuid.NewString,
		flights:    make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetRating returns the rating record for one catalog title. Provider,
// cache and catalog failures degrade the record's Source; only malformed
// input returns an error, wrapping ErrInvalidRequest.
func (s *Service) GetRating(ctx context.Context, catalogID string, mediaType tmdb.MediaType) (*Record, error) {
	id, err := validateRequest(catalogID, mediaType)
	if err != nil {
		return nil, err
	}
	return s.lookup(ctx, id, mediaType), nil
}

// GetRatingsBatch looks up ids concurrently. Every input id gets an entry;
// malformed ids map to an error-sourced record.
func (s *Service) GetRatingsBatch(ctx context.Context, ids []string, mediaType tmdb.MediaType) map[string]*Record {
	out := make(map[string]*Record, len(ids))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)

	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}

		id, err := validateRequest(raw, mediaType)
		if err != nil {
			s.logger.Debug("skipping invalid batch id",
				logging.String(logging.FieldCatalogID, raw),
				logging.Error(err),
			)
			out[raw] = unavailableRecord(strings.TrimSpace(raw), mediaType, "")
			continue
		}
		g.Go(func() error {
			rec := s.lookup(gctx, id, mediaType)
			mu.Lock()
			out[raw] = rec
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// MetricsSnapshot returns the current request counters.
func (s *Service) MetricsSnapshot() metrics.Snapshot {
	return s.metrics.Snapshot()
}

// ResetMetrics zeroes the request counters.
func (s *Service) ResetMetrics() {
	s.metrics.Reset()
}

func (s *Service) lookup(ctx context.Context, catalogID string, mediaType tmdb.MediaType) *Record {
	start := time.Now()
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, s.newID())
	}
	ctx = services.WithCatalogID(ctx, catalogID)
	ctx = services.WithMediaType(ctx, mediaType.String())

	var rec *Record
	if s.coalesce {
		rec = s.coalesced(ctx, catalogID, mediaType)
	} else {
		rec = s.execute(ctx, catalogID, mediaType)
	}

	elapsed := time.Since(start)
	s.metrics.ObserveLatency(elapsed)
	logging.WithContext(ctx, s.logger).Debug("rating lookup complete",
		logging.String("source", string(rec.Source)),
		logging.String(logging.FieldExternalID, rec.ExternalID),
		logging.Float64("primary_score", rec.PrimaryScore),
		logging.Duration("elapsed", elapsed),
	)
	return rec
}

// coalesced joins the in-flight run for the same title or starts one. A caller
// whose context ends stops waiting without cancelling the run for the others.
func (s *Service) coalesced(ctx context.Context, catalogID string, mediaType tmdb.MediaType) *Record {
	base := mediaType.String() + ":" + catalogID
	f := s.joinFlight(ctx, base)
	defer s.leaveFlight(f)

	ch := s.group.DoChan(f.key, func() (any, error) {
		defer s.landFlight(base, f)
		return s.execute(f.ctx, catalogID, mediaType), nil
	})
	select {
	case res := <-ch:
		if res.Shared {
			logging.WithContext(ctx, s.logger).Debug("rating lookup coalesced")
		}
		return res.Val.(*Record).clone()
	case <-ctx.Done():
		logging.WithContext(ctx, s.logger).Debug("rating lookup abandoned by caller",
			logging.Error(ctx.Err()),
		)
		return unavailableRecord(catalogID, mediaType, "")
	}
}

func (s *Service) joinFlight(ctx context.Context, base string) *flight {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	if f, ok := s.flights[base]; ok {
		f.waiters++
		return f
	}
	s.flightSeq++
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight{
		key:     base + "#" + strconv.FormatUint(s.flightSeq, 10),
		ctx:     fctx,
		cancel:  cancel,
		waiters: 1,
	}
	s.flights[base] = f
	return f
}

func (s *Service) leaveFlight(f *flight) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	f.waiters--
	if f.waiters == 0 {
		f.cancel()
	}
}

// landFlight stops new callers from joining f once its result is known.
func (s *Service) landFlight(base string, f *flight) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	if s.flights[base] == f {
		delete(s.flights, base)
	}
}

func validateRequest(catalogID string, mediaType tmdb.MediaType) (string, error) {
	if !mediaType.Valid() {
		return "", services.Wrap(ErrInvalidRequest, "ratings", "validate", fmt.Sprintf("unknown media type %q", mediaType), nil)
	}
	id := strings.TrimSpace(catalogID)
	if id == "" {
		return "", services.Wrap(ErrInvalidRequest, "ratings", "validate", "catalog id is empty", nil)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", services.Wrap(ErrInvalidRequest, "ratings", "validate", fmt.Sprintf("catalog id %q is not numeric", id), nil)
		}
	}
	if strings.TrimLeft(id, "0") == "" {
		return "", services.Wrap(ErrInvalidRequest, "ratings", "validate", fmt.Sprintf("catalog id %q is not positive", id), nil)
	}
	return id, nil
}
