package ratings

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/al0nec0der/StrIve-sub000/internal/keypool"
	"github.com/al0nec0der/StrIve-sub000/internal/logging"
	"github.com/al0nec0der/StrIve-sub000/internal/omdb"
	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

type state int

const (
	stateCacheCheck state = iota
	stateResolve
	stateExternalFetch
	stateNormalize
	stateCacheWrite
	stateFallback
	stateDone
)

func (s state) String() string {
	switch s {
	case stateCacheCheck:
		return "cache_check"
	case stateResolve:
		return "resolve"
	case stateExternalFetch:
		return "external_fetch"
	case stateNormalize:
		return "normalize"
	case stateCacheWrite:
		return "cache_write"
	case stateFallback:
		return "fallback"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// run carries one lookup through the state machine.
type run struct {
	svc       *Service
	logger    *slog.Logger
	catalogID string
	mediaType tmdb.MediaType

	externalID string
	resolved   bool
	response   *omdb.Response
	record     *Record
}

func (s *Service) execute(ctx context.Context, catalogID string, mediaType tmdb.MediaType) *Record {
	r := &run{
		svc:       s,
		logger:    logging.WithContext(ctx, s.logger),
		catalogID: catalogID,
		mediaType: mediaType,
	}
	for st := stateCacheCheck; st != stateDone; {
		next := r.step(ctx, st)
		r.logger.Debug("rating state transition",
			logging.String("from", st.String()),
			logging.String("to", next.String()),
		)
		st = next
	}
	if r.record == nil {
		r.record = unavailableRecord(catalogID, mediaType, r.externalID)
	}
	return r.record
}

func (r *run) step(ctx context.Context, st state) state {
	switch st {
	case stateCacheCheck:
		return r.cacheCheck(ctx)
	case stateResolve:
		return r.resolve(ctx)
	case stateExternalFetch:
		return r.externalFetch(ctx)
	case stateNormalize:
		return r.normalize(ctx)
	case stateCacheWrite:
		return r.cacheWrite(ctx)
	case stateFallback:
		return r.fallback(ctx)
	default:
		return stateDone
	}
}

func (r *run) cacheCheck(ctx context.Context) state {
	if r.externalID == "" {
		if m, ok := r.svc.resolver.Known(r.catalogID, r.mediaType); ok && m.Found {
			r.externalID = m.ExternalID
		} else if !r.resolved {
			return stateResolve
		} else {
			return stateFallback
		}
	}

	entry, ok, err := r.svc.cache.Get(ctx, r.externalID)
	if err != nil {
		r.logger.Warn("rating cache read failed; fetching from provider",
			logging.String(logging.FieldExternalID, r.externalID),
			logging.String(logging.FieldEventType, "rating_cache_read_failed"),
			logging.String(logging.FieldErrorHint, "check the cache backend"),
			logging.Error(err),
		)
	}
	if ok {
		r.svc.metrics.CacheHit()
		r.record = recordFromEntry(entry, r.catalogID, r.mediaType)
		return stateDone
	}
	r.svc.metrics.CacheMiss()
	return stateExternalFetch
}

func (r *run) resolve(ctx context.Context) state {
	r.resolved = true
	externalID, found, err := r.svc.resolver.Resolve(ctx, r.catalogID, r.mediaType)
	if err != nil {
		logging.WarnWithContext(r.logger, "external id resolution failed", "external_id_resolution_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "serving catalog fallback rating"),
			logging.String(logging.FieldErrorHint, "check TMDB connectivity and credentials"),
		)
		return stateFallback
	}
	if !found {
		r.logger.Debug("title has no external id")
		return stateFallback
	}
	r.externalID = externalID
	return stateCacheCheck
}

func (r *run) externalFetch(ctx context.Context) state {
	attempts := r.svc.pool.Size()
	for range attempts {
		cred, err := r.svc.pool.Next()
		if errors.Is(err, keypool.ErrPoolExhausted) {
			logging.WarnWithContext(r.logger, "no rating credential available", "credential_pool_exhausted",
				logging.String(logging.FieldImpact, "serving catalog fallback rating"),
				logging.String(logging.FieldErrorHint, "add OMDb keys or run 'strive keys reset' after the daily quota resets"),
			)
			return stateFallback
		}
		if err != nil {
			return stateFallback
		}

		r.svc.metrics.ExternalCall()
		resp, err := r.svc.fetcher.Fetch(ctx, r.externalID, cred.Secret)
		if err == nil {
			r.svc.pool.RecordSuccess(cred.ID)
			r.svc.metrics.CredentialUse(cred.ID)
			r.response = resp
			return stateNormalize
		}
		if ctx.Err() != nil {
			r.logger.Debug("rating fetch cancelled",
				logging.String(logging.FieldCredential, cred.ID),
				logging.Error(ctx.Err()),
			)
			return stateFallback
		}

		attrs := []logging.Attr{
			logging.String(logging.FieldCredential, cred.ID),
			logging.String(logging.FieldExternalID, r.externalID),
			logging.Error(err),
		}
		if errors.Is(err, omdb.ErrUnauthorized) {
			r.svc.pool.RecordAuthFailure(cred.ID)
			logging.WarnWithContext(r.logger, "rating credential rejected; rotating", "credential_unauthorized",
				append(attrs, logging.String(logging.FieldErrorHint, "verify the OMDb key is activated"))...)
			continue
		}
		r.svc.pool.RecordFailure(cred.ID)
		r.logger.Info("rating fetch failed; rotating credential", logging.Args(attrs...)...)
	}
	return stateFallback
}

func (r *run) normalize(ctx context.Context) state {
	rec := Normalize(r.response)
	rec.CatalogID = r.catalogID
	rec.MediaType = r.mediaType
	rec.ExternalID = r.externalID
	rec.CachedAt = r.svc.now().UTC()
	if rec.PrimaryRating == Unavailable || rec.Plot == Unavailable {
		r.supplementFromCatalog(ctx, &rec)
	}
	r.record = &rec
	return stateCacheWrite
}

// supplementFromCatalog fills the primary rating and plot from the catalog
// when the provider has none.
func (r *run) supplementFromCatalog(ctx context.Context, rec *Record) {
	details, err := r.svc.catalog.Details(ctx, r.catalogID, r.mediaType)
	if err != nil || details == nil {
		return
	}
	if rec.PrimaryRating == Unavailable && details.VoteCount > 0 {
		rec.PrimaryScore, rec.PrimaryRating = catalogScore(details.VoteAverage)
		if rec.VoteCount == 0 {
			rec.VoteCount = int(details.VoteCount)
		}
	}
	if rec.Plot == Unavailable {
		rec.Plot = orUnavailable(details.Overview)
	}
}

func (r *run) cacheWrite(ctx context.Context) state {
	if err := r.svc.cache.Put(ctx, r.record.toEntry()); err != nil {
		logging.WarnWithContext(r.logger, "rating cache write failed", "rating_cache_write_failed",
			logging.String(logging.FieldExternalID, r.externalID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "next request refetches from provider"),
		)
	}
	return stateDone
}

func (r *run) fallback(ctx context.Context) state {
	if err := ctx.Err(); err != nil {
		r.logger.Debug("rating lookup cancelled before fallback", logging.Error(err))
		r.record = unavailableRecord(r.catalogID, r.mediaType, r.externalID)
		return stateDone
	}
	details, err := r.svc.catalog.Details(ctx, r.catalogID, r.mediaType)
	if err != nil || details == nil {
		r.svc.metrics.Error()
		logging.ErrorWithContext(r.logger, "catalog fallback failed", "rating_fallback_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "rating unavailable"),
		)
		r.record = unavailableRecord(r.catalogID, r.mediaType, r.externalID)
		return stateDone
	}

	r.svc.metrics.Fallback()
	rec := unavailableRecord(r.catalogID, r.mediaType, r.externalID)
	rec.Source = SourceFallback
	if details.VoteCount > 0 {
		rec.PrimaryScore, rec.PrimaryRating = catalogScore(details.VoteAverage)
		rec.VoteCount = int(details.VoteCount)
	}
	rec.Plot = orUnavailable(details.Overview)
	rec.Title = orUnavailable(details.DisplayTitle())
	rec.Year = orUnavailable(details.Year())
	if rec.ExternalID == "" {
		rec.ExternalID = imdbIDOrEmpty(details.IMDbID)
	}
	r.record = rec
	return stateDone
}

func catalogScore(voteAverage float64) (float64, string) {
	score, ok := parseTenScale(strconv.FormatFloat(voteAverage, 'f', -1, 64))
	if !ok {
		return 0, Unavailable
	}
	return score, formatTenScale(score)
}

func imdbIDOrEmpty(value string) string {
	if isMissing(value) {
		return ""
	}
	return value
}
