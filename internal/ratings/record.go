package ratings

import (
	"fmt"
	"time"

	"github.com/al0nec0der/StrIve-sub000/internal/ratingcache"
	"github.com/al0nec0der/StrIve-sub000/internal/services"
	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

// Unavailable marks a value no source could provide.
const Unavailable = "N/A"

// ErrInvalidRequest is the only error GetRating returns.
var ErrInvalidRequest = fmt.Errorf("%w: invalid rating request", services.ErrValidation)

// Source tells where a record's values came from.
type Source string

const (
	SourceProvider Source = "provider"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
	SourceError    Source = "error"
)

// Record is the normalized rating returned to callers.
type Record struct {
	ExternalID      string         `json:"externalId,omitempty"`
	CatalogID       string         `json:"catalogId"`
	MediaType       tmdb.MediaType `json:"mediaType"`
	Source          Source         `json:"source"`
	PrimaryRating   string         `json:"primaryRating"`
	SecondaryRating string         `json:"secondaryRating"`
	TertiaryRating  string         `json:"tertiaryRating"`
	PrimaryScore    float64        `json:"primaryScore"`
	SecondaryScore  int            `json:"secondaryScore"`
	TertiaryScore   int            `json:"tertiaryScore"`
	VoteCount       int            `json:"voteCount"`
	Awards          string         `json:"awards"`
	Plot            string         `json:"plot"`
	Title           string         `json:"title"`
	Year            string         `json:"year"`
	CachedAt        time.Time      `json:"cachedAt,omitzero"`
}

func unavailableRecord(catalogID string, mediaType tmdb.MediaType, externalID string) *Record {
	return &Record{
		ExternalID:      externalID,
		CatalogID:       catalogID,
		MediaType:       mediaType,
		Source:          SourceError,
		PrimaryRating:   Unavailable,
		SecondaryRating: Unavailable,
		TertiaryRating:  Unavailable,
		Awards:          Unavailable,
		Plot:            Unavailable,
		Title:           Unavailable,
		Year:            Unavailable,
	}
}

func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (r *Record) toEntry() ratingcache.Entry {
	return ratingcache.Entry{
		ExternalID:      r.ExternalID,
		CatalogID:       r.CatalogID,
		MediaType:       r.MediaType.String(),
		PrimaryRating:   r.PrimaryRating,
		SecondaryRating: r.SecondaryRating,
		TertiaryRating:  r.TertiaryRating,
		PrimaryScore:    r.PrimaryScore,
		SecondaryScore:  r.SecondaryScore,
		TertiaryScore:   r.TertiaryScore,
		VoteCount:       r.VoteCount,
		Awards:          r.Awards,
		Plot:            r.Plot,
		Title:           r.Title,
		Year:            r.Year,
		CachedAt:        r.CachedAt,
	}
}

// recordFromEntry rebuilds a cached record for the requesting title. The
// request's catalog id and media type replace the stored ones.
func recordFromEntry(e *ratingcache.Entry, catalogID string, mediaType tmdb.MediaType) *Record {
	return &Record{
		ExternalID:      e.ExternalID,
		CatalogID:       catalogID,
		MediaType:       mediaType,
		Source:          SourceCache,
		PrimaryRating:   orUnavailable(e.PrimaryRating),
		SecondaryRating: orUnavailable(e.SecondaryRating),
		TertiaryRating:  orUnavailable(e.TertiaryRating),
		PrimaryScore:    e.PrimaryScore,
		SecondaryScore:  e.SecondaryScore,
		TertiaryScore:   e.TertiaryScore,
		VoteCount:       e.VoteCount,
		Awards:          orUnavailable(e.Awards),
		Plot:            orUnavailable(e.Plot),
		Title:           orUnavailable(e.Title),
		Year:            orUnavailable(e.Year),
		CachedAt:        e.CachedAt,
	}
}
