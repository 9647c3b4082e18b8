package api

import (
	"maps"
	"time"

	"github.com/al0nec0der/StrIve-sub000/internal/keypool"
	"github.com/al0nec0der/StrIve-sub000/internal/metrics"
	"github.com/al0nec0der/StrIve-sub000/internal/ratings"
)

// FromRecord converts a rating record for transport.
func FromRecord(rec *ratings.Record) Rating {
	if rec == nil {
		return Rating{}
	}
	return Rating{
		ExternalID:      rec.ExternalID,
		CatalogID:       rec.CatalogID,
		MediaType:       rec.MediaType.String(),
		Source:          string(rec.Source),
		PrimaryRating:   rec.PrimaryRating,
		SecondaryRating: rec.SecondaryRating,
		TertiaryRating:  rec.TertiaryRating,
		PrimaryScore:    rec.PrimaryScore,
		SecondaryScore:  rec.SecondaryScore,
		TertiaryScore:   rec.TertiaryScore,
		VoteCount:       rec.VoteCount,
		Awards:          rec.Awards,
		Plot:            rec.Plot,
		Title:           rec.Title,
		Year:            rec.Year,
		CachedAt:        formatTime(rec.CachedAt),
	}
}

// FromRecords converts a batch result.
func FromRecords(recs map[string]*ratings.Record) map[string]Rating {
	out := make(map[string]Rating, len(recs))
	for id, rec := range recs {
		out[id] = FromRecord(rec)
	}
	return out
}

// FromCredential converts a credential record. The secret is never copied.
func FromCredential(c keypool.Credential) Credential {
	return Credential{
		ID:               c.ID,
		Masked:           c.Masked(),
		DailyUsage:       c.DailyUsage,
		DailyQuota:       c.DailyQuota,
		Remaining:        c.Remaining(),
		Active:           c.Active,
		QuotaExceeded:    c.QuotaExceeded,
		DeactivatedUntil: formatTime(c.DeactivatedUntil),
		LastUsedAt:       formatTime(c.LastUsedAt),
		AuthFailures:     c.AuthFailures,
		Failures:         c.Failures,
	}
}

// FromCredentials converts a pool snapshot.
func FromCredentials(creds []keypool.Credential) []Credential {
	out := make([]Credential, 0, len(creds))
	for _, c := range creds {
		out = append(out, FromCredential(c))
	}
	return out
}

// FromSnapshot converts a metrics snapshot.
func FromSnapshot(s metrics.Snapshot) Metrics {
	usage := maps.Clone(s.CredentialUsage)
	if usage == nil {
		usage = map[string]int64{}
	}
	return Metrics{
		CacheHits:        s.CacheHits,
		CacheMisses:      s.CacheMisses,
		ExternalCalls:    s.ExternalCalls,
		Fallbacks:        s.Fallbacks,
		Errors:           s.Errors,
		TotalRequests:    s.TotalRequests,
		HitRate:          s.HitRate(),
		TotalLatencyMS:   milliseconds(s.TotalLatency),
		AverageLatencyMS: milliseconds(s.AverageLatency),
		CredentialUsage:  usage,
		Since:            formatTime(s.Since),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
