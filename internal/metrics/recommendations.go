package metrics

import (
	"fmt"
	"slices"
	"time"
)

// Thresholds for Recommendations. A snapshot needs minSamples requests
// before rates are judged.
const (
	minSamples           = 10
	lowHitRate           = 0.5
	highFallbackRate     = 0.2
	highErrorRate        = 0.05
	slowAverageLatency   = 2 * time.Second
	credentialImbalance  = 2.0
	minCredentialSamples = 20
)

// Recommendations derives advisory messages from snap.
func Recommendations(snap Snapshot) []string {
	var out []string
	if snap.TotalRequests < minSamples {
		return out
	}
	if lookups := snap.CacheHits + snap.CacheMisses; lookups >= minSamples && snap.HitRate() < lowHitRate {
		out = append(out, fmt.Sprintf(
			"cache hit rate is %.0f%%; consider raising cache.freshness_hours or pre-warming popular titles",
			snap.HitRate()*100))
	}
	if rate := snap.FallbackRate(); rate > highFallbackRate {
		out = append(out, fmt.Sprintf(
			"%.0f%% of requests used the catalog fallback; check OMDb credentials and quota",
			rate*100))
	}
	if rate := snap.ErrorRate(); rate > highErrorRate {
		out = append(out, fmt.Sprintf(
			"%.0f%% of requests returned no rating at all; check TMDB and OMDb connectivity",
			rate*100))
	}
	if snap.AverageLatency > slowAverageLatency {
		out = append(out, fmt.Sprintf(
			"average request latency is %s; consider lowering omdb.retry_attempts or raising requests_per_second",
			snap.AverageLatency.Round(time.Millisecond)))
	}
	if msg, ok := credentialSkew(snap.CredentialUsage); ok {
		out = append(out, msg)
	}
	return out
}

func credentialSkew(usage map[string]int64) (string, bool) {
	if len(usage) < 2 {
		return "", false
	}
	var total, lo, hi int64
	lo = -1
	ids := make([]string, 0, len(usage))
	for id, n := range usage {
		ids = append(ids, id)
		total += n
		if lo < 0 || n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	if total < minCredentialSamples {
		return "", false
	}
	if lo > 0 && float64(hi)/float64(lo) < credentialImbalance {
		return "", false
	}
	slices.Sort(ids)
	return fmt.Sprintf("credential usage is uneven across %v (min %d, max %d); check for deactivated or exhausted keys",
		ids, lo, hi), true
}
