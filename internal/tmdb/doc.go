// Package tmdb is the catalog provider adapter. It resolves catalog ids to
// IMDb ids through the external_ids endpoint and supplies TMDB's native vote
// average when no third-party rating can be obtained. Calls are typically
// routed through BreakerProvider so an unavailable catalog fails fast.
package tmdb
