// Package idmap resolves catalog (TMDB) ids to rating provider (IMDb) ids.
//
// Resolved mappings, including confirmed negatives, live in a bounded LRU
// cache with a seven day TTL. The cache can be persisted to a JSON file so
// resolutions survive restarts and can be inspected from the CLI.
package idmap
