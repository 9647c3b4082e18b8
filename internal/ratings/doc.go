// Package ratings orchestrates rating lookups for catalog titles.
//
// A request walks an explicit state machine: durable cache check, external id
// resolution, credential-rotated provider fetch, normalization and a
// best-effort cache write. Any unrecoverable failure ends in the catalog
// fallback, so callers always receive a record; only malformed requests
// produce an error.
package ratings
