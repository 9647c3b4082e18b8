// Package docstore defines the durable document store consumed by the rating
// cache and ships an in-memory implementation.
//
// Documents are opaque byte slices addressed by collection and key. Backends
// provide per-document last-write-wins consistency; the sqlite and redis
// subpackages hold the durable implementations.
package docstore
