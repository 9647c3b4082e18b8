// Package api defines the wire-format types of the rating daemon's HTTP API
// and a client for it.
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 with milliseconds and
// omitted when zero. Credential secrets never cross the wire; only the masked
// form and usage counters do.
package api
