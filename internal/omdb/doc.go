// Package omdb is the rating provider client. A single Fetch returns the raw
// OMDb payload for one IMDb id and credential, classifying failures so the
// caller can rotate credentials: ErrUnauthorized, ErrRateLimited, ErrTimeout,
// ErrProvider and ErrTransport.
package omdb
