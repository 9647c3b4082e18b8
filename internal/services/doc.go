// Package services defines shared utilities consumed by the rating pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers, catalog IDs, and media
//     types for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent API status codes.
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability) stays uniform across the service.
package services
