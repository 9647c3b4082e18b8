package logging

import (
	"context"
	"log/slog"

	"github.com/al0nec0der/StrIve-sub000/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType is the machine-readable event name attached to notable log lines.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldCatalogID is the catalog (TMDB) identifier of the title being rated.
	FieldCatalogID = "catalog_id"
	// FieldMediaType is the media type (movie/series) of the title being rated.
	FieldMediaType = "media_type"
	// FieldExternalID is the rating provider identifier (IMDb ID).
	FieldExternalID = "external_id"
	// FieldCredential is the masked credential identifier.
	FieldCredential = "credential"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	if id, ok := services.CatalogIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCatalogID, id))
	}
	if mt, ok := services.MediaTypeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldMediaType, mt))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
