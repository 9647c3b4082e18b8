package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	catalogIDKey contextKey = "catalog_id"
	mediaTypeKey contextKey = "media_type"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCatalogID annotates context with the catalog identifier being rated.
func WithCatalogID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, catalogIDKey, id)
}

// CatalogIDFromContext returns the catalog identifier if present.
func CatalogIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(catalogIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithMediaType annotates context with the media type (movie/series).
func WithMediaType(ctx context.Context, mediaType string) context.Context {
	if mediaType == "" {
		return ctx
	}
	return context.WithValue(ctx, mediaTypeKey, mediaType)
}

// MediaTypeFromContext returns the media type if present.
func MediaTypeFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(mediaTypeKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
