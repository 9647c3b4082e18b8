package tmdb

import (
	"fmt"
	"strings"
)

// MediaType distinguishes the catalog namespaces a title can live in.
type MediaType string

const (
	MediaMovie  MediaType = "movie"
	MediaSeries MediaType = "series"
)

// ParseMediaType accepts the canonical names plus the catalog's own aliases.
func ParseMediaType(value string) (MediaType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "movie", "movies", "film":
		return MediaMovie, nil
	case "series", "tv", "show", "shows":
		return MediaSeries, nil
	default:
		return "", fmt.Errorf("unknown media type %q", value)
	}
}

// Valid reports whether m is one of the supported media types.
func (m MediaType) Valid() bool {
	return m == MediaMovie || m == MediaSeries
}

func (m MediaType) String() string { return string(m) }

// pathSegment maps the media type onto the TMDB URL namespace.
func (m MediaType) pathSegment() string {
	if m == MediaSeries {
		return "tv"
	}
	return "movie"
}
