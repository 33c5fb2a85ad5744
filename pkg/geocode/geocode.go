// Package geocode resolves city/state place names to coordinates via the
// Nominatim API, with a persistent cache layer in front of the network.
package geocode

import (
	"context"
	"strings"
)

// Query is a place to geocode. Free-form queries are built as "City, State"
// (or whichever parts are present). Raw carries an unparsed location string
// and takes precedence when set, so locations that defeat city/state parsing
// still get a lookup.
type Query struct {
	City  string
	State string
	Raw   string
}

// String renders the query as a single search string.
func (q Query) String() string {
	if q.Raw != "" {
		return strings.Join(strings.Fields(q.Raw), " ")
	}
	parts := make([]string, 0, 2)
	if q.City != "" {
		parts = append(parts, q.City)
	}
	if q.State != "" {
		parts = append(parts, q.State)
	}
	return strings.Join(parts, ", ")
}

// Key is the canonical cache key for the query: lowercased, whitespace
// normalized. Raw queries key on the exact normalized location string.
func (q Query) Key() string {
	if q.Raw != "" {
		return strings.ToLower(strings.Join(strings.Fields(q.Raw), " "))
	}
	return strings.ToLower(strings.TrimSpace(q.City)) + "," + strings.ToLower(strings.TrimSpace(q.State))
}

// Result holds geocoding output for a query. Matched is false when the
// provider returned no candidates; that is a valid outcome, not an error.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Matched     bool
}

// Client geocodes place names.
type Client interface {
	Geocode(ctx context.Context, q Query) (*Result, error)
}
