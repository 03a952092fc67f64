// Package geocode turns place names into coordinates.
//
// A Nominatim HTTP client is tried first and a local gazetteer of Finnish
// cities fills in when it fails or returns too little. Results are cached and
// concurrent identical lookups share one upstream call.
package geocode

import (
	"context"
	"errors"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/geo"
)

// Query limits.
const (
	MinQueryLength = 2
	MaxQueryLength = 200
	DefaultLimit   = 5
	MaxLimit       = 10
)

// Result sources, also used as metric labels.
const (
	SourceNominatim = "nominatim"
	SourceGazetteer = "gazetteer"
)

// Confidence assigned per source.
const (
	NominatimConfidence = 0.8
	GazetteerConfidence = 0.6
)

// ErrUpstream marks a failed call to an external geocoder.
var ErrUpstream = errors.New("geocoder unavailable")

// Place is one geocoding candidate.
type Place struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Type        string  `json:"type"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
}

// Point returns the coordinates of p.
func (p Place) Point() geo.Point {
	return geo.Point{Lat: p.Lat, Lon: p.Lon}
}

// Geocoder searches places by name. Results are in the provider's order.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]Place, error)
}

// NormalizeQuery trims q and checks its length.
func NormalizeQuery(q string) (string, error) {
	q = strings.Join(strings.Fields(q), " ")
	n := utf8.RuneCountInString(q)
	if n < MinQueryLength {
		return "", apperr.InvalidQuery("query must be at least %d characters", MinQueryLength)
	}
	if n > MaxQueryLength {
		return "", apperr.InvalidQuery("query must be at most %d characters", MaxQueryLength)
	}
	return q, nil
}

// ValidateLimit checks a requested result count. Zero means DefaultLimit.
func ValidateLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultLimit, nil
	}
	if limit < 1 || limit > MaxLimit {
		return 0, apperr.InvalidQuery("limit must be between 1 and %d", MaxLimit)
	}
	return limit, nil
}

// Resolve geocodes query to a single point. The highest-confidence result
// wins and ties go to the earlier result.
//
// Zero results fail with an InvalidLocation "address not found" error and a
// failing upstream with UpstreamUnavailable. Resolve never retries.
func Resolve(ctx context.Context, g Geocoder, query string) (Place, error) {
	q, err := NormalizeQuery(query)
	if err != nil {
		return Place{}, err
	}

	places, err := g.Search(ctx, q, DefaultLimit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Place{}, err
		}
		return Place{}, apperr.Newf(apperr.ErrUpstreamUnavailable, "geocoding service unavailable, please retry")
	}

	best, ok := pickBest(places)
	if !ok {
		return Place{}, apperr.InvalidLocation("address not found")
	}
	return best, nil
}

func pickBest(places []Place) (Place, bool) {
	var (
		best  Place
		found bool
	)
	for _, p := range places {
		if !p.Point().Valid() {
			continue
		}
		if !found || p.Confidence > best.Confidence {
			best = p
			found = true
		}
	}
	return best, found
}

// dedupe drops places whose coordinates equal an earlier place's when
// rounded to four decimals (about 11 m).
func dedupe(places []Place) []Place {
	type key struct{ lat, lon float64 }
	seen := make(map[key]bool, len(places))
	out := places[:0:0]
	for _, p := range places {
		k := key{round4(p.Lat), round4(p.Lon)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
