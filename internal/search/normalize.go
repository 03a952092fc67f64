package search

import (
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/capability"
	"github.com/onnwee/civitas/internal/civilian"
	"github.com/onnwee/civitas/internal/geo"
	"github.com/onnwee/civitas/internal/geocode"
)

// Normalizer defaults.
const (
	DefaultMaxLimit       = 100
	DefaultGeocodeTimeout = 5 * time.Second
)

// NormalizerConfig configures a Normalizer.
type NormalizerConfig struct {
	MaxLimit       int
	GeocodeTimeout time.Duration
}

// Normalizer validates requests and resolves their center.
type Normalizer struct {
	geocoder geocode.Geocoder
	maxLimit int
	timeout  time.Duration
}

// NewNormalizer creates a Normalizer. A nil geocoder makes place searches
// fail with UpstreamUnavailable.
func NewNormalizer(g geocode.Geocoder, cfg NormalizerConfig) *Normalizer {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultMaxLimit
	}
	if cfg.GeocodeTimeout <= 0 {
		cfg.GeocodeTimeout = DefaultGeocodeTimeout
	}
	return &Normalizer{geocoder: g, maxLimit: cfg.MaxLimit, timeout: cfg.GeocodeTimeout}
}

// MaxLimit returns the largest accepted page size.
func (n *Normalizer) MaxLimit() int {
	return n.maxLimit
}

// Normalize checks every filter of req and resolves its location to a
// concrete center. Filters are validated before any geocoding happens.
func (n *Normalizer) Normalize(ctx context.Context, req Request) (Query, error) {
	q, err := n.filters(req)
	if err != nil {
		return Query{}, err
	}
	if err := n.resolve(ctx, req.Location, &q); err != nil {
		return Query{}, err
	}
	return q, nil
}

func (n *Normalizer) filters(req Request) (Query, error) {
	q := Query{
		RadiusKm:           req.RadiusKm,
		MinCapabilityScore: req.MinCapabilityScore,
		Sort:               req.Sort,
		Page:               req.Page,
		Limit:              req.Limit,
	}

	if math.IsNaN(q.RadiusKm) || q.RadiusKm < MinRadiusKm || q.RadiusKm > MaxRadiusKm {
		return Query{}, apperr.InvalidQuery("radius_km must be between %d and %d", MinRadiusKm, MaxRadiusKm)
	}

	if len(req.Statuses) == 0 {
		return Query{}, apperr.InvalidQuery("status must list at least one status")
	}
	for _, raw := range req.Statuses {
		s := civilian.Status(strings.ToLower(strings.TrimSpace(raw)))
		if !s.Valid() {
			return Query{}, apperr.InvalidQuery("unknown status %q", raw)
		}
		if !q.allowsStatus(s) {
			q.Statuses = append(q.Statuses, s)
		}
	}

	for _, raw := range req.Availability {
		a := civilian.Availability(strings.ToLower(strings.TrimSpace(raw)))
		if !a.Valid() {
			return Query{}, apperr.InvalidQuery("unknown availability %q", raw)
		}
		if !slices.Contains(q.Availability, a) {
			q.Availability = append(q.Availability, a)
		}
	}

	q.Skills = normalizeTerms(req.Skills)
	q.IncludeTags = normalizeTerms(req.IncludeTags)
	q.ExcludeTags = normalizeTerms(req.ExcludeTags)
	for _, tag := range q.IncludeTags {
		for _, ex := range q.ExcludeTags {
			if tag == ex {
				return Query{}, apperr.InvalidQuery("tag %q is both included and excluded", tag)
			}
		}
	}

	if len(req.MinLevels) > 0 {
		q.MinLevels = make(capability.Levels, len(req.MinLevels))
		for raw, level := range req.MinLevels {
			id := capability.SkillID(strings.ToLower(strings.TrimSpace(raw)))
			if !id.Valid() {
				return Query{}, apperr.InvalidQuery("unknown skill id %q in min_levels", raw)
			}
			if !capability.ValidLevel(level) {
				return Query{}, apperr.InvalidQuery("min_levels[%s] must be between %d and %d",
					id, capability.MinLevel, capability.MaxLevel)
			}
			q.MinLevels[id] = level
		}
	}

	if q.MinCapabilityScore < 0 || q.MinCapabilityScore > 100 {
		return Query{}, apperr.InvalidQuery("min_capability_score must be between 0 and 100")
	}
	if !q.Sort.Valid() {
		return Query{}, apperr.InvalidQuery("unknown sort %q", req.Sort)
	}
	if q.Page < 1 {
		return Query{}, apperr.InvalidQuery("page must be at least 1")
	}
	if q.Limit < 1 || q.Limit > n.maxLimit {
		return Query{}, apperr.InvalidQuery("limit must be between 1 and %d", n.maxLimit)
	}
	return q, nil
}

func (n *Normalizer) resolve(ctx context.Context, loc Location, q *Query) error {
	switch l := loc.(type) {
	case CurrentLocation:
		p := geo.Point{Lat: l.Lat, Lon: l.Lon}
		if !p.Valid() {
			return apperr.InvalidLocation("coordinates out of range")
		}
		q.Center, q.CenterSource = p, SourceDevice
	case PlaceSearch:
		if n.geocoder == nil {
			return apperr.New(apperr.ErrUpstreamUnavailable, "geocoding is not configured")
		}
		gctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		place, err := geocode.Resolve(gctx, n.geocoder, l.Query)
		if err != nil {
			return err
		}
		q.Center, q.CenterSource, q.PlaceName = place.Point(), SourceGeocoder, place.DisplayName
	case MapViewport:
		if l.Center == nil {
			return apperr.InvalidLocation("map center is not available yet")
		}
		if !l.Center.Valid() {
			return apperr.InvalidLocation("coordinates out of range")
		}
		q.Center, q.CenterSource = *l.Center, SourceMap
	default:
		return apperr.InvalidLocation("no search location given")
	}
	return nil
}

// normalizeTerms lowercases, trims and deduplicates terms, dropping blanks.
func normalizeTerms(terms []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
