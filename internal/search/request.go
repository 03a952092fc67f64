// Package search implements the ranked civilian search: a request is
// normalised into a Query, candidates are filtered and scored against a
// snapshot of profiles, then ranked and paginated.
package search

import (
	"strings"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/geo"
)

// Location is how the search center is obtained. It is one of
// CurrentLocation, PlaceSearch or MapViewport.
type Location interface {
	mode() string
}

// CurrentLocation is a device-reported position.
type CurrentLocation struct {
	Lat       float64
	Lon       float64
	AccuracyM float64
}

// PlaceSearch is a place name to geocode.
type PlaceSearch struct {
	Query string
}

// MapViewport is the map's current center. Center is nil until the map
// collaborator has reported one.
type MapViewport struct {
	Center *geo.Point
}

// Location modes as sent on the wire.
const (
	ModeCurrent = "current"
	ModeSearch  = "search"
	ModeMap     = "map"
)

func (CurrentLocation) mode() string { return ModeCurrent }
func (PlaceSearch) mode() string     { return ModeSearch }
func (MapViewport) mode() string     { return ModeMap }

// Request is a validated-shape search request. Values are checked by the
// Normalizer.
type Request struct {
	Location           Location
	RadiusKm           float64
	Statuses           []string
	Availability       []string
	Skills             []string
	MinLevels          map[string]int
	IncludeTags        []string
	ExcludeTags        []string
	MinCapabilityScore int
	Sort               SortMode
	Page               int
	Limit              int
}

// Request defaults applied to omitted wire fields.
const (
	DefaultRadiusKm = 50
	DefaultPage     = 1
	DefaultLimit    = 20
	DefaultSort     = SortCombined
)

// RawRequest is the JSON body of a search call.
type RawRequest struct {
	LocationMode       string         `json:"location_mode"`
	Lat                *float64       `json:"lat"`
	Lon                *float64       `json:"lon"`
	AccuracyM          *float64       `json:"accuracy_m"`
	PlaceQuery         *string        `json:"place_query"`
	MapCenter          *geo.Point     `json:"map_center"`
	RadiusKm           *float64       `json:"radius_km"`
	Status             []string       `json:"status"`
	Availability       []string       `json:"availability"`
	Skills             []string       `json:"skills"`
	MinLevels          map[string]int `json:"min_levels"`
	IncludeTags        []string       `json:"include_tags"`
	ExcludeTags        []string       `json:"exclude_tags"`
	MinCapabilityScore *int           `json:"min_capability_score"`
	Sort               *string        `json:"sort"`
	Page               *int           `json:"page"`
	Limit              *int           `json:"limit"`
}

// Parse converts the wire form into a Request, choosing the location
// variant. Unknown modes and fields that contradict the mode are rejected.
// Omitted fields take defaults; an omitted status list means available only,
// while an explicitly empty list is left for the Normalizer to reject.
func (raw RawRequest) Parse() (Request, error) {
	var req Request

	hasCoords := raw.Lat != nil || raw.Lon != nil
	switch strings.ToLower(strings.TrimSpace(raw.LocationMode)) {
	case ModeCurrent:
		if raw.PlaceQuery != nil || raw.MapCenter != nil {
			return req, apperr.InvalidQuery("location_mode current does not accept place_query or map_center")
		}
		if raw.Lat == nil || raw.Lon == nil {
			return req, apperr.InvalidLocation("location_mode current requires lat and lon")
		}
		loc := CurrentLocation{Lat: *raw.Lat, Lon: *raw.Lon}
		if raw.AccuracyM != nil {
			loc.AccuracyM = *raw.AccuracyM
		}
		req.Location = loc
	case ModeSearch:
		if hasCoords || raw.MapCenter != nil || raw.AccuracyM != nil {
			return req, apperr.InvalidQuery("location_mode search does not accept coordinates or map_center")
		}
		if raw.PlaceQuery == nil {
			return req, apperr.InvalidLocation("location_mode search requires place_query")
		}
		req.Location = PlaceSearch{Query: *raw.PlaceQuery}
	case ModeMap:
		if hasCoords || raw.PlaceQuery != nil || raw.AccuracyM != nil {
			return req, apperr.InvalidQuery("location_mode map does not accept lat, lon or place_query")
		}
		req.Location = MapViewport{Center: raw.MapCenter}
	case "":
		return req, apperr.InvalidLocation("location_mode is required")
	default:
		return req, apperr.InvalidQuery("unknown location_mode %q", raw.LocationMode)
	}

	req.RadiusKm = DefaultRadiusKm
	if raw.RadiusKm != nil {
		req.RadiusKm = *raw.RadiusKm
	}
	req.Statuses = raw.Status
	if req.Statuses == nil {
		req.Statuses = []string{"available"}
	}
	req.Availability = raw.Availability
	req.Skills = raw.Skills
	req.MinLevels = raw.MinLevels
	req.IncludeTags = raw.IncludeTags
	req.ExcludeTags = raw.ExcludeTags
	if raw.MinCapabilityScore != nil {
		req.MinCapabilityScore = *raw.MinCapabilityScore
	}
	req.Sort = DefaultSort
	if raw.Sort != nil {
		req.Sort = SortMode(strings.ToLower(strings.TrimSpace(*raw.Sort)))
	}
	req.Page = DefaultPage
	if raw.Page != nil {
		req.Page = *raw.Page
	}
	req.Limit = DefaultLimit
	if raw.Limit != nil {
		req.Limit = *raw.Limit
	}
	return req, nil
}
