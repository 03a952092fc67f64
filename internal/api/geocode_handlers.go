package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/geo"
	"github.com/onnwee/civitas/internal/geocode"
)

// ReverseGeocoder resolves a coordinate to a place name.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (geocode.Place, error)
}

// GeocodeHandlers serves place lookups for the location picker.
type GeocodeHandlers struct {
	geocoder geocode.Geocoder
	reverse  ReverseGeocoder
}

// NewGeocodeHandlers creates a new GeocodeHandlers instance. reverse may be nil.
func NewGeocodeHandlers(geocoder geocode.Geocoder, reverse ReverseGeocoder) *GeocodeHandlers {
	return &GeocodeHandlers{geocoder: geocoder, reverse: reverse}
}

// GeocodeResponse lists candidate places, best provider first.
type GeocodeResponse struct {
	Results []geocode.Place `json:"results"`
}

// Geocode handles GET /api/geocode?q=&limit=.
func (h *GeocodeHandlers) Geocode(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	q, err := geocode.NormalizeQuery(r.URL.Query().Get("q"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err == nil {
		limit, err = geocode.ValidateLimit(limit)
	}
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	places, err := h.geocoder.Search(r.Context(), q, limit)
	if err != nil {
		WriteAppError(w, r, upstream(err))
		return
	}
	if places == nil {
		places = []geocode.Place{}
	}
	writeJSON(w, r.Context(), http.StatusOK, GeocodeResponse{Results: places})
}

// Reverse handles GET /api/geocode/reverse?lat=&lon=.
func (h *GeocodeHandlers) Reverse(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil || !(geo.Point{Lat: lat, Lon: lon}).Valid() {
		WriteAppError(w, r, apperr.InvalidLocation("lat and lon must be valid coordinates"))
		return
	}
	if h.reverse == nil {
		WriteAppError(w, r, apperr.New(apperr.ErrUpstreamUnavailable, "reverse geocoding is not configured"))
		return
	}

	place, err := h.reverse.Reverse(r.Context(), lat, lon)
	if err != nil {
		WriteAppError(w, r, upstream(err))
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, place)
}

// upstream classifies geocoder failures that are not already domain errors.
func upstream(err error) error {
	if apperr.Code(err) != apperr.CodeInternal || errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Join(apperr.New(apperr.ErrUpstreamUnavailable, "geocoding service unavailable, please retry"), err)
}
