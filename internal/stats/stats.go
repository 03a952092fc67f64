// Package stats aggregates civilian profiles into the summary and heatmap
// views authorities use for situational awareness. Aggregates never carry
// precise locations.
package stats

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/capability"
	"github.com/onnwee/civitas/internal/civilian"
	"github.com/onnwee/civitas/internal/geo"
)

// Summary is the headline view over every well-formed profile.
type Summary struct {
	TotalCivilians         int            `json:"total_civilians"`
	AvailabilityBreakdown  map[string]int `json:"availability_breakdown"`
	StatusBreakdown        map[string]int `json:"status_breakdown"`
	EducationBreakdown     map[string]int `json:"education_breakdown"`
	AverageCapabilityScore float64        `json:"average_capability_score"`
}

// Summarize computes a Summary. Malformed profiles are left out.
func Summarize(profiles []*civilian.Profile) Summary {
	s := Summary{
		AvailabilityBreakdown: make(map[string]int),
		StatusBreakdown:       make(map[string]int),
		EducationBreakdown:    make(map[string]int),
	}
	for _, a := range civilian.Availabilities() {
		s.AvailabilityBreakdown[string(a)] = 0
	}
	for _, st := range civilian.Statuses() {
		s.StatusBreakdown[string(st)] = 0
	}

	var scoreSum int
	for _, p := range profiles {
		if p == nil || p.Check() != nil {
			continue
		}
		s.TotalCivilians++
		scoreSum += p.CapabilityScore
		if p.Availability != "" {
			s.AvailabilityBreakdown[string(p.Availability)]++
		}
		s.StatusBreakdown[string(p.Status)]++
		edu := p.Education
		if edu == "" {
			edu = capability.EducationNone
		}
		s.EducationBreakdown[string(edu)]++
	}
	if s.TotalCivilians > 0 {
		s.AverageCapabilityScore = math.Round(float64(scoreSum)/float64(s.TotalCivilians)*10) / 10
	}
	return s
}

// Heatmap precision bounds. Cells never get finer than the display cell.
const (
	MinHeatmapPrecision     = 3
	DefaultHeatmapPrecision = 5
	MaxHeatmapPrecision     = geo.DisplayPrecision
)

// BBox is a latitude/longitude box, inclusive on every edge.
type BBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// ParseBBox parses "min_lat,min_lon,max_lat,max_lon".
func ParseBBox(s string) (*BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, apperr.InvalidQuery("bbox must be min_lat,min_lon,max_lat,max_lon")
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, apperr.InvalidQuery("bbox value %q is not a number", part)
		}
		v[i] = f
	}
	b := &BBox{MinLat: v[0], MinLon: v[1], MaxLat: v[2], MaxLon: v[3]}
	lo, hi := geo.Point{Lat: b.MinLat, Lon: b.MinLon}, geo.Point{Lat: b.MaxLat, Lon: b.MaxLon}
	if !lo.Valid() || !hi.Valid() || b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return nil, apperr.InvalidQuery("bbox corners are out of range or reversed")
	}
	return b, nil
}

// Contains reports whether p lies in b.
func (b *BBox) Contains(p geo.Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// HeatmapFilter narrows the profiles counted. Only available civilians are
// ever counted.
type HeatmapFilter struct {
	BBox         *BBox
	Tags         []string
	MinScore     int
	Availability civilian.Availability
	Precision    int
}

// Cell is one heatmap bucket. Weight sums the per-profile weights, each the
// capability score over 100 clamped to [0.1, 1].
type Cell struct {
	Geohash string  `json:"geohash"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Count   int     `json:"count"`
	Weight  float64 `json:"weight"`
}

// Heatmap is the bucketed view. Bounds span the cell centres and are nil
// when there are no cells.
type Heatmap struct {
	Cells     []Cell      `json:"cells"`
	Bounds    *[4]float64 `json:"bounds"`
	Precision int         `json:"precision"`
}

// BuildHeatmap buckets matching profiles by geohash cell. Cells are ordered
// by geohash.
func BuildHeatmap(profiles []*civilian.Profile, f HeatmapFilter) Heatmap {
	precision := f.Precision
	if precision == 0 {
		precision = DefaultHeatmapPrecision
	}

	cells := make(map[string]*Cell)
	for _, p := range profiles {
		if p == nil || p.Check() != nil || !matches(p, f) {
			continue
		}
		hash := geo.Encode(*p.Location, precision)
		c, ok := cells[hash]
		if !ok {
			cell, _ := geo.Decode(hash)
			centre := cell.Center()
			c = &Cell{Geohash: hash, Lat: centre.Lat, Lon: centre.Lon}
			cells[hash] = c
		}
		c.Count++
		c.Weight += profileWeight(p.CapabilityScore)
	}

	h := Heatmap{Cells: make([]Cell, 0, len(cells)), Precision: precision}
	for _, c := range cells {
		c.Weight = math.Round(c.Weight*100) / 100
		h.Cells = append(h.Cells, *c)
	}
	sort.Slice(h.Cells, func(i, j int) bool { return h.Cells[i].Geohash < h.Cells[j].Geohash })

	for i, c := range h.Cells {
		if i == 0 {
			h.Bounds = &[4]float64{c.Lat, c.Lon, c.Lat, c.Lon}
			continue
		}
		h.Bounds[0] = math.Min(h.Bounds[0], c.Lat)
		h.Bounds[1] = math.Min(h.Bounds[1], c.Lon)
		h.Bounds[2] = math.Max(h.Bounds[2], c.Lat)
		h.Bounds[3] = math.Max(h.Bounds[3], c.Lon)
	}
	return h
}

func matches(p *civilian.Profile, f HeatmapFilter) bool {
	if p.Status != civilian.StatusAvailable || p.Location == nil {
		return false
	}
	if f.BBox != nil && !f.BBox.Contains(*p.Location) {
		return false
	}
	if p.CapabilityScore < f.MinScore {
		return false
	}
	if f.Availability != "" && p.Availability != f.Availability {
		return false
	}
	for _, tag := range f.Tags {
		if !p.HasTag(tag) {
			return false
		}
	}
	return true
}

func profileWeight(score int) float64 {
	return math.Max(0.1, math.Min(1, float64(score)/100))
}

// Service serves the aggregates to authorities.
type Service struct {
	repo civilian.Repository
}

// NewService creates a Service over repo.
func NewService(repo civilian.Repository) *Service {
	return &Service{repo: repo}
}

// Summary returns the Summary of the current snapshot.
func (s *Service) Summary(ctx context.Context, requester auth.Requester) (Summary, error) {
	if !requester.IsAuthority() {
		return Summary{}, apperr.New(apperr.ErrForbidden, "statistics are available to authorities only")
	}
	profiles, err := s.repo.Snapshot(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(profiles), nil
}

// Heatmap validates f and returns the heatmap of the current snapshot.
func (s *Service) Heatmap(ctx context.Context, requester auth.Requester, f HeatmapFilter) (Heatmap, error) {
	if !requester.IsAuthority() {
		return Heatmap{}, apperr.New(apperr.ErrForbidden, "statistics are available to authorities only")
	}
	if f.Precision != 0 && (f.Precision < MinHeatmapPrecision || f.Precision > MaxHeatmapPrecision) {
		return Heatmap{}, apperr.InvalidQuery("precision must be between %d and %d", MinHeatmapPrecision, MaxHeatmapPrecision)
	}
	if f.MinScore < 0 || f.MinScore > 100 {
		return Heatmap{}, apperr.InvalidQuery("min_score must be between 0 and 100")
	}
	if f.Availability != "" && !f.Availability.Valid() {
		return Heatmap{}, apperr.InvalidQuery("unknown availability %q", f.Availability)
	}
	profiles, err := s.repo.Snapshot(ctx)
	if err != nil {
		return Heatmap{}, err
	}
	return BuildHeatmap(profiles, f), nil
}
