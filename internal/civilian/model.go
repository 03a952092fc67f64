// Package civilian holds civilian capability profiles, their storage and the
// submission workflow that creates and updates them.
package civilian

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/civitas/internal/capability"
	"github.com/onnwee/civitas/internal/geo"
)

// Status is the allocation state of a civilian.
type Status string

// Statuses. Only the allocation workflow moves available to allocated.
const (
	StatusAvailable   Status = "available"
	StatusAllocated   Status = "allocated"
	StatusUnavailable Status = "unavailable"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusAllocated, StatusUnavailable:
		return true
	}
	return false
}

// Statuses returns every known status.
func Statuses() []Status {
	return []Status{StatusAvailable, StatusAllocated, StatusUnavailable}
}

// Availability is how soon a civilian can be deployed.
type Availability string

// Availability buckets.
const (
	AvailabilityImmediate   Availability = "immediate"
	Availability24h         Availability = "24h"
	Availability48h         Availability = "48h"
	AvailabilityUnavailable Availability = "unavailable"
)

// Valid reports whether a is a known bucket.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityImmediate, Availability24h, Availability48h, AvailabilityUnavailable:
		return true
	}
	return false
}

// Availabilities returns every bucket, soonest first.
func Availabilities() []Availability {
	return []Availability{AvailabilityImmediate, Availability24h, Availability48h, AvailabilityUnavailable}
}

// PII is the personally identifying part of a profile.
type PII struct {
	FullName string     `json:"full_name"`
	Address  string     `json:"address"`
	DOB      *time.Time `json:"dob"`
}

// Resource is a declared tool or piece of equipment.
type Resource struct {
	Category string         `json:"category"`
	Subtype  string         `json:"subtype"`
	Quantity int            `json:"quantity"`
	Spec     map[string]any `json:"spec,omitempty"`
}

// Profile is a civilian's capability profile.
//
// Tags and CapabilityScore are derived from the other fields by the
// repository on every write.
type Profile struct {
	UserID       string
	PII          PII
	Location     *geo.Point
	Education    capability.Education
	Industry     string
	FreeText     string
	Skills       []string
	SkillLevels  capability.Levels
	Resources    []Resource
	Availability Availability

	Tags            []string
	CapabilityScore int
	Status          Status

	CreatedAt   time.Time
	LastUpdated time.Time

	// corrupt is set when the stored row could not be decoded.
	corrupt error
}

// MarkCorrupt records that the stored form of p could not be decoded. Check
// reports it ahead of every other rule.
func (p *Profile) MarkCorrupt(reason error) {
	p.corrupt = reason
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.PII.DOB != nil {
		dob := *p.PII.DOB
		cp.PII.DOB = &dob
	}
	if p.Location != nil {
		loc := *p.Location
		cp.Location = &loc
	}
	cp.Skills = append([]string(nil), p.Skills...)
	cp.Tags = append([]string(nil), p.Tags...)
	cp.SkillLevels = p.SkillLevels.Clone()
	if p.Resources != nil {
		cp.Resources = make([]Resource, len(p.Resources))
		for i, r := range p.Resources {
			cp.Resources[i] = r
			if r.Spec != nil {
				spec := make(map[string]any, len(r.Spec))
				for k, v := range r.Spec {
					spec[k] = v
				}
				cp.Resources[i].Spec = spec
			}
		}
	}
	return &cp
}

// Input returns the fields tags and score derive from.
func (p *Profile) Input() capability.Input {
	return capability.Input{
		Education:   p.Education,
		Skills:      p.Skills,
		FreeText:    p.FreeText,
		SkillLevels: p.SkillLevels,
	}
}

// Derive recomputes Tags and CapabilityScore.
func (p *Profile) Derive(s *capability.Scorer) {
	res := s.Evaluate(p.Input())
	p.Tags = res.Tags
	p.CapabilityScore = res.Score
}

// ErrCorrupt marks a stored profile that violates the data model.
var ErrCorrupt = errors.New("corrupt profile")

// Check reports whether a stored profile is well-formed. Search excludes
// profiles that fail it instead of failing the request.
func (p *Profile) Check() error {
	if p.corrupt != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, p.corrupt)
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: empty user id", ErrCorrupt)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrCorrupt, p.Status)
	}
	if p.Location != nil && !p.Location.Valid() {
		return fmt.Errorf("%w: invalid location %s", ErrCorrupt, p.Location)
	}
	for id, level := range p.SkillLevels {
		if !capability.ValidLevel(level) {
			return fmt.Errorf("%w: level %d for %s outside %d..%d",
				ErrCorrupt, level, id, capability.MinLevel, capability.MaxLevel)
		}
	}
	if p.CapabilityScore < 0 || p.CapabilityScore > 100 {
		return fmt.Errorf("%w: capability score %d outside 0..100", ErrCorrupt, p.CapabilityScore)
	}
	return nil
}

// HasSkill reports whether p lists name, compared case-insensitively.
func (p *Profile) HasSkill(name string) bool {
	for _, s := range p.Skills {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// HasTag reports whether p carries tag.
func (p *Profile) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
