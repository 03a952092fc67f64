// Package privacy decides whether a civilian's identifying fields may be
// shown to a requester and builds the redacted detail payload.
//
// Every detail response goes through Render; no other code path strips or
// reveals PII.
package privacy

import (
	"time"

	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/capability"
	"github.com/onnwee/civitas/internal/civilian"
	"github.com/onnwee/civitas/internal/geo"
)

// State is the visibility of a civilian's PII for one requester.
type State int

// States.
const (
	Hidden State = iota
	Revealed
)

func (s State) String() string {
	if s == Revealed {
		return "revealed"
	}
	return "hidden"
}

// Decide returns the PII state for requester viewing p.
//
// A civilian viewing their own profile always sees everything. Authorities
// see PII only while the civilian is allocated. Everyone else sees nothing.
func Decide(requester auth.Requester, p *civilian.Profile) State {
	if requester.IsSelf(p.UserID) {
		return Revealed
	}
	if requester.IsAuthority() && p.Status == civilian.StatusAllocated {
		return Revealed
	}
	return Hidden
}

// UserView is the identity part of a detail payload. Hidden fields are null.
type UserView struct {
	UserID   string   `json:"user_id"`
	FullName *string  `json:"full_name"`
	Address  *string  `json:"address"`
	DOB      *string  `json:"dob"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`

	// ApproximateLocation is the coarse display point and is never PII.
	ApproximateLocation *geo.Point `json:"approximate_location,omitempty"`
}

// ProfileView is the capability part of a detail payload.
type ProfileView struct {
	EducationLevel  capability.Education  `json:"education_level"`
	Industry        string                `json:"industry,omitempty"`
	Skills          []string              `json:"skills"`
	FreeText        string                `json:"free_text,omitempty"`
	SkillLevels     capability.Levels     `json:"skill_levels"`
	Resources       []civilian.Resource   `json:"resources"`
	Availability    civilian.Availability `json:"availability"`
	CapabilityScore int                   `json:"capability_score"`
	Tags            []string              `json:"tags"`
	Status          civilian.Status       `json:"status"`
	LastUpdated     time.Time             `json:"last_updated"`
}

// Detail is the payload returned for one civilian.
type Detail struct {
	User        UserView    `json:"user"`
	Profile     ProfileView `json:"profile"`
	PIIRevealed bool        `json:"pii_revealed"`
}

// Render builds the detail payload for requester, redacting PII unless
// Decide returns Revealed.
func Render(requester auth.Requester, p *civilian.Profile) Detail {
	state := Decide(requester, p)

	d := Detail{
		User: UserView{UserID: p.UserID},
		Profile: ProfileView{
			EducationLevel:  p.Education,
			Industry:        p.Industry,
			Skills:          nonNil(p.Skills),
			FreeText:        p.FreeText,
			SkillLevels:     p.SkillLevels.Clone(),
			Resources:       append([]civilian.Resource{}, p.Resources...),
			Availability:    p.Availability,
			CapabilityScore: p.CapabilityScore,
			Tags:            nonNil(p.Tags),
			Status:          p.Status,
			LastUpdated:     p.LastUpdated,
		},
		PIIRevealed: state == Revealed,
	}
	if d.Profile.SkillLevels == nil {
		d.Profile.SkillLevels = capability.Levels{}
	}

	if p.Location != nil {
		coarse := geo.Coarsen(*p.Location)
		d.User.ApproximateLocation = &coarse
	}

	if state != Revealed {
		return d
	}

	fullName := p.PII.FullName
	address := p.PII.Address
	d.User.FullName = &fullName
	d.User.Address = &address
	if p.PII.DOB != nil {
		dob := p.PII.DOB.Format(time.DateOnly)
		d.User.DOB = &dob
	}
	if p.Location != nil {
		lat, lon := p.Location.Lat, p.Location.Lon
		d.User.Lat = &lat
		d.User.Lon = &lon
	}
	return d
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
