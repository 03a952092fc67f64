// Package capability derives tags and the capability score from a civilian's
// self-reported profile. Both are pure functions of the profile fields.
package capability

// Education is an ordinal education tier.
type Education string

// Education tiers, lowest first.
const (
	EducationNone           Education = "none"
	EducationPrimary        Education = "primary"
	EducationLowerSecondary Education = "lower_secondary"
	EducationUpperSecondary Education = "upper_secondary"
	EducationVocational     Education = "vocational"
	EducationBachelor       Education = "bachelor"
	EducationMaster         Education = "master"
	EducationDoctoral       Education = "doctoral"
	EducationOther          Education = "other"
)

// MaxEducationRank is the rank of the highest tier.
const MaxEducationRank = 7

var educationRanks = map[Education]int{
	EducationNone:           0,
	EducationPrimary:        1,
	EducationLowerSecondary: 2,
	EducationUpperSecondary: 3,
	EducationVocational:     4,
	EducationBachelor:       5,
	EducationMaster:         6,
	EducationDoctoral:       7,
	EducationOther:          1,
}

// Rank returns the ordinal rank of e. Unknown values rank 0.
func (e Education) Rank() int {
	return educationRanks[e]
}

// Valid reports whether e is a known tier.
func (e Education) Valid() bool {
	_, ok := educationRanks[e]
	return ok
}

// EducationLevels returns all known tiers in rank order, with other last.
func EducationLevels() []Education {
	return []Education{
		EducationNone, EducationPrimary, EducationLowerSecondary, EducationUpperSecondary,
		EducationVocational, EducationBachelor, EducationMaster, EducationDoctoral, EducationOther,
	}
}

// SkillID identifies one row of the graded skill matrix.
type SkillID string

// Graded skill ids.
const (
	SkillDronePiloting    SkillID = "drone_piloting"
	SkillRFRadio          SkillID = "rf_radio"
	Skill3DPrinting       SkillID = "3d_printing"
	SkillWeldingMetalwork SkillID = "welding_metalwork"
	SkillElectricalWork   SkillID = "electrical_work"
)

// SkillIDs is the fixed set of graded skills.
var SkillIDs = []SkillID{
	SkillDronePiloting,
	SkillRFRadio,
	Skill3DPrinting,
	SkillWeldingMetalwork,
	SkillElectricalWork,
}

// Valid reports whether id is one of SkillIDs.
func (id SkillID) Valid() bool {
	for _, s := range SkillIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Level bounds for graded skills. Level 0 means no claim.
const (
	MinLevel = 0
	MaxLevel = 5
)

// ValidLevel reports whether level is within [MinLevel, MaxLevel].
func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}

// Levels maps graded skill ids to levels. Absent ids are level 0.
type Levels map[SkillID]int

// Get returns the level for id, 0 when absent.
func (l Levels) Get(id SkillID) int {
	if l == nil {
		return 0
	}
	return l[id]
}

// Clone returns a copy of l.
func (l Levels) Clone() Levels {
	if l == nil {
		return nil
	}
	out := make(Levels, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}
