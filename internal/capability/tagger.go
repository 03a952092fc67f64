package capability

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yml
var defaultRulesYAML []byte

// Rules is the YAML document that drives tag derivation.
type Rules struct {
	Categories map[string]CategoryRule `yaml:"categories"`
	LevelRules []LevelRule             `yaml:"level_rules"`
}

// CategoryRule lists the keywords, per language, that produce a tag.
type CategoryRule struct {
	Keywords map[string][]string `yaml:"keywords"`
}

// LevelRule produces Tag when the graded skill is at or above MinLevel.
type LevelRule struct {
	Skill    SkillID `yaml:"skill"`
	MinLevel int     `yaml:"min_level"`
	Tag      string  `yaml:"tag"`
}

// ParseRules decodes and validates a rules document.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse tag rules: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadRules reads rules from path. An empty path returns the embedded defaults.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return ParseRules(defaultRulesYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tag rules %s: %w", path, err)
	}
	return ParseRules(data)
}

func (r *Rules) validate() error {
	if len(r.Categories) == 0 && len(r.LevelRules) == 0 {
		return fmt.Errorf("tag rules: no categories or level rules defined")
	}
	for name, c := range r.Categories {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("tag rules: empty category name")
		}
		n := 0
		for _, kws := range c.Keywords {
			for _, kw := range kws {
				if strings.TrimSpace(kw) == "" {
					return fmt.Errorf("tag rules: category %q has an empty keyword", name)
				}
				n++
			}
		}
		if n == 0 {
			return fmt.Errorf("tag rules: category %q has no keywords", name)
		}
	}
	for i, lr := range r.LevelRules {
		if !lr.Skill.Valid() {
			return fmt.Errorf("tag rules: level rule %d: unknown skill %q", i, lr.Skill)
		}
		if lr.MinLevel < 1 || lr.MinLevel > MaxLevel {
			return fmt.Errorf("tag rules: level rule %d: min_level %d outside 1..%d", i, lr.MinLevel, MaxLevel)
		}
		if strings.TrimSpace(lr.Tag) == "" {
			return fmt.Errorf("tag rules: level rule %d: empty tag", i)
		}
	}
	return nil
}

// Tagger derives tags from profile text and skill levels.
// It is immutable after construction and safe for concurrent use.
type Tagger struct {
	categories []compiledCategory
	levelRules []LevelRule
	available  []string
}

type compiledCategory struct {
	tag      string
	keywords []string
}

// NewTagger compiles rules into a Tagger. A nil rules value uses the embedded defaults.
func NewTagger(rules *Rules) (*Tagger, error) {
	if rules == nil {
		var err error
		rules, err = LoadRules("")
		if err != nil {
			return nil, err
		}
	}

	t := &Tagger{levelRules: append([]LevelRule(nil), rules.LevelRules...)}
	seen := make(map[string]bool)

	names := make([]string, 0, len(rules.Categories))
	for name := range rules.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cat := compiledCategory{tag: name}
		for _, kws := range rules.Categories[name].Keywords {
			for _, kw := range kws {
				cat.keywords = append(cat.keywords, strings.ToLower(strings.TrimSpace(kw)))
			}
		}
		t.categories = append(t.categories, cat)
		seen[name] = true
	}
	for _, lr := range t.levelRules {
		seen[lr.Tag] = true
	}
	for tag := range seen {
		t.available = append(t.available, tag)
	}
	sort.Strings(t.available)
	return t, nil
}

// Input is the part of a profile that tags and score derive from.
type Input struct {
	Education   Education
	Skills      []string
	FreeText    string
	SkillLevels Levels
}

// Tags returns the sorted, de-duplicated tags for in. Education never
// contributes tags, and every rule only adds tags as skills, text or levels
// grow.
func (t *Tagger) Tags(in Input) []string {
	// Each field is matched on its own so a keyword never spans two skills.
	fields := make([]string, 0, len(in.Skills)+1)
	for _, s := range in.Skills {
		fields = append(fields, strings.ToLower(s))
	}
	fields = append(fields, strings.ToLower(in.FreeText))

	set := make(map[string]bool)
	for _, c := range t.categories {
		if matchesAny(fields, c.keywords) {
			set[c.tag] = true
		}
	}
	for _, lr := range t.levelRules {
		if in.SkillLevels.Get(lr.Skill) >= lr.MinLevel {
			set[lr.Tag] = true
		}
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func matchesAny(fields, keywords []string) bool {
	for _, f := range fields {
		for _, kw := range keywords {
			if strings.Contains(f, kw) {
				return true
			}
		}
	}
	return false
}

// AvailableTags returns every tag the rules can produce, sorted.
func (t *Tagger) AvailableTags() []string {
	return append([]string(nil), t.available...)
}
