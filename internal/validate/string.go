// Package validate provides input validation and normalisation for the
// free-form text fields civilians and authorities submit.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String validation errors.
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // minimum rune count (0 = no minimum)
	MaxLength      int            // maximum rune count (0 = no maximum)
	AllowedPattern *regexp.Regexp // optional pattern the whole value must match
	AllowEmpty     bool           // whether "" is accepted
	TrimSpace      bool           // trim leading and trailing whitespace first
	CollapseSpace  bool           // collapse internal whitespace runs to one space
}

// String validates s against c and returns the normalised value.
func String(s string, c StringConstraints) (string, error) {
	if c.CollapseSpace {
		s = strings.Join(strings.Fields(s), " ")
	} else if c.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !c.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidCharacters)
	}
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return "", fmt.Errorf("%w: control character", ErrInvalidCharacters)
		}
	}

	length := utf8.RuneCountInString(s)
	if c.MinLength > 0 && length < c.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, c.MinLength)
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, c.MaxLength)
	}

	if c.AllowedPattern != nil && !c.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}
	return s, nil
}

var missionCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-\.]*$`)

// MissionCode validates a mission code: 1-64 characters of letters, digits,
// dash, underscore and period, starting with a letter or digit.
func MissionCode(code string) (string, error) {
	return String(code, StringConstraints{
		MinLength:      1,
		MaxLength:      64,
		AllowedPattern: missionCodePattern,
		TrimSpace:      true,
	})
}

// SkillName validates a free-form skill name: 1-100 characters, whitespace collapsed.
func SkillName(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength:     1,
		MaxLength:     100,
		CollapseSpace: true,
	})
}

// PersonName validates an optional full name: at most 200 characters.
func PersonName(name string) (string, error) {
	return String(name, StringConstraints{
		MaxLength:     200,
		AllowEmpty:    true,
		CollapseSpace: true,
	})
}

// Address validates an optional postal address: at most 500 characters.
func Address(addr string) (string, error) {
	return String(addr, StringConstraints{
		MaxLength:  500,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// FreeText validates an optional free-text description: at most 5000 characters.
func FreeText(text string) (string, error) {
	return String(text, StringConstraints{
		MaxLength:  5000,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// Label validates a short optional label such as an industry or resource
// category: at most 100 characters, whitespace collapsed.
func Label(s string) (string, error) {
	return String(s, StringConstraints{
		MaxLength:     100,
		AllowEmpty:    true,
		CollapseSpace: true,
	})
}
