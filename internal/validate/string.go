// Package validate provides input validation helpers shared by the
// entity services: string constraints, email normalization and the
// field-keyed error map returned on invalid payloads.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmpty             = errors.New("value is empty")
	ErrStringTooShort    = errors.New("value is too short")
	ErrStringTooLong     = errors.New("value is too long")
	ErrInvalidCharacters = errors.New("value contains invalid characters")
)

// StringConstraints defines validation constraints for a string field.
type StringConstraints struct {
	MinLength      int            // minimum rune count (0 = no minimum)
	MaxLength      int            // maximum rune count (0 = no maximum)
	AllowedPattern *regexp.Regexp // optional pattern the whole value must match
	AllowEmpty     bool           // whether empty values pass
	TrimSpace      bool           // trim whitespace before validating
}

// String validates s against the given constraints and returns the
// (optionally trimmed) value.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)
	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}
	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// NameConstraints covers display names: class names, subject names,
// person names.
var NameConstraints = StringConstraints{
	MinLength: 1,
	MaxLength: 120,
	TrimSpace: true,
}

// UsernameConstraints covers login usernames.
var UsernameConstraints = StringConstraints{
	MinLength:      3,
	MaxLength:      64,
	AllowedPattern: regexp.MustCompile(`^[a-zA-Z0-9._\-]+$`),
	TrimSpace:      true,
}
