package validate

import (
	"fmt"
	"sort"
	"strings"
)

// FieldErrors maps an input field name to a human-readable message. A
// non-empty map means the payload failed validation and the request
// should be rejected without touching storage.
type FieldErrors map[string]string

// Error implements the error interface with a stable, sorted rendering.
func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", f, fe[f])
	}
	return b.String()
}

// Add records a message for a field, keeping only the first message per
// field.
func (fe FieldErrors) Add(field, message string) {
	if _, ok := fe[field]; !ok {
		fe[field] = message
	}
}

// OrNil returns the map as an error, or nil when no field failed.
func (fe FieldErrors) OrNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}
