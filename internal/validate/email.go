package validate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidEmail is returned when an email address is malformed.
var ErrInvalidEmail = errors.New("invalid email format")

// emailPattern matches the common email shapes we accept. Stricter
// verification happens when mail is actually sent.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email validates an email address and returns it trimmed and
// lowercased.
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmpty
	}
	// RFC 5321 length limits.
	if len(email) > 254 {
		return "", ErrStringTooLong
	}
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || len(local) > 64 || len(domain) > 255 {
		return "", ErrInvalidEmail
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") || strings.Contains(email, "..") {
		return "", ErrInvalidEmail
	}
	return email, nil
}
