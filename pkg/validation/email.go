package validation

import (
	"regexp"
	"strings"
)

// local-part @ domain, with the domain carrying at least one dot
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// IsValidEmail reports whether email has a plausible address shape.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 {
		return false
	}
	if !emailRegex.MatchString(email) {
		return false
	}
	local, _, _ := strings.Cut(email, "@")
	return !strings.Contains(local, "..")
}

// NormalizeEmail is the canonical form used as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
