package util

import (
	"html"
	"regexp"
	"strings"
)

// Input validation patterns. Usernames deliberately allow only a narrow
// character set so they can be embedded in queries and log lines safely.
var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._@-]{3,50}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,6}$`)
)

// IsValidUsername reports whether a username is safe to accept.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// IsValidEmail reports whether an email address is safe to accept.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// SanitizeInput trims and HTML-escapes user-supplied text.
func SanitizeInput(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
