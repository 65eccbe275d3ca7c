package auth

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes and x/crypto refuses to hash it.
	MaxPasswordBytes = 72
	MaxNameLength    = 100
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	namePolicy   = bluemonday.StrictPolicy()
)

func NormalizeEmail(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func ValidEmail(s string) bool {
	return s != "" && emailPattern.MatchString(s)
}

func ValidPassword(s string) bool {
	return len(s) >= MinPasswordLength && len(s) <= MaxPasswordBytes
}

// SanitizeName drops any markup from a display name, trims it and caps it
// at MaxNameLength runes.
func SanitizeName(s string) string {
	s = html.UnescapeString(namePolicy.Sanitize(s))
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > MaxNameLength {
		s = strings.TrimSpace(string(r[:MaxNameLength]))
	}
	return s
}

// SanitizeText is SanitizeName without the length cap, for free-form fields.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(namePolicy.Sanitize(s)))
}
