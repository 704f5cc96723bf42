// Package normalize holds the canonical forms used for storage and comparison.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// maxDisplayName caps display names stored on users.
const maxDisplayName = 100

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// ValidEmail reports whether e, once normalized, looks like an address.
func ValidEmail(e string) bool {
	e = Email(e)
	if e == "" || len(e) > 254 {
		return false
	}
	return emailRegex.MatchString(e)
}

// Content trims message text and escapes HTML so stored content is safe
// to render verbatim.
func Content(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// DisplayName trims a name, drops control characters and caps its length.
func DisplayName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	runes := []rune(name)
	if len(runes) > maxDisplayName {
		name = string(runes[:maxDisplayName])
	}
	return name
}

// PairKey returns the order-independent key for two identifiers.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
