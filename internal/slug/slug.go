// Package slug normalizes human-readable names into channel identifiers.
package slug

import (
	"regexp"
	"strings"
)

var (
	disallowed = regexp.MustCompile(`[^\w\t\n\v\f\r\p{Z}-]`)
	separators = regexp.MustCompile(`[\t\n\v\f\r\p{Z}_-]+`)
)

// Make lowercases text, drops everything but ASCII letters, digits, whitespace
// (Unicode spaces included), underscores and hyphens, and collapses separator
// runs into single hyphens.
// Make(Make(x)) == Make(x).
func Make(text string) string {
	s := strings.TrimSpace(strings.ToLower(text))
	s = disallowed.ReplaceAllString(s, "")
	s = separators.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
