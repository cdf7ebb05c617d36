package util

import (
	"regexp"
	"strings"
)

// ExcerptMarker ends the excerpt of an article body when present.
const ExcerptMarker = "<!--excerpt-->"

var tagRe = regexp.MustCompile(`<[^>]+>`)

// Excerpt strips tags from the part of s before the excerpt marker and
// truncates the result to length runes. A length of zero disables truncation.
func Excerpt(s string, length int) string {
	if i := strings.Index(s, ExcerptMarker); i >= 0 {
		s = s[:i]
	}
	s = tagRe.ReplaceAllString(s, "")
	if length > 0 {
		if r := []rune(s); len(r) > length {
			return string(r[:length])
		}
	}
	return s
}
