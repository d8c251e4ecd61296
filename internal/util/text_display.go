package util

import (
	"strings"
	"unicode"
)

// DisplaySnippet cleans a chunk of text for API responses, collapsing
// whitespace and truncating to maxRunes at a word boundary when possible.
func DisplaySnippet(s string, maxRunes int) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	cut := maxRunes
	for i := maxRunes; i > maxRunes/2; i-- {
		if unicode.IsSpace(runes[i-1]) {
			cut = i - 1
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "..."
}
