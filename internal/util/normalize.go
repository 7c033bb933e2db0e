package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes free text for matching: it strips diacritics,
// lower-cases and trims surrounding whitespace. It never fails; input that
// cannot be transformed is folded without accent stripping.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.TrimSpace(strings.ToLower(folded))
}

// ContainsAny reports whether normalized text contains any of the given
// normalized tokens.
func ContainsAny(text string, tokens ...string) bool {
	for _, tok := range tokens {
		if tok != "" && strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
