package tracker

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removeDiacritics removes diacritical marks from a string.
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeLabel normalizes an emotion label for comparison against the
// configured label set (lowercase, trimmed, no diacritics).
func NormalizeLabel(label string) string {
	label = removeDiacritics(label)
	label = strings.ToLower(strings.TrimSpace(label))
	return label
}
