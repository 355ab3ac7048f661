package util

import "strings"

// translationMarkers are suffixes the host UI appends to text it has
// machine-translated, in the locales we have observed so far.
var translationMarkers = []string{
	"(translated)",
	"(übersetzt)",
	"(traducido)",
	"(traduit)",
	"(번역됨)",
	"(翻訳済み)",
}

// TruncateString truncates a string to maxRunes characters (rune-based, not byte-based)
// If truncated, appends "..." to the result
func TruncateString(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// Normalize collapses internal whitespace runs to single spaces, trims the
// ends, and case-folds. "Foo   Bar" and "foo bar" normalize identically.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeDisplay normalizes text read back from the page. On top of
// Normalize it drops a trailing translation marker, so marker-suffixed text
// still compares equal to the plain original.
func NormalizeDisplay(s string) string {
	n := Normalize(s)
	for _, marker := range translationMarkers {
		if trimmed, ok := strings.CutSuffix(n, marker); ok {
			return strings.TrimSpace(trimmed)
		}
	}
	return n
}

// EqualNormalized reports whether live page text and a candidate original are
// the same text modulo whitespace, case and translation markers.
func EqualNormalized(live, candidate string) bool {
	return NormalizeDisplay(live) == Normalize(candidate)
}

// HasNormalizedPrefix reports whether live page text starts with the
// candidate original. Channel descriptions are compared this way because the
// host renders them with trailing metadata the upstream text does not carry.
func HasNormalizedPrefix(live, candidate string) bool {
	c := Normalize(candidate)
	if c == "" {
		return false
	}
	return strings.HasPrefix(Normalize(live), c)
}
