package keyword

import (
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical form of message text for equality checks: NFC unicode normalization, lower-case, surrounding whitespace trimmed.
func NormalizeContent(text string) string {
	return strings.TrimSpace(strings.ToLower(norm.NFC.String(text)))
}

// Lower-cases and strips combining marks (accents), so "Fück" and "fuck" compare equal.
//
// Returns the input (lower-cased) if normalization fails.
func FoldText(text string) string {
	// transformers are stateful; this chain must be re-created on every call to be safe for concurrent use
	foldFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lower := strings.ToLower(text)
	out, _, err := transform.String(foldFunc, lower)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		return lower
	}
	return out
}

// Returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
