package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)
	nonSlugChars  = regexp.MustCompile(`[^\pL\pN]+`)
)

// Lower-cases, strips combining marks, and re-composes a string, so that "Gdańsk" and "gdansk" compare equal.
func Normalize(text string) string {
	// the transformer is stateful, so it can not be shared between goroutines
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lower := strings.ToLower(text)
	out, _, err := transform.String(normFunc, lower)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		return lower
	}
	return out
}

// Splits free-form message text in to whitespace-delimited tokens.
//
// Punctuation is dropped (so "spam!" yields "spam"), and every token is normalized with Normalize.
func TokenizeText(text string) []string {
	bare := nonTokenChars.ReplaceAllString(text, "")
	return strings.Fields(Normalize(bare))
}

// Takes an arbitrary string and returns a normalized version with all non-letter, non-digit characters removed.
func Slugify(orig string) string {
	return nonSlugChars.ReplaceAllString(Normalize(orig), "")
}
