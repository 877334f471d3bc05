package keyword

import (
	"strings"
)

type MatchKind int

const (
	// the token must equal the pattern
	MatchExact MatchKind = iota
	// "*word": the token must end with the pattern
	MatchPrefixWildcard
	// "word*": the token must start with the pattern
	MatchSuffixWildcard
	// "*word*": the token must contain the pattern
	MatchBoth
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchPrefixWildcard:
		return "prefix-wildcard"
	case MatchSuffixWildcard:
		return "suffix-wildcard"
	case MatchBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Splits a raw filter pattern like "*word" in to the bare (normalized) pattern and match kind.
//
// Returns an empty pattern if nothing is left after trimming wildcard markers.
func ParsePattern(raw string) (string, MatchKind) {
	raw = strings.TrimSpace(raw)
	leading := strings.HasPrefix(raw, "*")
	trailing := strings.HasSuffix(raw, "*")
	bare := Slugify(strings.Trim(raw, "*"))
	switch {
	case leading && trailing:
		return bare, MatchBoth
	case leading:
		return bare, MatchPrefixWildcard
	case trailing:
		return bare, MatchSuffixWildcard
	default:
		return bare, MatchExact
	}
}

// Checks a single normalized token against a bare pattern.
func MatchToken(tok, pattern string, kind MatchKind) bool {
	if pattern == "" {
		return false
	}
	switch kind {
	case MatchExact:
		return tok == pattern
	case MatchPrefixWildcard:
		return strings.HasSuffix(tok, pattern)
	case MatchSuffixWildcard:
		return strings.HasPrefix(tok, pattern)
	case MatchBoth:
		return strings.Contains(tok, pattern)
	}
	return false
}

// Helper to check a list of tokens against a pattern, returning true on the first match.
func MatchAny(tokens []string, pattern string, kind MatchKind) bool {
	for _, tok := range tokens {
		if MatchToken(tok, pattern, kind) {
			return true
		}
	}
	return false
}
