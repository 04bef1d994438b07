// Package normalize canonicalizes free-text bank descriptions for matching.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Case selects the letter case of normalized output.
type Case int

const (
	// Upper is the canonical case used by every matcher.
	Upper Case = iota
	// Lower is kept for callers that display or key on lowercase text.
	Lower
)

// separators collapse to a single space before other punctuation is dropped.
const separators = "-_/|·•"

// Text returns s with diacritics stripped, separators and punctuation turned into
// spaces, whitespace collapsed and trimmed, and letters folded to the requested case.
// It never fails; empty input yields "".
func Text(s string, c Case) string {
	if s == "" {
		return ""
	}

	s = stripMarks(s)

	if c == Lower {
		s = strings.ToLower(s)
	} else {
		s = strings.ToUpper(s)
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(separators, r):
			return ' '
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return ' '
		}
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// Canonical is Text in the canonical upper case.
func Canonical(s string) string {
	return Text(s, Upper)
}

// Words returns the first n canonical words of s joined by single spaces.
func Words(s string, n int) string {
	fields := strings.Fields(Canonical(s))
	if n > 0 && len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

// Tokens returns the canonical words of s as a set.
func Tokens(s string) map[string]struct{} {
	fields := strings.Fields(Canonical(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		// Invalid UTF-8 survives as-is; later steps replace unknown runes with spaces.
		return s
	}
	return out
}
