package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds a name to the form names are compared in: compatibility
// decomposition, Latin combining marks removed (Indic vowel signs are kept),
// lowercase, punctuation dropped and whitespace collapsed. Quotes are removed
// outright; other punctuation separates words, so "Ravulapalem (APMC)" and
// "ravulapalem apmc" normalize equally.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(isLatinMark)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	folded = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '\'' || r == '"' || r == '`' || r == '’':
			return -1
		case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			return ' '
		default:
			return -1
		}
	}, folded)

	return strings.Join(strings.Fields(folded), " ")
}

func isLatinMark(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
}
