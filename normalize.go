package citybed

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// isPlain reports whether r belongs to the plain word set kept by
// stripSpecial: letters, combining marks, digits and the ASCII space.
func isPlain(r rune) bool {
	return r == ' ' || unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r)
}

// stripSpecial removes every rune outside the plain word set.
func stripSpecial(s string) string {
	return strings.Map(func(r rune) rune {
		if isPlain(r) {
			return r
		}
		return -1
	}, s)
}

// foldASCII rewrites s in its closest ASCII form. Diacritics are removed
// first so decomposable Latin letters keep their base letter; what remains
// goes through unidecode's transliteration tables.
func foldASCII(s string) string {
	// transform.Chain is stateful, build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return unidecode.Unidecode(s)
}

// normalizeName prepares a name or a query term for comparison. Query terms
// and candidate names must go through the same function.
func normalizeName(s string, convert bool) string {
	s = stripSpecial(toLower(norm.NFC.String(s)))
	if convert {
		s = stripSpecial(toLower(foldASCII(s)))
	}
	return strings.Join(strings.Fields(s), " ")
}
