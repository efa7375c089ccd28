package database

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// thaiDigits maps Thai digits U+0E50..U+0E59 to ASCII.
var thaiDigits = runes.Map(func(r rune) rune {
	if r >= '๐' && r <= '๙' {
		return '0' + (r - '๐')
	}
	return r
})

// NormalizeStdID canonicalizes a student id so that ids typed with
// full-width or Thai digits, or with stray spaces, match the stored form.
func NormalizeStdID(s string) string {
	t := transform.Chain(norm.NFKC, width.Narrow, thaiDigits, runes.Remove(runes.Predicate(unicode.IsSpace)))
	result, _, err := transform.String(t, s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.ToUpper(result)
}
