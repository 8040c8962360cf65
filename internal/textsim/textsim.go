// Package textsim provides the string folding and similarity scoring shared by
// vocabulary matching and duplicate detection.
package textsim

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var letterReplacer = strings.NewReplacer("æ", "ae", "Æ", "ae", "ø", "o", "Ø", "o", "ß", "ss")

// Fold lowercases value, strips diacritics and reduces punctuation to single spaces.
func Fold(value string) string {
	value = letterReplacer.Replace(strings.ToLower(value))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, value)
	if err != nil {
		stripped = value
	}

	var b strings.Builder
	space := false
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}

// Key folds value and removes every separator, so "El-Kontroll" and "elkontroll" agree.
func Key(value string) string {
	return strings.ReplaceAll(Fold(value), " ", "")
}

// Similarity returns 1 minus the Levenshtein distance normalized by the longer input.
// Identical inputs score 1 and two empty inputs score 0.
func Similarity(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	distance := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}
