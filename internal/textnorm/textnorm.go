// Package textnorm folds chat input into a comparable form and matches it
// against declarative phrase tables.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, strips diacritics and collapses punctuation and
// whitespace to single spaces. "Même adresse !" becomes "meme adresse".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.ToLower(stripped)

	var b strings.Builder
	b.Grow(len(stripped))
	space := true
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens splits folded text into words.
func Tokens(s string) []string {
	return strings.Fields(Fold(s))
}

// ContainsPhrase reports whether the folded phrase occurs in folded text on
// word boundaries, so "non" does not match "nonante".
func ContainsPhrase(folded, phrase string) bool {
	p := Fold(phrase)
	if p == "" {
		return false
	}
	padded := " " + folded + " "
	return strings.Contains(padded, " "+p+" ")
}

// ContainsAny reports whether any phrase occurs in folded text.
func ContainsAny(folded string, phrases []string) bool {
	for _, p := range phrases {
		if ContainsPhrase(folded, p) {
			return true
		}
	}
	return false
}

// HasStem reports whether any word of folded text begins with stem.
// It is used for stems such as "communic" that cover several word forms.
func HasStem(folded, stem string) bool {
	for _, w := range strings.Fields(folded) {
		if strings.HasPrefix(w, stem) {
			return true
		}
	}
	return false
}
