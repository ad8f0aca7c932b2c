// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match holds the identity normalization and similarity helpers
// behind the matching cascade: exact key, normalized DOI, normalized
// title, then fuzzy title.
package match

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultFuzzyThreshold is the minimum TitleRatio for a fuzzy title
// match to count.
const DefaultFuzzyThreshold = 95

// DefaultLengthWindow bounds the rune-length difference between titles
// considered as fuzzy candidates.
const DefaultLengthWindow = 10

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI lowercases a DOI and strips resolver and scheme prefixes
// so "https://doi.org/10.1145/X" and "10.1145/x" compare equal.
func NormalizeDOI(doi string) string {
	s := strings.ToLower(strings.TrimSpace(doi))
	for _, p := range doiPrefixes {
		if strings.HasPrefix(s, p) {
			s = s[len(p):]
			break
		}
	}
	return s
}

// NormalizeID canonicalizes an external identifier such as an arXiv ID.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// NormalizeTitle lowercases a title, folds accents, strips punctuation
// and collapses whitespace.
func NormalizeTitle(title string) string {
	folded := title
	deaccent := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if s, _, err := transform.String(deaccent, title); err == nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TitleRatio returns a 0-100 similarity score between two strings based
// on edit distance over the longer length.
func TitleRatio(a, b string) int {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (longest - d) / longest
}

// WithinLengthWindow reports whether two strings are close enough in
// rune length to be worth a fuzzy comparison.
func WithinLengthWindow(a, b string, window int) bool {
	diff := utf8.RuneCountInString(a) - utf8.RuneCountInString(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}
