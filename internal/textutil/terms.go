// Package textutil provides the term extraction and normalization helpers the
// ranking pipeline uses for keyword matching. Normalization is deliberately
// aggressive: diacritics are stripped and Arabic letter variants are unified
// so that keyword interests match regardless of orthography.
package textutil

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var arabicVariants = strings.NewReplacer(
	"أ", "ا", // alef with hamza above
	"إ", "ا", // alef with hamza below
	"آ", "ا", // alef with madda
	"ة", "ه", // ta marbuta -> ha
	"ى", "ي", // alef maqsura -> ya
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "has": true,
	"في": true, "من": true, "على": true, "الى": true, "إلى": true,
	"عن": true, "مع": true, "هذا": true, "هذه": true, "التي": true,
	"الذي": true, "ان": true, "أن": true, "او": true, "أو": true,
}

// NormalizeTerm lowercases, decomposes and strips combining marks (Latin
// diacritics and Arabic tashkeel), then unifies Arabic letter variants.
func NormalizeTerm(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		normalized = strings.ToLower(strings.TrimSpace(s))
	}
	return arabicVariants.Replace(normalized)
}

// ExtractTerms tokenizes text into normalized terms, dropping stop words and
// tokens shorter than two runes. At most max terms are returned; max <= 0
// means no limit.
func ExtractTerms(text string, max int) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		term := NormalizeTerm(f)
		if len([]rune(term)) < 2 || stopWords[term] || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
		if max > 0 && len(terms) >= max {
			break
		}
	}
	return terms
}

// TermOverlap returns the Jaccard overlap of the two term sets in [0,1].
func TermOverlap(a, b []string) float64 {
	setA := termSet(a)
	setB := termSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for t := range setB {
		if setA[t] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

// SharedTerms returns up to max terms present in both sets, sorted.
func SharedTerms(a, b []string, max int) []string {
	setA := termSet(a)
	var shared []string
	seen := make(map[string]bool)
	for _, t := range b {
		term := NormalizeTerm(t)
		if setA[term] && !seen[term] {
			seen[term] = true
			shared = append(shared, term)
		}
	}
	sort.Strings(shared)
	if max > 0 && len(shared) > max {
		shared = shared[:max]
	}
	return shared
}

func termSet(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		if term := NormalizeTerm(t); term != "" {
			set[term] = true
		}
	}
	return set
}
