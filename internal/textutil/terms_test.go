package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTerm(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Economy", "economy"},
		{"  Café ", "cafe"},
		{"أخبار", "اخبار"},
		{"مباراة", "مباراه"},
		{"الكبرى", "الكبري"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeTerm(tt.in), tt.in)
	}
}

func TestExtractTerms(t *testing.T) {
	terms := ExtractTerms("The inflation report and the markets", 0)
	assert.Equal(t, []string{"inflation", "report", "markets"}, terms)
}

func TestExtractTermsDedupesAndCaps(t *testing.T) {
	terms := ExtractTerms("gold gold silver bronze copper", 3)
	assert.Equal(t, []string{"gold", "silver", "bronze"}, terms)
}

func TestExtractTermsArabicStopWords(t *testing.T) {
	terms := ExtractTerms("ارتفاع الأسعار في الأسواق", 0)
	assert.NotContains(t, terms, "في")
	assert.Contains(t, terms, "الاسعار")
}

func TestTermOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, TermOverlap([]string{"a1", "b1"}, []string{"a1", "b1"}), 1e-9)
	assert.InDelta(t, 1.0/3.0, TermOverlap([]string{"a1", "b1"}, []string{"b1", "c1"}), 1e-9)
	assert.Zero(t, TermOverlap([]string{"a1"}, []string{"b1"}))
	assert.Zero(t, TermOverlap(nil, []string{"b1"}))
}

func TestSharedTerms(t *testing.T) {
	shared := SharedTerms([]string{"Economy", "markets"}, []string{"economy", "sports"}, 5)
	assert.Equal(t, []string{"economy"}, shared)
}
