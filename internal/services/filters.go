package services

import (
	"github.com/google/uuid"

	"github.com/sahafatech/tawsiya/internal/textutil"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// ScoredCandidate pairs a deduplicated candidate with its blended score
// components through the filter and ranking stages.
type ScoredCandidate struct {
	models.Candidate
	Blend BlendedScore
}

// ApplyFilters enforces the request's hard constraints. It runs after
// blending so diversity was computed over the full candidate pool, and it
// never reorders what it keeps.
func ApplyFilters(scored []ScoredCandidate, filters *models.Filters, viewed map[uuid.UUID]bool) []ScoredCandidate {
	if filters == nil && len(viewed) == 0 {
		return scored
	}

	kept := make([]ScoredCandidate, 0, len(scored))
	for _, sc := range scored {
		if matchesFilters(sc, filters, viewed) {
			kept = append(kept, sc)
		}
	}
	return kept
}

func matchesFilters(sc ScoredCandidate, filters *models.Filters, viewed map[uuid.UUID]bool) bool {
	item := sc.Item
	if item == nil {
		return false
	}

	if filters != nil && filters.ExcludeRead && viewed[sc.ItemID] {
		return false
	}
	if filters == nil {
		return true
	}

	if len(filters.Sections) > 0 && !containsNormalized(filters.Sections, item.Section) {
		return false
	}
	if len(filters.Tags) > 0 && !anyTagMatches(filters.Tags, item.Tags) {
		return false
	}
	if len(filters.Authors) > 0 && !containsNormalized(filters.Authors, item.Author) {
		return false
	}
	if filters.Language != "" && item.Language != filters.Language {
		return false
	}
	if filters.OnlyFeatured && !item.Featured {
		return false
	}
	if filters.PublishedAfter != nil && item.PublishedAt.Before(*filters.PublishedAfter) {
		return false
	}
	if filters.PublishedBefore != nil && item.PublishedAt.After(*filters.PublishedBefore) {
		return false
	}
	if filters.MinReadingTime != nil && item.ReadingTime < *filters.MinReadingTime {
		return false
	}
	if filters.MaxReadingTime != nil && item.ReadingTime > *filters.MaxReadingTime {
		return false
	}
	return true
}

func containsNormalized(values []string, target string) bool {
	normalized := textutil.NormalizeTerm(target)
	for _, v := range values {
		if textutil.NormalizeTerm(v) == normalized {
			return true
		}
	}
	return false
}

func anyTagMatches(wanted, itemTags []string) bool {
	tagSet := make(map[string]bool, len(itemTags))
	for _, t := range itemTags {
		tagSet[textutil.NormalizeTerm(t)] = true
	}
	for _, w := range wanted {
		if tagSet[textutil.NormalizeTerm(w)] {
			return true
		}
	}
	return false
}
