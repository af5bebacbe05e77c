package services

import (
	"math"
	"time"

	"github.com/sahafatech/tawsiya/internal/textutil"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// ScoreBlender reweights generator scores with freshness, diversity, and
// personalization components. Blending is deterministic: the same candidate
// set and factors always produce the same scores.
type ScoreBlender struct {
	freshnessHorizonDays int
}

func NewScoreBlender(freshnessHorizonDays int) *ScoreBlender {
	if freshnessHorizonDays <= 0 {
		freshnessHorizonDays = 30
	}
	return &ScoreBlender{freshnessHorizonDays: freshnessHorizonDays}
}

// BlendFactors are the request-supplied mixing weights. When diversity and
// freshness together exceed 1 they are scaled down proportionally so the base
// score's share never goes negative.
type BlendFactors struct {
	Diversity       float64
	Freshness       float64
	Personalization float64
}

func (f BlendFactors) normalized() BlendFactors {
	sum := f.Diversity + f.Freshness
	if sum > 1 {
		f.Diversity /= sum
		f.Freshness /= sum
	}
	return f
}

// BlendedScore carries the final score and the component values that went
// into it, kept for persistence and explanations.
type BlendedScore struct {
	Final           float64
	Freshness       float64
	Diversity       float64
	Personalization float64
}

// Blend scores every candidate against the full set. Diversity is computed
// relative to the whole batch, so this runs before any filtering or
// truncation.
func (b *ScoreBlender) Blend(
	candidates []models.Candidate,
	factors BlendFactors,
	interests []models.UserInterest,
	behavior *models.UserBehaviorSummary,
	now time.Time,
) []BlendedScore {
	factors = factors.normalized()

	categoryCounts := make(map[string]int, len(candidates))
	for _, c := range candidates {
		if c.Item != nil {
			categoryCounts[c.Item.PrimaryCategory()]++
		}
	}

	hasProfile := len(interests) > 0 || (behavior != nil && !behavior.InsufficientData)

	scores := make([]BlendedScore, len(candidates))
	for i, c := range candidates {
		freshness := b.freshnessScore(c.Item, now)
		diversity := diversityScore(c, candidates, categoryCounts)

		adjusted := c.Score*(1-factors.Diversity-factors.Freshness) +
			diversity*factors.Diversity +
			freshness*factors.Freshness

		score := BlendedScore{
			Final:     adjusted,
			Freshness: freshness,
			Diversity: diversity,
		}

		if hasProfile && factors.Personalization > 0 {
			personalization := personalizationScore(c.Item, interests, behavior)
			score.Personalization = personalization
			score.Final = adjusted*(1-factors.Personalization) +
				personalization*factors.Personalization
		}

		score.Final = clamp01(score.Final)
		scores[i] = score
	}
	return scores
}

// freshnessScore decays linearly from 1 at publication to 0 at the horizon.
func (b *ScoreBlender) freshnessScore(item *models.ContentItem, now time.Time) float64 {
	if item == nil || item.PublishedAt.IsZero() {
		return 0
	}
	days := now.Sub(item.PublishedAt).Hours() / 24
	return math.Max(0, 1-days/float64(b.freshnessHorizonDays))
}

// diversityScore rewards items that differ from the rest of the batch. It
// averages a category rarity component (how little of the batch shares the
// item's primary category) with a tag distinctiveness component.
func diversityScore(c models.Candidate, all []models.Candidate, categoryCounts map[string]int) float64 {
	if c.Item == nil || len(all) <= 1 {
		return 0.5
	}

	sameCategory := categoryCounts[c.Item.PrimaryCategory()]
	categoryRarity := 1 - float64(sameCategory)/float64(len(all))

	var overlapSum float64
	var compared int
	for _, other := range all {
		if other.ItemID == c.ItemID || other.Item == nil {
			continue
		}
		overlapSum += textutil.TermOverlap(c.Item.Tags, other.Item.Tags)
		compared++
	}
	tagDistinctiveness := 1.0
	if compared > 0 {
		tagDistinctiveness = 1 - overlapSum/float64(compared)
	}

	return (categoryRarity + tagDistinctiveness) / 2
}

// personalizationScore weights interest match at 0.5, reading-time fit at
// 0.3, and favorite-section match at 0.2, capped at 1.
func personalizationScore(item *models.ContentItem, interests []models.UserInterest, behavior *models.UserBehaviorSummary) float64 {
	if item == nil {
		return 0
	}

	var score float64

	var interestMatch float64
	section := textutil.NormalizeTerm(item.Section)
	itemTerms := textutil.ExtractTerms(item.Title, 10)
	itemTerms = append(itemTerms, item.Tags...)
	for _, interest := range interests {
		switch interest.InterestType {
		case models.InterestTypeCategory:
			if interest.Value == section {
				interestMatch = math.Max(interestMatch, interest.Weight)
			}
		case models.InterestTypeKeyword:
			for _, term := range itemTerms {
				if textutil.NormalizeTerm(term) == interest.Value {
					interestMatch = math.Max(interestMatch, interest.Weight*0.8)
				}
			}
		}
	}
	score += 0.5 * interestMatch

	if behavior != nil && !behavior.InsufficientData {
		if behavior.AvgReadingTime > 0 && item.ReadingTime > 0 {
			diff := math.Abs(float64(item.ReadingTime) - behavior.AvgReadingTime)
			score += 0.3 * math.Max(0, 1-diff/behavior.AvgReadingTime)
		}
		for _, preferred := range behavior.PreferredCategories {
			if textutil.NormalizeTerm(preferred) == section {
				score += 0.2
				break
			}
		}
	}

	return math.Min(score, 1.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
