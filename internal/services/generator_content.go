package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/internal/textutil"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// ContentSimilarityGenerator scores candidates by overlap between the user's
// weighted interests and each item's section, tags, and title terms. With a
// current-item context it pivots to item-to-item similarity against that
// item's category and tag set instead.
type ContentSimilarityGenerator struct {
	db     DatabaseQuerier
	config *config.EngineConfig
	logger *logrus.Logger
}

func NewContentSimilarityGenerator(db DatabaseQuerier, cfg *config.EngineConfig, logger *logrus.Logger) *ContentSimilarityGenerator {
	return &ContentSimilarityGenerator{db: db, config: cfg, logger: logger}
}

func (g *ContentSimilarityGenerator) Name() string {
	return models.AlgorithmContentSimilarity
}

func (g *ContentSimilarityGenerator) Generate(ctx context.Context, input GeneratorInput) ([]models.Candidate, error) {
	if input.Context.CurrentItemID != nil {
		return g.generateFromItem(ctx, input)
	}
	return g.generateFromInterests(ctx, input)
}

// generateFromInterests matches the interest profile against recent active
// content and scores each item by the accumulated weight of matched
// categories and keywords.
func (g *ContentSimilarityGenerator) generateFromInterests(ctx context.Context, input GeneratorInput) ([]models.Candidate, error) {
	categoryWeights := make(map[string]float64)
	keywordWeights := make(map[string]float64)
	for _, interest := range input.Interests {
		switch interest.InterestType {
		case models.InterestTypeCategory:
			categoryWeights[interest.Value] = interest.Weight
		case models.InterestTypeKeyword:
			keywordWeights[interest.Value] = interest.Weight
		}
	}
	// Extra ad-hoc signals sent with the request count at a reduced weight.
	for _, value := range input.Context.UserInterests {
		term := textutil.NormalizeTerm(value)
		if term != "" && keywordWeights[term] == 0 {
			keywordWeights[term] = 0.5
		}
	}
	if len(categoryWeights) == 0 && len(keywordWeights) == 0 {
		return nil, nil
	}

	sections := make([]string, 0, len(categoryWeights))
	for section := range categoryWeights {
		sections = append(sections, section)
	}

	since := time.Now().AddDate(0, 0, -g.config.FreshnessHorizonDays)
	rows, err := g.db.Query(ctx, `
		SELECT id, type, title, section, tags, author, language, reading_time,
		       view_count, like_count, share_count, featured, published_at
		FROM content_items
		WHERE active = true AND published_at >= $1
		  AND (lower(section) = ANY($2) OR tags && $3 OR $4)
		ORDER BY published_at DESC
		LIMIT $5`,
		since, sections, keywordList(keywordWeights), len(sections) == 0,
		input.Limit*g.config.CandidateMultiplier)
	if err != nil {
		return nil, fmt.Errorf("content similarity query failed: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			continue
		}

		score, matchedCategories, matchedKeywords := g.scoreItem(item, categoryWeights, keywordWeights)
		if score <= 0 {
			continue
		}

		candidates = append(candidates, models.Candidate{
			ItemID:   item.ID,
			ItemType: item.Type,
			Score:    score,
			Source:   g.Name(),
			Item:     item,
			Reasons: []models.Reason{{
				Type: models.ReasonContentSimilarity,
				ContentSimilarity: &models.ContentSimilarityReason{
					MatchedCategories: matchedCategories,
					MatchedKeywords:   matchedKeywords,
					OverlapWeight:     score,
				},
			}},
		})
	}

	sortCandidatesByScore(candidates)
	return truncateCandidates(candidates, input.Limit), nil
}

// generateFromItem finds items sharing category or tags with the item the
// user is currently reading.
func (g *ContentSimilarityGenerator) generateFromItem(ctx context.Context, input GeneratorInput) ([]models.Candidate, error) {
	currentID := *input.Context.CurrentItemID

	row := g.db.QueryRow(ctx, `
		SELECT id, type, title, section, tags, author, language, reading_time,
		       view_count, like_count, share_count, featured, published_at
		FROM content_items
		WHERE id = $1`, currentID)
	current, err := scanContentItem(row)
	if err != nil {
		return nil, fmt.Errorf("failed to load current item: %w", err)
	}

	currentTerms := append(textutil.ExtractTerms(current.Title, 10), normalizeAll(current.Tags)...)

	rows, err := g.db.Query(ctx, `
		SELECT id, type, title, section, tags, author, language, reading_time,
		       view_count, like_count, share_count, featured, published_at
		FROM content_items
		WHERE active = true AND id <> $1
		  AND (section = $2 OR tags && $3)
		ORDER BY published_at DESC
		LIMIT $4`,
		currentID, current.Section, normalizeAll(current.Tags),
		input.Limit*g.config.CandidateMultiplier)
	if err != nil {
		return nil, fmt.Errorf("related items query failed: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			continue
		}

		itemTerms := append(textutil.ExtractTerms(item.Title, 10), normalizeAll(item.Tags)...)
		overlap := textutil.TermOverlap(currentTerms, itemTerms)

		var matchedCategories []string
		score := overlap * 0.7
		if item.Section != "" && item.Section == current.Section {
			matchedCategories = append(matchedCategories, item.Section)
			score += 0.3
		}
		if score <= 0 {
			continue
		}

		candidates = append(candidates, models.Candidate{
			ItemID:   item.ID,
			ItemType: item.Type,
			Score:    math.Min(score, 1.0),
			Source:   g.Name(),
			Item:     item,
			Reasons: []models.Reason{{
				Type: models.ReasonContentSimilarity,
				ContentSimilarity: &models.ContentSimilarityReason{
					MatchedCategories: matchedCategories,
					MatchedKeywords:   textutil.SharedTerms(currentTerms, itemTerms, 5),
					OverlapWeight:     overlap,
				},
			}},
		})
	}

	sortCandidatesByScore(candidates)
	return truncateCandidates(candidates, input.Limit), nil
}

// scoreItem accumulates matched interest weights and squashes the sum into
// (0,1].
func (g *ContentSimilarityGenerator) scoreItem(item *models.ContentItem, categoryWeights, keywordWeights map[string]float64) (float64, []string, []string) {
	var raw float64
	var matchedCategories, matchedKeywords []string

	if item.Section != "" {
		if w, ok := categoryWeights[textutil.NormalizeTerm(item.Section)]; ok {
			raw += w
			matchedCategories = append(matchedCategories, item.Section)
		}
	}

	itemTerms := make(map[string]bool)
	for _, tag := range item.Tags {
		itemTerms[textutil.NormalizeTerm(tag)] = true
	}
	for _, term := range textutil.ExtractTerms(item.Title, 10) {
		itemTerms[term] = true
	}
	for term := range itemTerms {
		if w, ok := keywordWeights[term]; ok {
			raw += w * 0.6
			matchedKeywords = append(matchedKeywords, term)
		}
	}

	if raw == 0 {
		return 0, nil, nil
	}
	sort.Strings(matchedKeywords)
	// 1 - e^-x keeps strongly matching items from saturating identically.
	return 1 - math.Exp(-raw), matchedCategories, matchedKeywords
}

func keywordList(weights map[string]float64) []string {
	keywords := make([]string, 0, len(weights))
	for keyword := range weights {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)
	return keywords
}

func normalizeAll(values []string) []string {
	normalized := make([]string, 0, len(values))
	for _, v := range values {
		if term := textutil.NormalizeTerm(v); term != "" {
			normalized = append(normalized, term)
		}
	}
	return normalized
}
