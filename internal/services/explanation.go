package services

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/pkg/models"
)

// ExplanationService turns the structured reasons attached to a
// recommendation into human-readable why/how text. Explanations are best
// effort and never fail the request; a recommendation without usable reasons
// gets a generic fallback.
type ExplanationService struct {
	logger *logrus.Logger
}

func NewExplanationService(logger *logrus.Logger) *ExplanationService {
	return &ExplanationService{logger: logger}
}

// Explain builds explanations for a ranked batch in place.
func (s *ExplanationService) Explain(recommendations []models.Recommendation) {
	for i := range recommendations {
		recommendations[i].Explanations = s.explainOne(&recommendations[i], recommendations)
	}
}

func (s *ExplanationService) explainOne(rec *models.Recommendation, batch []models.Recommendation) *models.Explanations {
	var why []string
	var how []string

	for _, reason := range rec.Reasons {
		switch reason.Type {
		case models.ReasonContentSimilarity:
			if r := reason.ContentSimilarity; r != nil {
				if len(r.MatchedCategories) > 0 {
					why = append(why, fmt.Sprintf("it covers %s, a topic you follow", joinNatural(r.MatchedCategories)))
				}
				if len(r.MatchedKeywords) > 0 {
					why = append(why, fmt.Sprintf("it mentions %s", joinNatural(r.MatchedKeywords)))
				}
				how = append(how, "matched against your reading interests")
			}
		case models.ReasonCollaborative:
			if r := reason.Collaborative; r != nil {
				why = append(why, fmt.Sprintf("%d readers with similar habits engaged with it", r.SimilarUserCount))
				how = append(how, "compared your history with readers like you")
			}
		case models.ReasonTrending:
			if r := reason.Trending; r != nil {
				if r.Category != "" {
					why = append(why, fmt.Sprintf("it is trending in %s right now", r.Category))
				} else {
					why = append(why, "it is trending right now")
				}
				how = append(how, "tracked recent engagement velocity")
			}
		case models.ReasonPopularity:
			if r := reason.Popularity; r != nil {
				why = append(why, fmt.Sprintf("it is widely read, with %d views", r.Views))
				how = append(how, "ranked by overall popularity")
			}
		}
	}

	if len(why) == 0 {
		why = append(why, "it matches what readers are engaging with")
		how = append(how, "ranked by the recommendation engine")
	}

	return &models.Explanations{
		Why:          capitalizeAll(dedupeStrings(why)),
		How:          capitalizeAll(dedupeStrings(how)),
		Alternatives: s.alternatives(rec, batch),
	}
}

// alternatives names up to two other high-ranked items from the same batch in
// different categories.
func (s *ExplanationService) alternatives(rec *models.Recommendation, batch []models.Recommendation) []string {
	var category string
	if rec.Item != nil {
		category = rec.Item.PrimaryCategory()
	}

	var alternatives []string
	for _, other := range batch {
		if other.ItemID == rec.ItemID || other.Item == nil {
			continue
		}
		if other.Item.PrimaryCategory() == category {
			continue
		}
		alternatives = append(alternatives, other.Item.Title)
		if len(alternatives) == 2 {
			break
		}
	}
	return alternatives
}

func joinNatural(parts []string) string {
	parts = dedupeStrings(parts)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func capitalizeAll(values []string) []string {
	capitalized := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			capitalized[i] = v
			continue
		}
		capitalized[i] = strings.ToUpper(v[:1]) + v[1:]
	}
	return capitalized
}
