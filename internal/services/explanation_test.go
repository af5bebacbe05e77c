package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahafatech/tawsiya/pkg/models"
)

func TestExplainFromReasons(t *testing.T) {
	svc := NewExplanationService(testLogger())

	item := blendItem("economy", []string{"markets"}, time.Now())
	recommendations := []models.Recommendation{{
		ID:     uuid.New(),
		ItemID: item.ID,
		Item:   item,
		Reasons: []models.Reason{
			{
				Type: models.ReasonContentSimilarity,
				ContentSimilarity: &models.ContentSimilarityReason{
					MatchedCategories: []string{"economy"},
					MatchedKeywords:   []string{"inflation"},
				},
			},
			{
				Type: models.ReasonCollaborative,
				Collaborative: &models.CollaborativeReason{
					SimilarUserCount: 12,
				},
			},
		},
	}}

	svc.Explain(recommendations)

	explanations := recommendations[0].Explanations
	require.NotNil(t, explanations)
	assert.NotEmpty(t, explanations.Why)
	assert.NotEmpty(t, explanations.How)
	assert.Contains(t, explanations.Why[0], "economy")
}

func TestExplainFallbackWithoutReasons(t *testing.T) {
	svc := NewExplanationService(testLogger())

	recommendations := []models.Recommendation{{ID: uuid.New()}}
	svc.Explain(recommendations)

	require.NotNil(t, recommendations[0].Explanations)
	assert.NotEmpty(t, recommendations[0].Explanations.Why)
}

func TestExplainAlternativesCrossCategory(t *testing.T) {
	svc := NewExplanationService(testLogger())

	sports := blendItem("sports", nil, time.Now())
	sports.Title = "Derby preview"
	culture := blendItem("culture", nil, time.Now())
	culture.Title = "Gallery opening"
	moreSports := blendItem("sports", nil, time.Now())
	moreSports.Title = "Transfer news"

	recommendations := []models.Recommendation{
		{ID: uuid.New(), ItemID: sports.ID, Item: sports},
		{ID: uuid.New(), ItemID: culture.ID, Item: culture},
		{ID: uuid.New(), ItemID: moreSports.ID, Item: moreSports},
	}

	svc.Explain(recommendations)

	alternatives := recommendations[0].Explanations.Alternatives
	assert.Equal(t, []string{"Gallery opening"}, alternatives)
}
