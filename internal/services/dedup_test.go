package services

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahafatech/tawsiya/pkg/models"
)

func TestDeduplicateKeepsMaxScore(t *testing.T) {
	itemID := uuid.New()

	candidates := []models.Candidate{
		{ItemID: itemID, Score: 0.4, Source: models.AlgorithmTrending,
			Reasons: []models.Reason{{Type: models.ReasonTrending}}},
		{ItemID: itemID, Score: 0.9, Source: models.AlgorithmContentSimilarity,
			Reasons: []models.Reason{{Type: models.ReasonContentSimilarity}}},
		{ItemID: itemID, Score: 0.7, Source: models.AlgorithmCollaborative,
			Reasons: []models.Reason{{Type: models.ReasonCollaborative}}},
	}

	merged := DeduplicateCandidates(candidates)
	require.Len(t, merged, 1)

	assert.Equal(t, 0.9, merged[0].Score)
	assert.Equal(t, models.AlgorithmContentSimilarity, merged[0].Source)
	assert.Len(t, merged[0].Reasons, 3)
}

func TestDeduplicateOrderInsensitive(t *testing.T) {
	var candidates []models.Candidate
	for i := 0; i < 4; i++ {
		itemID := uuid.New()
		candidates = append(candidates,
			models.Candidate{ItemID: itemID, Score: float64(i) / 10, Source: models.AlgorithmTrending,
				Reasons: []models.Reason{{Type: models.ReasonTrending}}},
			models.Candidate{ItemID: itemID, Score: float64(i)/10 + 0.5, Source: models.AlgorithmCollaborative,
				Reasons: []models.Reason{{Type: models.ReasonCollaborative}}},
		)
	}

	expected := DeduplicateCandidates(candidates)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]models.Candidate(nil), candidates...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		assert.Equal(t, expected, DeduplicateCandidates(shuffled))
	}
}

func TestDeduplicateDistinctItemsUntouched(t *testing.T) {
	candidates := []models.Candidate{
		{ItemID: uuid.New(), Score: 0.3},
		{ItemID: uuid.New(), Score: 0.6},
	}

	merged := DeduplicateCandidates(candidates)
	require.Len(t, merged, 2)
	// Sorted best first.
	assert.Equal(t, 0.6, merged[0].Score)
}

func TestDeduplicateKeysOnItemTypeAndID(t *testing.T) {
	itemID := uuid.New()

	candidates := []models.Candidate{
		{ItemID: itemID, ItemType: "article", Score: 0.4},
		{ItemID: itemID, ItemType: "video", Score: 0.6},
	}

	merged := DeduplicateCandidates(candidates)
	assert.Len(t, merged, 2)
}

func TestDeduplicateReasonPayloadFromMaxScore(t *testing.T) {
	itemID := uuid.New()

	weak := models.Candidate{
		ItemID: itemID, Score: 0.2, Source: models.AlgorithmTrending,
		Reasons: []models.Reason{{
			Type:     models.ReasonTrending,
			Trending: &models.TrendingReason{Views: 10},
		}},
	}
	strong := models.Candidate{
		ItemID: itemID, Score: 0.8, Source: models.AlgorithmTrending,
		Reasons: []models.Reason{{
			Type:     models.ReasonTrending,
			Trending: &models.TrendingReason{Views: 900},
		}},
	}

	for _, input := range [][]models.Candidate{
		{weak, strong},
		{strong, weak},
	} {
		merged := DeduplicateCandidates(input)
		require.Len(t, merged, 1)
		require.Len(t, merged[0].Reasons, 1)
		assert.Equal(t, int64(900), merged[0].Reasons[0].Trending.Views)
	}
}
