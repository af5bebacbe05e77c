package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/sahafatech/tawsiya/pkg/models"
)

func cacheUnderTest() *ResultCache {
	return NewResultCache(nil, testEngineConfig(), testLogger())
}

func TestCacheKeyVariesByParameter(t *testing.T) {
	cache := cacheUnderTest()
	userID := uuid.New()

	base := func() *models.RecommendationQuery {
		return &models.RecommendationQuery{
			UserID:          &userID,
			Type:            models.TypeArticles,
			Algorithm:       models.AlgorithmHybridEnsemble,
			DiversityFactor: 0.3,
			Limit:           10,
		}
	}

	variants := map[string]func(*models.RecommendationQuery){
		"type":      func(q *models.RecommendationQuery) { q.Type = models.TypeTrending },
		"algorithm": func(q *models.RecommendationQuery) { q.Algorithm = models.AlgorithmTrending },
		"diversity": func(q *models.RecommendationQuery) { q.DiversityFactor = 0.7 },
		"limit":     func(q *models.RecommendationQuery) { q.Limit = 20 },
		"offset":    func(q *models.RecommendationQuery) { q.Offset = 10 },
		"explain":   func(q *models.RecommendationQuery) { q.Explainability = true },
		"filters":   func(q *models.RecommendationQuery) { q.Filters.OnlyFeatured = true },
		"context": func(q *models.RecommendationQuery) {
			q.Context.UserInterests = []string{"economy"}
		},
	}

	baseKey := cache.Key(base())
	seen := map[string]string{"base": baseKey}
	for name, mutate := range variants {
		q := base()
		mutate(q)
		key := cache.Key(q)
		for other, existing := range seen {
			assert.NotEqual(t, existing, key, "%s collides with %s", name, other)
		}
		seen[name] = key
	}
}

func TestCacheKeyStable(t *testing.T) {
	cache := cacheUnderTest()
	userID := uuid.New()

	query := &models.RecommendationQuery{
		UserID:    &userID,
		Type:      models.TypeArticles,
		Algorithm: models.AlgorithmHybridEnsemble,
		Limit:     10,
	}

	assert.Equal(t, cache.Key(query), cache.Key(query))
}

func TestCacheKeyAnonymousSegment(t *testing.T) {
	cache := cacheUnderTest()

	query := &models.RecommendationQuery{
		Type:      models.TypeTrending,
		Algorithm: models.AlgorithmTrending,
		Limit:     10,
	}

	assert.Contains(t, cache.Key(query), "rec:anonymous:")
}

func TestCacheDisabledWithoutRedis(t *testing.T) {
	cache := cacheUnderTest()

	response, ok := cache.Get(context.Background(), "rec:whatever")
	assert.False(t, ok)
	assert.Nil(t, response)
}
