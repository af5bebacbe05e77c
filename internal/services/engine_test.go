package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/pkg/models"
)

type fakeGenerator struct {
	name       string
	candidates []models.Candidate
	err        error
}

func (g *fakeGenerator) Name() string { return g.name }

func (g *fakeGenerator) Generate(ctx context.Context, input GeneratorInput) ([]models.Candidate, error) {
	return g.candidates, g.err
}

type fakeProfiles struct {
	behavior  *models.UserBehaviorSummary
	interests []models.UserInterest
	viewed    map[uuid.UUID]bool
}

func (p *fakeProfiles) BuildProfile(ctx context.Context, userID uuid.UUID, windowDays int) (*models.UserBehaviorSummary, error) {
	return p.behavior, nil
}

func (p *fakeProfiles) GetInterests(ctx context.Context, userID uuid.UUID) ([]models.UserInterest, error) {
	return p.interests, nil
}

func (p *fakeProfiles) RefreshInterests(ctx context.Context, userID uuid.UUID) error { return nil }

func (p *fakeProfiles) AdjustInterestWeights(ctx context.Context, userID uuid.UUID, categories, keywords []string, delta float64) error {
	return nil
}

func (p *fakeProfiles) ViewedItemIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	return p.viewed, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		BehaviorWindowDays:      30,
		MinInteractions:         3,
		InterestRefreshInterval: 24 * time.Hour,
		GeneratorTimeout:        time.Second,
		RequestTimeout:          5 * time.Second,
		CandidateMultiplier:     3,
		FreshnessHorizonDays:    30,
		Cache: config.CacheConfig{
			ResultsTTL: 600 * time.Second,
			ProfileTTL: 5 * time.Minute,
		},
	}
}

func newTestEngine(t *testing.T, db DatabaseQuerier, profiles BehaviorProfileBuilder, generators []CandidateGenerator, trending CandidateGenerator) *RecommendationEngine {
	t.Helper()
	logger := testLogger()
	cfg := testEngineConfig()
	return NewRecommendationEngine(
		db, profiles, generators, trending,
		NewExplanationService(logger),
		NewRecommendationStore(db, logger),
		NewResultCache(nil, cfg, logger),
		nil, cfg, logger, nil,
	)
}

func generatorCandidate(source string, score float64) models.Candidate {
	item := blendItem("news", []string{"local"}, time.Now().AddDate(0, 0, -1))
	return models.Candidate{
		ItemID: item.ID,
		Score:  score,
		Source: source,
		Item:   item,
	}
}

func TestRecommendAnonymousUsesTrendingOnly(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	trending := &fakeGenerator{
		name:       models.AlgorithmTrending,
		candidates: []models.Candidate{generatorCandidate(models.AlgorithmTrending, 0.9)},
	}
	personal := &fakeGenerator{
		name: models.AlgorithmContentSimilarity,
		err:  errors.New("must not be called"),
	}

	engine := newTestEngine(t, mockDB, &fakeProfiles{}, []CandidateGenerator{personal, trending}, trending)

	response, err := engine.Recommend(context.Background(), &models.RecommendationQuery{
		Type:      models.TypeTrending,
		Algorithm: models.AlgorithmHybridEnsemble,
		Limit:     10,
	})
	require.NoError(t, err)

	require.Len(t, response.Recommendations, 1)
	assert.Nil(t, response.UserProfile)
	assert.Nil(t, response.Recommendations[0].UserID)

	// No behavioral evidence backs an anonymous batch.
	assert.Equal(t, fallbackConfidence, response.Meta.Confidence)
	assert.Equal(t, fallbackConfidence, response.Recommendations[0].Confidence)
}

func TestRecommendInsufficientHistoryFallsBack(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	mockDB.ExpectQuery("ORDER BY view_count").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(
			pgxmock.NewRows([]string{
				"id", "type", "title", "section", "tags", "author", "language",
				"reading_time", "view_count", "like_count", "share_count",
				"featured", "published_at",
			}).AddRow(
				uuid.New(), "article", "Popular piece", "news", []string{"top"},
				"desk", "en", 4, int64(5000), int64(300), int64(40),
				false, time.Now().AddDate(0, 0, -3),
			),
		)

	userID := uuid.New()
	profiles := &fakeProfiles{
		behavior: &models.UserBehaviorSummary{
			UserID:            userID,
			TotalInteractions: 1,
			InsufficientData:  true,
		},
	}
	trending := &fakeGenerator{name: models.AlgorithmTrending}

	engine := newTestEngine(t, mockDB, profiles, []CandidateGenerator{trending}, trending)

	response, err := engine.Recommend(context.Background(), &models.RecommendationQuery{
		UserID:    &userID,
		Type:      models.TypeArticles,
		Algorithm: models.AlgorithmHybridEnsemble,
		Limit:     10,
	})
	require.NoError(t, err)

	require.NotEmpty(t, response.Recommendations)
	assert.Equal(t, models.AlgorithmPopularFallback, response.Meta.Algorithm)
	assert.Equal(t, fallbackConfidence, response.Meta.Confidence)
	for _, rec := range response.Recommendations {
		assert.Equal(t, fallbackConfidence, rec.Confidence)
	}
	assert.Nil(t, response.UserProfile)
}

func TestRecommendToleratesGeneratorFailure(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	userID := uuid.New()
	profiles := &fakeProfiles{
		behavior: &models.UserBehaviorSummary{UserID: userID, TotalInteractions: 25},
	}

	healthy := &fakeGenerator{
		name:       models.AlgorithmContentSimilarity,
		candidates: []models.Candidate{generatorCandidate(models.AlgorithmContentSimilarity, 0.8)},
	}
	broken := &fakeGenerator{
		name: models.AlgorithmCollaborative,
		err:  errors.New("graph unavailable"),
	}
	trending := &fakeGenerator{name: models.AlgorithmTrending}

	engine := newTestEngine(t, mockDB, profiles, []CandidateGenerator{healthy, broken, trending}, trending)

	response, err := engine.Recommend(context.Background(), &models.RecommendationQuery{
		UserID:    &userID,
		Type:      models.TypeArticles,
		Algorithm: models.AlgorithmHybridEnsemble,
		Limit:     10,
	})
	require.NoError(t, err)

	require.Len(t, response.Recommendations, 1)
	assert.Equal(t, models.AlgorithmHybridEnsemble, response.Meta.Algorithm)
	assert.Equal(t, 1, response.Analytics.AlgorithmBreakdown[models.AlgorithmContentSimilarity])
}

func TestRecommendMergesDuplicatesAcrossGenerators(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	shared := generatorCandidate(models.AlgorithmContentSimilarity, 0.6)
	dupe := shared
	dupe.Source = models.AlgorithmTrending
	dupe.Score = 0.9

	userID := uuid.New()
	profiles := &fakeProfiles{
		behavior: &models.UserBehaviorSummary{UserID: userID, TotalInteractions: 30},
	}
	genA := &fakeGenerator{name: models.AlgorithmContentSimilarity, candidates: []models.Candidate{shared}}
	genB := &fakeGenerator{name: models.AlgorithmTrending, candidates: []models.Candidate{dupe}}

	engine := newTestEngine(t, mockDB, profiles, []CandidateGenerator{genA, genB}, genB)

	response, err := engine.Recommend(context.Background(), &models.RecommendationQuery{
		UserID:    &userID,
		Type:      models.TypeArticles,
		Algorithm: models.AlgorithmHybridEnsemble,
		Limit:     10,
	})
	require.NoError(t, err)

	assert.Len(t, response.Recommendations, 1)
}

func TestRecommendPagination(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	var candidates []models.Candidate
	for i := 0; i < 8; i++ {
		candidates = append(candidates, generatorCandidate(models.AlgorithmContentSimilarity, float64(i+1)/10))
	}

	userID := uuid.New()
	profiles := &fakeProfiles{
		behavior: &models.UserBehaviorSummary{UserID: userID, TotalInteractions: 30},
	}
	gen := &fakeGenerator{name: models.AlgorithmContentSimilarity, candidates: candidates}
	trending := &fakeGenerator{name: models.AlgorithmTrending}

	engine := newTestEngine(t, mockDB, profiles, []CandidateGenerator{gen}, trending)

	response, err := engine.Recommend(context.Background(), &models.RecommendationQuery{
		UserID:    &userID,
		Type:      models.TypeArticles,
		Algorithm: models.AlgorithmContentSimilarity,
		Limit:     3,
		Offset:    2,
	})
	require.NoError(t, err)

	require.Len(t, response.Recommendations, 3)
	assert.Equal(t, 8, response.Pagination.Total)
	assert.True(t, response.Pagination.HasMore)
	// Positions continue across pages.
	assert.Equal(t, 3, response.Recommendations[0].Position)
}

type refreshRecordingProfiles struct {
	fakeProfiles
	refreshed chan uuid.UUID
}

func (p *refreshRecordingProfiles) RefreshInterests(ctx context.Context, userID uuid.UUID) error {
	select {
	case p.refreshed <- userID:
	default:
	}
	return nil
}

func TestRecommendRefreshesMissingInterests(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	userID := uuid.New()
	profiles := &refreshRecordingProfiles{
		fakeProfiles: fakeProfiles{
			behavior: &models.UserBehaviorSummary{UserID: userID, TotalInteractions: 20},
		},
		refreshed: make(chan uuid.UUID, 1),
	}
	gen := &fakeGenerator{
		name:       models.AlgorithmContentSimilarity,
		candidates: []models.Candidate{generatorCandidate(models.AlgorithmContentSimilarity, 0.7)},
	}
	trending := &fakeGenerator{name: models.AlgorithmTrending}

	engine := newTestEngine(t, mockDB, profiles, []CandidateGenerator{gen}, trending)

	_, err = engine.Recommend(context.Background(), &models.RecommendationQuery{
		UserID:    &userID,
		Type:      models.TypeArticles,
		Algorithm: models.AlgorithmContentSimilarity,
		Limit:     5,
	})
	require.NoError(t, err)

	select {
	case got := <-profiles.refreshed:
		assert.Equal(t, userID, got)
	case <-time.After(2 * time.Second):
		t.Fatal("interest refresh never ran")
	}
}

func TestInterestsStale(t *testing.T) {
	now := time.Now()
	fresh := []models.UserInterest{{UpdatedAt: now.Add(-time.Hour)}}
	aged := []models.UserInterest{{UpdatedAt: now.Add(-48 * time.Hour)}}

	assert.True(t, interestsStale(nil, now, 24*time.Hour))
	assert.False(t, interestsStale(fresh, now, 24*time.Hour))
	assert.True(t, interestsStale(aged, now, 24*time.Hour))
	// Without an interval only a missing set triggers a refresh.
	assert.False(t, interestsStale(aged, now, 0))
}

func TestComputeConfidence(t *testing.T) {
	behavior := &models.UserBehaviorSummary{TotalInteractions: 50}
	page := []ScoredCandidate{
		{Blend: BlendedScore{Final: 0.8}},
		{Blend: BlendedScore{Final: 0.6}},
	}

	confidence := computeConfidence(behavior, page)
	assert.InDelta(t, 0.6*1.0+0.4*0.7, confidence, 1e-9)

	// History component saturates at the target.
	behavior.TotalInteractions = 500
	assert.InDelta(t, confidence, computeConfidence(behavior, page), 1e-9)
}
