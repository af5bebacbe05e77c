package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahafatech/tawsiya/pkg/models"
)

func TestBuildProfileInsufficientData(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	userID := uuid.New()
	mockDB.ExpectQuery("SELECT event_type").
		WithArgs(userID, pgxmock.AnyArg()).
		WillReturnRows(
			pgxmock.NewRows([]string{"event_type", "count"}).
				AddRow("view", 2),
		)

	svc := NewBehaviorProfileService(mockDB, nil, testEngineConfig(), testLogger())

	summary, err := svc.BuildProfile(context.Background(), userID, 30)
	require.NoError(t, err)

	assert.True(t, summary.InsufficientData)
	assert.Equal(t, 2, summary.TotalInteractions)
	assert.Empty(t, summary.PreferredCategories)
}

func TestBuildProfileCountsByEventType(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	userID := uuid.New()
	mockDB.ExpectQuery("SELECT event_type").
		WithArgs(userID, pgxmock.AnyArg()).
		WillReturnRows(
			pgxmock.NewRows([]string{"event_type", "count"}).
				AddRow("view", 10).
				AddRow("like", 3),
		)
	// Session stats, preferred categories, activity pattern.
	mockDB.ExpectQuery("GROUP BY session_id").
		WithArgs(userID, pgxmock.AnyArg()).
		WillReturnRows(
			pgxmock.NewRows([]string{"avg_session", "avg_reading"}).AddRow(120.0, 4.5),
		)
	mockDB.ExpectQuery("GROUP BY ci.section").
		WithArgs(userID, pgxmock.AnyArg()).
		WillReturnRows(
			pgxmock.NewRows([]string{"section", "interactions"}).
				AddRow("sports", 8).
				AddRow("news", 5),
		)
	mockDB.ExpectQuery("GROUP BY hour").
		WithArgs(userID, pgxmock.AnyArg()).
		WillReturnRows(
			pgxmock.NewRows([]string{"hour"}).AddRow(20),
		)

	svc := NewBehaviorProfileService(mockDB, nil, testEngineConfig(), testLogger())

	summary, err := svc.BuildProfile(context.Background(), userID, 30)
	require.NoError(t, err)

	assert.False(t, summary.InsufficientData)
	assert.Equal(t, 13, summary.TotalInteractions)
	assert.Equal(t, 10, summary.CountsByEventType["view"])
	assert.Equal(t, []string{"sports", "news"}, summary.PreferredCategories)
	assert.Equal(t, "evening", summary.ActivityPattern)
	assert.InDelta(t, 4.5, summary.AvgReadingTime, 1e-9)
}

func TestNormalizeInterestsThreshold(t *testing.T) {
	userID := uuid.New()
	categories := map[string]float64{"sports": 10, "news": 0.5}
	keywords := map[string]float64{"football": 5}

	interests := normalizeInterests(userID, categories, keywords, 0.1)

	values := make(map[string]float64)
	for _, i := range interests {
		values[i.Value] = i.Weight
	}

	assert.InDelta(t, 1.0, values["sports"], 1e-9)
	assert.InDelta(t, 0.5, values["football"], 1e-9)
	// 0.05 normalized falls under the threshold and is dropped.
	assert.NotContains(t, values, "news")

	// Strongest first, weights in (0,1].
	for i := 1; i < len(interests); i++ {
		assert.GreaterOrEqual(t, interests[i-1].Weight, interests[i].Weight)
	}
}

func TestNormalizeInterestsEmpty(t *testing.T) {
	assert.Nil(t, normalizeInterests(uuid.New(), nil, nil, 0.1))
}

func TestInteractionWeight(t *testing.T) {
	tests := []struct {
		eventType string
		duration  int
		expected  float64
	}{
		{"like", 0, 0.8},
		{"share", 0, 0.9},
		{"save", 0, 0.85},
		{"click", 0, 0.6},
		{"view", 150, 0.5},
		{"view", 900, 1.0}, // dwell capped
		{"view", 0, 0.4},
		{"dislike", 0, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, interactionWeight(tt.eventType, tt.duration), 1e-9, tt.eventType)
	}
}

func TestActivityBucket(t *testing.T) {
	assert.Equal(t, "morning", activityBucket(8))
	assert.Equal(t, "afternoon", activityBucket(14))
	assert.Equal(t, "evening", activityBucket(19))
	assert.Equal(t, "night", activityBucket(2))
	assert.Equal(t, "night", activityBucket(23))
}

func TestActionDeltasDirection(t *testing.T) {
	for _, action := range []string{models.ActionClick, models.ActionLike, models.ActionShare, models.ActionSave} {
		assert.Positive(t, actionDeltas[action], action)
	}
	for _, action := range []string{models.ActionIgnore, models.ActionDislike, models.ActionReport} {
		assert.Negative(t, actionDeltas[action], action)
	}
}
