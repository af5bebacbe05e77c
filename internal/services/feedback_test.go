package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahafatech/tawsiya/pkg/models"
)

type recordingProfiles struct {
	fakeProfiles
	mu         sync.Mutex
	categories []string
	keywords   []string
	delta      float64
	called     chan struct{}
}

func (p *recordingProfiles) AdjustInterestWeights(ctx context.Context, userID uuid.UUID, categories, keywords []string, delta float64) error {
	p.mu.Lock()
	p.categories = categories
	p.keywords = keywords
	p.delta = delta
	p.mu.Unlock()
	close(p.called)
	return nil
}

func newFeedbackService(t *testing.T, db DatabaseQuerier, profiles BehaviorProfileBuilder, store *RecommendationStore) *FeedbackService {
	t.Helper()
	logger := testLogger()
	cfg := testEngineConfig()
	cfg.Feedback.Workers = 1
	cfg.Feedback.QueueSize = 8
	return NewFeedbackService(db, nil, profiles, store, NewResultCache(nil, cfg, logger), nil, cfg, logger, nil)
}

func TestRecordFeedbackPersistsAndAdjusts(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	userID := uuid.New()
	recID := uuid.New()
	itemID := uuid.New()

	mockDB.ExpectExec("INSERT INTO recommendation_feedback").
		WithArgs(
			pgxmock.AnyArg(), userID, recID, itemID, models.ActionLike,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockDB.ExpectQuery("FROM content_items").
		WithArgs(itemID).
		WillReturnRows(
			pgxmock.NewRows([]string{
				"id", "type", "title", "section", "tags", "author", "language",
				"reading_time", "view_count", "like_count", "share_count",
				"featured", "published_at",
			}).AddRow(
				itemID, "article", "Budget analysis", "economy", []string{"budget"},
				"desk", "en", 6, int64(300), int64(20), int64(4),
				false, time.Now().AddDate(0, 0, -1),
			),
		)

	profiles := &recordingProfiles{called: make(chan struct{})}
	svc := newFeedbackService(t, mockDB, profiles, nil)
	defer svc.Close()

	feedback, err := svc.Record(context.Background(), &models.FeedbackRequest{
		RecommendationID: recID,
		UserID:           userID,
		ItemID:           itemID,
		Action:           models.ActionLike,
	})
	require.NoError(t, err)
	require.NotNil(t, feedback)
	assert.NotEqual(t, uuid.Nil, feedback.ID)

	select {
	case <-profiles.called:
	case <-time.After(2 * time.Second):
		t.Fatal("interest adjustment never ran")
	}

	profiles.mu.Lock()
	defer profiles.mu.Unlock()
	assert.Equal(t, []string{"economy"}, profiles.categories)
	assert.Equal(t, []string{"budget"}, profiles.keywords)
	assert.Equal(t, actionDeltas[models.ActionLike], profiles.delta)
}

func TestRecordFeedbackRejectsUnknownAction(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	svc := newFeedbackService(t, mockDB, &fakeProfiles{}, nil)
	defer svc.Close()

	_, err = svc.Record(context.Background(), &models.FeedbackRequest{
		RecommendationID: uuid.New(),
		UserID:           uuid.New(),
		ItemID:           uuid.New(),
		Action:           "applaud",
	})
	assert.Error(t, err)
}

func TestRecordFeedbackSurvivesMissingItem(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	itemID := uuid.New()
	mockDB.ExpectExec("INSERT INTO recommendation_feedback").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), itemID,
			models.ActionSave, pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockDB.ExpectQuery("FROM content_items").
		WithArgs(itemID).
		WillReturnError(assert.AnError)

	svc := newFeedbackService(t, mockDB, &fakeProfiles{}, nil)
	defer svc.Close()

	feedback, err := svc.Record(context.Background(), &models.FeedbackRequest{
		RecommendationID: uuid.New(),
		UserID:           uuid.New(),
		ItemID:           itemID,
		Action:           models.ActionSave,
	})
	require.NoError(t, err)
	assert.NotNil(t, feedback)
}

func TestRecordFeedbackRejectsUnservedRecommendation(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	recID := uuid.New()
	mockDB.ExpectQuery("FROM recommendations").
		WithArgs(recID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "batch_id", "user_id", "item_id", "item_type", "score",
			"confidence", "algorithm", "created_at",
		}))

	svc := newFeedbackService(t, mockDB, &fakeProfiles{}, NewRecommendationStore(mockDB, testLogger()))
	defer svc.Close()

	_, err = svc.Record(context.Background(), &models.FeedbackRequest{
		RecommendationID: recID,
		UserID:           uuid.New(),
		ItemID:           uuid.New(),
		Action:           models.ActionClick,
	})
	assert.Error(t, err)
}

func TestRecordFeedbackRejectsMismatchedUser(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	recID := uuid.New()
	itemID := uuid.New()
	servedTo := uuid.New()

	mockDB.ExpectQuery("FROM recommendations").
		WithArgs(recID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "batch_id", "user_id", "item_id", "item_type", "score",
			"confidence", "algorithm", "created_at",
		}).AddRow(
			recID, uuid.New(), &servedTo, itemID, "article", 0.8,
			0.7, models.AlgorithmHybridEnsemble, time.Now(),
		))

	svc := newFeedbackService(t, mockDB, &fakeProfiles{}, NewRecommendationStore(mockDB, testLogger()))
	defer svc.Close()

	_, err = svc.Record(context.Background(), &models.FeedbackRequest{
		RecommendationID: recID,
		UserID:           uuid.New(),
		ItemID:           itemID,
		Action:           models.ActionClick,
	})
	assert.Error(t, err)
}

func TestRecordFeedbackToleratesLookupOutage(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	recID := uuid.New()
	itemID := uuid.New()

	mockDB.ExpectQuery("FROM recommendations").
		WithArgs(recID).
		WillReturnError(assert.AnError)
	mockDB.ExpectExec("INSERT INTO recommendation_feedback").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), recID, itemID,
			models.ActionClick, pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockDB.ExpectQuery("FROM content_items").
		WithArgs(itemID).
		WillReturnError(assert.AnError)

	svc := newFeedbackService(t, mockDB, &fakeProfiles{}, NewRecommendationStore(mockDB, testLogger()))
	defer svc.Close()

	feedback, err := svc.Record(context.Background(), &models.FeedbackRequest{
		RecommendationID: recID,
		UserID:           uuid.New(),
		ItemID:           itemID,
		Action:           models.ActionClick,
	})
	require.NoError(t, err)
	assert.NotNil(t, feedback)
}
