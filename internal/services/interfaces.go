package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sahafatech/tawsiya/pkg/models"
)

// DatabaseQuerier is the slice of pgx used by the engine's read and write
// paths. Satisfied by *pgxpool.Pool and by pgxmock in tests.
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// GeneratorInput is the shared input contract of all candidate generators.
type GeneratorInput struct {
	UserID    *uuid.UUID
	Interests []models.UserInterest
	Behavior  *models.UserBehaviorSummary
	Context   models.RequestContext
	Limit     int
}

// CandidateGenerator produces at most Limit candidates, sorted descending by
// the generator's own internal score. Generators are side-effect-free reads;
// a failing generator contributes an empty list, never a request failure.
type CandidateGenerator interface {
	Name() string
	Generate(ctx context.Context, input GeneratorInput) ([]models.Candidate, error)
}

// BehaviorProfileBuilder builds time-windowed behavior summaries and manages
// derived interest weights.
type BehaviorProfileBuilder interface {
	BuildProfile(ctx context.Context, userID uuid.UUID, windowDays int) (*models.UserBehaviorSummary, error)
	GetInterests(ctx context.Context, userID uuid.UUID) ([]models.UserInterest, error)
	RefreshInterests(ctx context.Context, userID uuid.UUID) error
	AdjustInterestWeights(ctx context.Context, userID uuid.UUID, categories, keywords []string, delta float64) error
	ViewedItemIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error)
}

// RecommendationEngineInterface is the orchestrated pipeline behind the read
// endpoint.
type RecommendationEngineInterface interface {
	Recommend(ctx context.Context, query *models.RecommendationQuery) (*models.RecommendationResponse, error)
}

// FeedbackRecorderInterface is the write path behind the feedback endpoint.
type FeedbackRecorderInterface interface {
	Record(ctx context.Context, req *models.FeedbackRequest) (*models.Feedback, error)
}
