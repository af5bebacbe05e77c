package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/pkg/models"
)

// RecommendationStore persists finalized batches. Rows are append-only: a new
// request writes a new batch under a fresh batch ID and nothing updates rows
// in place, so served recommendations stay auditable against later feedback.
type RecommendationStore struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

func NewRecommendationStore(db DatabaseQuerier, logger *logrus.Logger) *RecommendationStore {
	return &RecommendationStore{db: db, logger: logger}
}

// SaveBatch writes the ranked batch and, when explanations were generated,
// one reasoning row per reason. The whole batch commits or none of it does.
func (s *RecommendationStore) SaveBatch(ctx context.Context, recommendations []models.Recommendation) error {
	if len(recommendations) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range recommendations {
		reasons, err := json.Marshal(rec.Reasons)
		if err != nil {
			return fmt.Errorf("failed to encode reasons: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO recommendations (
				id, batch_id, user_id, item_id, item_type, score, confidence,
				algorithm, reasoning, freshness, diversity, personalization,
				position, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			rec.ID, rec.BatchID, rec.UserID, rec.ItemID, rec.ItemType,
			rec.Score, rec.Confidence, rec.Algorithm, reasons,
			rec.Freshness, rec.Diversity, rec.Personalization,
			rec.Position, rec.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert recommendation: %w", err)
		}

		if rec.Explanations == nil {
			continue
		}
		for _, reason := range rec.Reasons {
			if _, err := tx.Exec(ctx, `
				INSERT INTO recommendation_reasoning (
					recommendation_id, type, explanation, confidence, factors
				) VALUES ($1, $2, $3, $4, $5)`,
				rec.ID, reason.Type, strings.Join(rec.Explanations.Why, "; "),
				rec.Confidence, reasonFactors(reason)); err != nil {
				return fmt.Errorf("failed to insert reasoning: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"batch_id": recommendations[0].BatchID,
		"count":    len(recommendations),
	}).Debug("Persisted recommendation batch")

	return nil
}

// LookupServed returns the persisted recommendation row feedback refers to,
// used to validate that feedback targets something actually served.
func (s *RecommendationStore) LookupServed(ctx context.Context, recommendationID uuid.UUID) (*models.Recommendation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, batch_id, user_id, item_id, item_type, score, confidence,
		       algorithm, created_at
		FROM recommendations
		WHERE id = $1`, recommendationID)

	var rec models.Recommendation
	err := row.Scan(
		&rec.ID, &rec.BatchID, &rec.UserID, &rec.ItemID, &rec.ItemType,
		&rec.Score, &rec.Confidence, &rec.Algorithm, &rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up recommendation: %w", err)
	}
	return &rec, nil
}

func reasonFactors(reason models.Reason) []string {
	switch reason.Type {
	case models.ReasonContentSimilarity:
		if r := reason.ContentSimilarity; r != nil {
			return append(append([]string{}, r.MatchedCategories...), r.MatchedKeywords...)
		}
	case models.ReasonCollaborative:
		if r := reason.Collaborative; r != nil {
			return []string{fmt.Sprintf("similar_users:%d", r.SimilarUserCount)}
		}
	case models.ReasonTrending:
		if r := reason.Trending; r != nil && r.Category != "" {
			return []string{"category:" + r.Category}
		}
	case models.ReasonPopularity:
		return []string{"popularity"}
	}
	return nil
}
