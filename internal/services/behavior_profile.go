package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/internal/textutil"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// BehaviorProfileService aggregates the prior-interaction log into derived
// behavior summaries and weighted interests. Summaries are ephemeral (cached
// briefly in Redis, never the system of record); the interest set for a user
// is atomically replaced on each refresh.
type BehaviorProfileService struct {
	db     DatabaseQuerier
	redis  *redis.Client // warm cache
	config *config.EngineConfig
	logger *logrus.Logger
}

func NewBehaviorProfileService(
	db DatabaseQuerier,
	redis *redis.Client,
	cfg *config.EngineConfig,
	logger *logrus.Logger,
) *BehaviorProfileService {
	return &BehaviorProfileService{
		db:     db,
		redis:  redis,
		config: cfg,
		logger: logger,
	}
}

// BuildProfile computes a UserBehaviorSummary over a trailing window. Users
// below the minimum interaction count get a sentinel summary with
// InsufficientData set; that is a valid state, not an error, and callers fall
// back to the default-recommendations path.
func (s *BehaviorProfileService) BuildProfile(ctx context.Context, userID uuid.UUID, windowDays int) (*models.UserBehaviorSummary, error) {
	if windowDays <= 0 {
		windowDays = s.config.BehaviorWindowDays
	}

	cacheKey := fmt.Sprintf("profile:%s:%d", userID.String(), windowDays)
	if s.redis != nil {
		if cached := s.redis.Get(ctx, cacheKey).Val(); cached != "" {
			var summary models.UserBehaviorSummary
			if err := json.Unmarshal([]byte(cached), &summary); err == nil {
				return &summary, nil
			}
		}
	}

	since := time.Now().AddDate(0, 0, -windowDays)

	summary := &models.UserBehaviorSummary{
		UserID:            userID,
		CountsByEventType: make(map[string]int),
		WindowDays:        windowDays,
	}

	rows, err := s.db.Query(ctx, `
		SELECT event_type, COUNT(*)
		FROM user_interactions
		WHERE user_id = $1 AND timestamp >= $2
		GROUP BY event_type`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query interaction counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			continue
		}
		summary.CountsByEventType[eventType] = count
		summary.TotalInteractions += count
	}

	if summary.TotalInteractions < s.config.MinInteractions {
		summary.InsufficientData = true
		return summary, nil
	}

	if err := s.fillSessionStats(ctx, userID, since, summary); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to compute session stats")
	}
	if err := s.fillPreferredCategories(ctx, userID, since, summary); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to compute preferred categories")
	}
	if err := s.fillActivityPattern(ctx, userID, since, summary); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to compute activity pattern")
	}

	if s.redis != nil {
		if data, err := json.Marshal(summary); err == nil {
			if err := s.redis.Set(ctx, cacheKey, data, s.config.Cache.ProfileTTL).Err(); err != nil {
				s.logger.WithError(err).Debug("Failed to cache behavior profile")
			}
		}
	}

	return summary, nil
}

func (s *BehaviorProfileService) fillSessionStats(ctx context.Context, userID uuid.UUID, since time.Time, summary *models.UserBehaviorSummary) error {
	row := s.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(session_duration), 0), COALESCE(AVG(avg_reading), 0)
		FROM (
			SELECT session_id,
			       SUM(ui.duration) AS session_duration,
			       AVG(ci.reading_time) AS avg_reading
			FROM user_interactions ui
			LEFT JOIN content_items ci ON ui.item_id = ci.id
			WHERE ui.user_id = $1 AND ui.timestamp >= $2
			GROUP BY session_id
		) sessions`, userID, since)

	return row.Scan(&summary.AvgSessionDuration, &summary.AvgReadingTime)
}

func (s *BehaviorProfileService) fillPreferredCategories(ctx context.Context, userID uuid.UUID, since time.Time, summary *models.UserBehaviorSummary) error {
	rows, err := s.db.Query(ctx, `
		SELECT ci.section, COUNT(*) AS interactions
		FROM user_interactions ui
		JOIN content_items ci ON ui.item_id = ci.id
		WHERE ui.user_id = $1 AND ui.timestamp >= $2 AND ci.section <> ''
		GROUP BY ci.section
		ORDER BY interactions DESC
		LIMIT 5`, userID, since)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var section string
		var count int
		if err := rows.Scan(&section, &count); err != nil {
			continue
		}
		summary.PreferredCategories = append(summary.PreferredCategories, section)
	}
	return nil
}

func (s *BehaviorProfileService) fillActivityPattern(ctx context.Context, userID uuid.UUID, since time.Time, summary *models.UserBehaviorSummary) error {
	row := s.db.QueryRow(ctx, `
		SELECT EXTRACT(HOUR FROM timestamp)::int AS hour
		FROM user_interactions
		WHERE user_id = $1 AND timestamp >= $2
		GROUP BY hour
		ORDER BY COUNT(*) DESC
		LIMIT 1`, userID, since)

	var hour int
	if err := row.Scan(&hour); err != nil {
		return err
	}
	summary.ActivityPattern = activityBucket(hour)
	return nil
}

func activityBucket(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}

// GetInterests returns the persisted interest set above the weight threshold,
// strongest first.
func (s *BehaviorProfileService) GetInterests(ctx context.Context, userID uuid.UUID) ([]models.UserInterest, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, interest_type, value, weight, updated_at
		FROM user_interests
		WHERE user_id = $1 AND weight >= $2
		ORDER BY weight DESC`, userID, s.config.InterestWeightThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query user interests: %w", err)
	}
	defer rows.Close()

	var interests []models.UserInterest
	for rows.Next() {
		var interest models.UserInterest
		if err := rows.Scan(&interest.UserID, &interest.InterestType, &interest.Value, &interest.Weight, &interest.UpdatedAt); err != nil {
			continue
		}
		interests = append(interests, interest)
	}
	return interests, nil
}

// RefreshInterests re-derives the user's interest weights from the trailing
// interaction window and atomically replaces the stored set. Weights below
// the persistence threshold are dropped.
func (s *BehaviorProfileService) RefreshInterests(ctx context.Context, userID uuid.UUID) error {
	since := time.Now().AddDate(0, 0, -s.config.BehaviorWindowDays)

	rows, err := s.db.Query(ctx, `
		SELECT ui.event_type, ui.duration, ci.section, ci.tags, ci.title
		FROM user_interactions ui
		JOIN content_items ci ON ui.item_id = ci.id
		WHERE ui.user_id = $1 AND ui.timestamp >= $2`, userID, since)
	if err != nil {
		return fmt.Errorf("failed to query interactions for interest refresh: %w", err)
	}
	defer rows.Close()

	categoryWeights := make(map[string]float64)
	keywordWeights := make(map[string]float64)

	for rows.Next() {
		var eventType, section, title string
		var duration int
		var tags []string
		if err := rows.Scan(&eventType, &duration, &section, &tags, &title); err != nil {
			continue
		}

		w := interactionWeight(eventType, duration)
		if w <= 0 {
			continue
		}

		if section != "" {
			categoryWeights[textutil.NormalizeTerm(section)] += w
		}
		for _, tag := range tags {
			keywordWeights[textutil.NormalizeTerm(tag)] += w
		}
		for _, term := range textutil.ExtractTerms(title, 5) {
			keywordWeights[term] += w * 0.5
		}
	}

	interests := normalizeInterests(userID, categoryWeights, keywordWeights, s.config.InterestWeightThreshold)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin interest refresh transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_interests WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear previous interests: %w", err)
	}

	now := time.Now()
	for _, interest := range interests {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_interests (user_id, interest_type, value, weight, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			userID, interest.InterestType, interest.Value, interest.Weight, now); err != nil {
			return fmt.Errorf("failed to insert interest: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit interest refresh: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"interests": len(interests),
	}).Debug("Refreshed user interests")

	return nil
}

// normalizeInterests scales raw accumulated weights into (0,1] by the maximum
// and drops anything below the persistence threshold.
func normalizeInterests(userID uuid.UUID, categories, keywords map[string]float64, threshold float64) []models.UserInterest {
	maxWeight := 0.0
	for _, w := range categories {
		maxWeight = math.Max(maxWeight, w)
	}
	for _, w := range keywords {
		maxWeight = math.Max(maxWeight, w)
	}
	if maxWeight == 0 {
		return nil
	}

	var interests []models.UserInterest
	appendSet := func(interestType string, weights map[string]float64) {
		for value, w := range weights {
			normalized := w / maxWeight
			if normalized < threshold {
				continue
			}
			interests = append(interests, models.UserInterest{
				UserID:       userID,
				InterestType: interestType,
				Value:        value,
				Weight:       normalized,
			})
		}
	}
	appendSet(models.InterestTypeCategory, categories)
	appendSet(models.InterestTypeKeyword, keywords)

	sort.Slice(interests, func(i, j int) bool {
		if interests[i].Weight != interests[j].Weight {
			return interests[i].Weight > interests[j].Weight
		}
		return interests[i].Value < interests[j].Value
	})
	return interests
}

// AdjustInterestWeights applies a bounded monotone adjustment from feedback:
// positive deltas upsert and raise weights toward the given values, negative
// deltas lower existing ones. Weights are clamped to [0,1]; rows that fall
// below the persistence threshold are pruned.
func (s *BehaviorProfileService) AdjustInterestWeights(ctx context.Context, userID uuid.UUID, categories, keywords []string, delta float64) error {
	if delta == 0 || (len(categories) == 0 && len(keywords) == 0) {
		return nil
	}

	now := time.Now()
	adjust := func(interestType string, values []string) error {
		for _, value := range values {
			value = textutil.NormalizeTerm(value)
			if value == "" {
				continue
			}
			if delta > 0 {
				if _, err := s.db.Exec(ctx, `
					INSERT INTO user_interests (user_id, interest_type, value, weight, updated_at)
					VALUES ($1, $2, $3, LEAST($4, 1.0), $5)
					ON CONFLICT (user_id, interest_type, value)
					DO UPDATE SET weight = LEAST(user_interests.weight + $4, 1.0), updated_at = $5`,
					userID, interestType, value, delta, now); err != nil {
					return err
				}
			} else {
				if _, err := s.db.Exec(ctx, `
					UPDATE user_interests
					SET weight = GREATEST(weight + $4, 0.0), updated_at = $5
					WHERE user_id = $1 AND interest_type = $2 AND value = $3`,
					userID, interestType, value, delta, now); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := adjust(models.InterestTypeCategory, categories); err != nil {
		return fmt.Errorf("failed to adjust category weights: %w", err)
	}
	if err := adjust(models.InterestTypeKeyword, keywords); err != nil {
		return fmt.Errorf("failed to adjust keyword weights: %w", err)
	}

	if _, err := s.db.Exec(ctx, `
		DELETE FROM user_interests
		WHERE user_id = $1 AND weight < $2`,
		userID, s.config.InterestWeightThreshold); err != nil {
		return fmt.Errorf("failed to prune low-weight interests: %w", err)
	}

	if s.redis != nil {
		// Derived summaries are stale after a weight change.
		keys, err := s.redis.Keys(ctx, fmt.Sprintf("profile:%s:*", userID.String())).Result()
		if err == nil && len(keys) > 0 {
			s.redis.Del(ctx, keys...)
		}
	}

	return nil
}

// ViewedItemIDs returns the set of items the user has already seen, used by
// the exclude-already-seen filter and the collaborative generator.
func (s *BehaviorProfileService) ViewedItemIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT item_id
		FROM user_interactions
		WHERE user_id = $1 AND event_type IN ('view', 'click')`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query viewed items: %w", err)
	}
	defer rows.Close()

	viewed := make(map[uuid.UUID]bool)
	for rows.Next() {
		var itemID uuid.UUID
		if err := rows.Scan(&itemID); err != nil {
			continue
		}
		viewed[itemID] = true
	}
	return viewed, nil
}

// interactionWeight maps an event to its contribution toward interest
// weights. Views scale with dwell time up to five minutes.
func interactionWeight(eventType string, duration int) float64 {
	switch eventType {
	case "like":
		return 0.8
	case "share":
		return 0.9
	case "save":
		return 0.85
	case "click":
		return 0.6
	case "view":
		if duration > 0 {
			return math.Min(float64(duration)/300.0, 1.0)
		}
		return 0.4
	case "dislike":
		return 0
	default:
		return 0.3
	}
}
