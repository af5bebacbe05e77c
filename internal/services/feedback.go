package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/internal/messaging"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// actionDeltas maps a feedback action to its interest weight adjustment.
// Positive actions nudge the matched interests up, negative ones down; the
// magnitudes keep a single action from dominating a profile.
var actionDeltas = map[string]float64{
	models.ActionClick:   0.02,
	models.ActionLike:    0.05,
	models.ActionShare:   0.06,
	models.ActionSave:    0.05,
	models.ActionIgnore:  -0.02,
	models.ActionDislike: -0.08,
	models.ActionReport:  -0.10,
}

// graphRelations maps explicit actions to mirrored graph edges.
var graphRelations = map[string]string{
	models.ActionLike:    "LIKED",
	models.ActionDislike: "DISLIKED",
	models.ActionSave:    "SAVED",
}

// FeedbackService records user feedback on served recommendations. The
// database insert is synchronous and append-only; everything downstream
// (interest adjustment, graph mirroring, cache invalidation, analytics)
// happens asynchronously so the write path stays fast.
type FeedbackService struct {
	db       DatabaseQuerier
	driver   neo4j.DriverWithContext
	profiles BehaviorProfileBuilder
	store    *RecommendationStore
	cache    *ResultCache
	events   *messaging.EventBus
	config   *config.EngineConfig
	logger   *logrus.Logger
	metrics  *PipelineMetrics

	jobs chan feedbackJob
	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

type feedbackJob struct {
	feedback models.Feedback
	item     *models.ContentItem
}

func NewFeedbackService(
	db DatabaseQuerier,
	driver neo4j.DriverWithContext,
	profiles BehaviorProfileBuilder,
	store *RecommendationStore,
	cache *ResultCache,
	events *messaging.EventBus,
	cfg *config.EngineConfig,
	logger *logrus.Logger,
	metrics *PipelineMetrics,
) *FeedbackService {
	s := &FeedbackService{
		db:       db,
		driver:   driver,
		profiles: profiles,
		store:    store,
		cache:    cache,
		events:   events,
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		jobs:     make(chan feedbackJob, cfg.Feedback.QueueSize),
		stop:     make(chan struct{}),
	}
	s.startWorkers(cfg.Feedback.Workers)
	return s
}

func (s *FeedbackService) startWorkers(n int) {
	if n <= 0 {
		n = 2
	}
	for i := 0; i < n; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Record validates and persists the feedback event, then hands the profile
// side effects to the worker pool. The caller gets an acknowledgement as soon
// as the insert commits.
func (s *FeedbackService) Record(ctx context.Context, req *models.FeedbackRequest) (*models.Feedback, error) {
	if _, ok := actionDeltas[req.Action]; !ok {
		return nil, fmt.Errorf("unknown feedback action %q", req.Action)
	}

	if err := s.validateServed(ctx, req); err != nil {
		return nil, err
	}

	feedback := models.Feedback{
		ID:               uuid.New(),
		UserID:           req.UserID,
		RecommendationID: req.RecommendationID,
		ItemID:           req.ItemID,
		Action:           req.Action,
		Rating:           req.Rating,
		Comment:          req.Feedback,
		Context:          req.Context,
		Timestamp:        time.Now(),
	}

	contextJSON, err := json.Marshal(feedback.Context)
	if err != nil {
		contextJSON = []byte("{}")
	}

	if _, err := s.db.Exec(ctx, `
		INSERT INTO recommendation_feedback (
			id, user_id, recommendation_id, item_id, action, rating, comment,
			context, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		feedback.ID, feedback.UserID, feedback.RecommendationID,
		feedback.ItemID, feedback.Action, feedback.Rating, feedback.Comment,
		contextJSON, feedback.Timestamp); err != nil {
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}

	s.metrics.ObserveFeedback(feedback.Action)
	if s.events != nil {
		s.events.PublishFeedbackRecorded(ctx, feedback.UserID.String(), map[string]interface{}{
			"feedback_id":       feedback.ID.String(),
			"recommendation_id": feedback.RecommendationID.String(),
			"item_id":           feedback.ItemID.String(),
			"action":            feedback.Action,
		})
	}

	item, err := s.loadItem(ctx, feedback.ItemID)
	if err != nil {
		s.logger.WithError(err).WithField("item_id", feedback.ItemID).
			Warn("Feedback item not found, skipping profile adjustment")
		return &feedback, nil
	}

	select {
	case s.jobs <- feedbackJob{feedback: feedback, item: item}:
	default:
		// A full queue sheds the adjustment, never the recorded feedback.
		s.logger.WithField("user_id", feedback.UserID).
			Warn("Feedback adjustment queue full, dropping profile update")
	}

	return &feedback, nil
}

// validateServed checks the referenced recommendation against the persisted
// batches. A lookup outage is tolerated (the append must not depend on read
// availability); a definitive miss or a user mismatch rejects the feedback.
func (s *FeedbackService) validateServed(ctx context.Context, req *models.FeedbackRequest) error {
	if s.store == nil {
		return nil
	}

	served, err := s.store.LookupServed(ctx, req.RecommendationID)
	switch {
	case err == nil:
		if served.UserID != nil && *served.UserID != req.UserID {
			return fmt.Errorf("recommendation %s was not served to user %s", req.RecommendationID, req.UserID)
		}
		if served.ItemID != req.ItemID {
			return fmt.Errorf("recommendation %s does not reference item %s", req.RecommendationID, req.ItemID)
		}
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("unknown recommendation %s", req.RecommendationID)
	default:
		s.logger.WithError(err).WithField("recommendation_id", req.RecommendationID).
			Debug("Recommendation lookup unavailable, recording feedback unverified")
	}
	return nil
}

func (s *FeedbackService) worker() {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.jobs:
			s.process(job)
		case <-s.stop:
			// Drain what is already queued before exiting.
			for {
				select {
				case job := <-s.jobs:
					s.process(job)
				default:
					return
				}
			}
		}
	}
}

func (s *FeedbackService) process(job feedbackJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	delta := actionDeltas[job.feedback.Action]

	categories := []string{job.item.PrimaryCategory()}
	if err := s.profiles.AdjustInterestWeights(ctx, job.feedback.UserID, categories, job.item.Tags, delta); err != nil {
		s.logger.WithError(err).WithField("user_id", job.feedback.UserID).
			Warn("Interest adjustment failed")
	}

	s.mirrorToGraph(ctx, &job.feedback)

	if s.cache != nil {
		s.cache.InvalidateUser(ctx, job.feedback.UserID.String())
	}
}

// mirrorToGraph records the interaction edge the collaborative generator
// reads, plus an explicit edge for strong signals.
func (s *FeedbackService) mirrorToGraph(ctx context.Context, feedback *models.Feedback) {
	if s.driver == nil {
		return
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{
			"userID": feedback.UserID.String(),
			"itemID": feedback.ItemID.String(),
			"at":     feedback.Timestamp.UTC().Format(time.RFC3339),
		}

		if _, err := tx.Run(ctx, `
			MERGE (u:User {id: $userID})
			MERGE (i:Content {id: $itemID})
			MERGE (u)-[r:INTERACTED_WITH]->(i)
			SET r.last_at = $at`, params); err != nil {
			return nil, err
		}

		relation, ok := graphRelations[feedback.Action]
		if !ok {
			return nil, nil
		}
		_, err := tx.Run(ctx, fmt.Sprintf(`
			MATCH (u:User {id: $userID})
			MATCH (i:Content {id: $itemID})
			MERGE (u)-[r:%s]->(i)
			SET r.at = $at`, relation), params)
		return nil, err
	})
	if err != nil {
		s.logger.WithError(err).WithField("user_id", feedback.UserID).
			Warn("Failed to mirror feedback to graph")
	}
}

func (s *FeedbackService) loadItem(ctx context.Context, itemID uuid.UUID) (*models.ContentItem, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, type, title, section, tags, author, language, reading_time,
		       view_count, like_count, share_count, featured, published_at
		FROM content_items
		WHERE id = $1`, itemID)
	return scanContentItem(row)
}

// Close stops the worker pool after draining queued adjustments.
func (s *FeedbackService) Close() {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}
