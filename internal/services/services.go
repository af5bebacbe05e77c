package services

import (
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/internal/database"
	"github.com/sahafatech/tawsiya/internal/messaging"
)

// Services is the wired dependency graph handed to the HTTP layer.
type Services struct {
	Profiles  *BehaviorProfileService
	Engine    *RecommendationEngine
	Feedback  *FeedbackService
	Auth      *AuthService
	RateLimit *RateLimitService
	Health    *HealthService
	Metrics   *PipelineMetrics

	cache *ResultCache
}

// New wires every service against the shared database handles, event bus,
// and config. The generator set is fixed at startup; algorithm selection at
// request time picks from it.
func New(db *database.Database, events *messaging.EventBus, cfg *config.Config, logger *logrus.Logger) *Services {
	metrics := NewPipelineMetrics()

	profiles := NewBehaviorProfileService(db.PG, db.Redis.Warm, &cfg.Engine, logger)
	cache := NewResultCache(db.Redis.Hot, &cfg.Engine, logger)
	store := NewRecommendationStore(db.PG, logger)
	explainer := NewExplanationService(logger)

	trending := NewTrendingGenerator(db.PG, &cfg.Engine, logger)
	generators := []CandidateGenerator{
		NewContentSimilarityGenerator(db.PG, &cfg.Engine, logger),
		NewCollaborativeGenerator(db.PG, db.Neo4j, &cfg.Engine, logger),
		trending,
	}

	engine := NewRecommendationEngine(
		db.PG, profiles, generators, trending, explainer, store, cache,
		events, &cfg.Engine, logger, metrics,
	)

	feedback := NewFeedbackService(
		db.PG, db.Neo4j, profiles, store, cache, events, &cfg.Engine, logger, metrics,
	)

	return &Services{
		Profiles:  profiles,
		Engine:    engine,
		Feedback:  feedback,
		Auth:      NewAuthService(&cfg.Auth, db.Redis.Hot, logger),
		RateLimit: NewRateLimitService(db.Redis.Hot, &cfg.Auth.RateLimit, logger),
		Health:    NewHealthService(db, logger),
		Metrics:   metrics,
		cache:     cache,
	}
}

// Close releases service-owned background resources. Database handles are
// closed by their owner.
func (s *Services) Close() {
	if s.Feedback != nil {
		s.Feedback.Close()
	}
}
