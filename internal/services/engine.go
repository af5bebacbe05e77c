package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/internal/messaging"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// fallbackConfidence is reported for popularity fallback batches and
// anonymous requests, where no behavioral evidence backs the ranking.
const fallbackConfidence = 0.3

// confidenceInteractionTarget is the interaction count at which the history
// component of confidence saturates.
const confidenceInteractionTarget = 50.0

// RecommendationEngine orchestrates the full pipeline: profile lookup,
// concurrent candidate generation, deduplication, score blending, filtering,
// ranking, persistence, and caching. A failing generator or store is degraded
// around; the request fails only when no candidates can be produced at all.
type RecommendationEngine struct {
	profiles   BehaviorProfileBuilder
	generators []CandidateGenerator
	trending   CandidateGenerator
	blender    *ScoreBlender
	filters    func([]ScoredCandidate, *models.Filters, map[uuid.UUID]bool) []ScoredCandidate
	explainer  *ExplanationService
	store      *RecommendationStore
	cache      *ResultCache
	events     *messaging.EventBus
	popular    *popularFallback
	config     *config.EngineConfig
	logger     *logrus.Logger
	metrics    *PipelineMetrics
	now        func() time.Time
}

func NewRecommendationEngine(
	db DatabaseQuerier,
	profiles BehaviorProfileBuilder,
	generators []CandidateGenerator,
	trending CandidateGenerator,
	explainer *ExplanationService,
	store *RecommendationStore,
	cache *ResultCache,
	events *messaging.EventBus,
	cfg *config.EngineConfig,
	logger *logrus.Logger,
	metrics *PipelineMetrics,
) *RecommendationEngine {
	return &RecommendationEngine{
		profiles:   profiles,
		generators: generators,
		trending:   trending,
		blender:    NewScoreBlender(cfg.FreshnessHorizonDays),
		filters:    ApplyFilters,
		explainer:  explainer,
		store:      store,
		cache:      cache,
		events:     events,
		popular:    &popularFallback{db: db},
		config:     cfg,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Recommend serves one read request end to end.
func (e *RecommendationEngine) Recommend(ctx context.Context, query *models.RecommendationQuery) (*models.RecommendationResponse, error) {
	started := e.now()

	ctx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	cacheKey := e.cache.Key(query)
	if cached, ok := e.cache.Get(ctx, cacheKey); ok {
		e.metrics.ObserveCache(true)
		e.metrics.ObserveRequest(query.Algorithm, "cache_hit", e.now().Sub(started))
		return cached, nil
	}
	e.metrics.ObserveCache(false)

	var (
		behavior  *models.UserBehaviorSummary
		interests []models.UserInterest
		viewed    map[uuid.UUID]bool
	)
	if query.UserID != nil {
		var err error
		behavior, err = e.profiles.BuildProfile(ctx, *query.UserID, e.config.BehaviorWindowDays)
		if err != nil {
			e.logger.WithError(err).WithField("user_id", query.UserID).
				Warn("Profile build failed, continuing without profile")
			behavior = &models.UserBehaviorSummary{UserID: *query.UserID, InsufficientData: true}
		}
		if !behavior.InsufficientData {
			if interests, err = e.profiles.GetInterests(ctx, *query.UserID); err != nil {
				e.logger.WithError(err).Warn("Interest lookup failed")
			} else if interestsStale(interests, e.now(), e.config.InterestRefreshInterval) {
				// Stale-while-revalidate: serve this request from what is
				// stored and re-derive the set off the response path.
				e.refreshInterestsAsync(*query.UserID)
			}
		}
		if query.Filters.ExcludeRead {
			if viewed, err = e.profiles.ViewedItemIDs(ctx, *query.UserID); err != nil {
				e.logger.WithError(err).Warn("Viewed item lookup failed")
			}
		}
	}

	input := GeneratorInput{
		UserID:    query.UserID,
		Interests: interests,
		Behavior:  behavior,
		Context:   query.Context,
		Limit:     (query.Limit + query.Offset) * e.config.CandidateMultiplier,
	}

	candidates, insufficient := e.generateCandidates(ctx, query, input, behavior)

	var response *models.RecommendationResponse
	if len(candidates) == 0 || insufficient {
		rec, err := e.popular.fetch(ctx, input.Limit)
		if err != nil {
			e.metrics.ObserveRequest(query.Algorithm, "error", e.now().Sub(started))
			return nil, fmt.Errorf("no candidates available: %w", err)
		}
		if len(rec) == 0 {
			e.metrics.ObserveRequest(query.Algorithm, "error", e.now().Sub(started))
			return nil, fmt.Errorf("no candidates available")
		}
		e.metrics.ObserveFallback()
		response = e.assemble(query, rec, behavior, interests, viewed, true)
	} else {
		response = e.assemble(query, candidates, behavior, interests, viewed, false)
	}

	response.Meta.ProcessingTimeMs = e.now().Sub(started).Milliseconds()

	// Persistence and analytics publishing are off the response path.
	e.finalizeAsync(query, response, cacheKey)

	e.metrics.ObserveRequest(query.Algorithm, "ok", e.now().Sub(started))
	return response, nil
}

// generateCandidates fans the selected generators out concurrently, each
// under its own timeout. Failures are contained per generator; the second
// return reports the insufficient-history state that forces the popularity
// fallback.
func (e *RecommendationEngine) generateCandidates(
	ctx context.Context,
	query *models.RecommendationQuery,
	input GeneratorInput,
	behavior *models.UserBehaviorSummary,
) ([]models.Candidate, bool) {
	// Anonymous traffic gets trending only.
	if query.UserID == nil {
		candidates, err := e.runGenerator(ctx, e.trending, input)
		if err != nil {
			e.logger.WithError(err).Warn("Trending generation failed for anonymous request")
			return nil, false
		}
		return candidates, false
	}

	if behavior != nil && behavior.InsufficientData {
		return nil, true
	}

	selected := e.selectGenerators(query.Algorithm)
	if len(selected) == 0 {
		return nil, false
	}

	var (
		mu         sync.Mutex
		candidates []models.Candidate
		wg         sync.WaitGroup
	)
	for _, gen := range selected {
		wg.Add(1)
		go func(gen CandidateGenerator) {
			defer wg.Done()
			result, err := e.runGenerator(ctx, gen, input)
			if err != nil {
				e.metrics.ObserveGeneratorFailure(gen.Name())
				e.logger.WithError(err).WithField("generator", gen.Name()).
					Warn("Candidate generator failed")
				return
			}
			e.metrics.ObserveCandidates(gen.Name(), len(result))
			mu.Lock()
			candidates = append(candidates, result...)
			mu.Unlock()
		}(gen)
	}
	wg.Wait()

	return candidates, false
}

func (e *RecommendationEngine) runGenerator(ctx context.Context, gen CandidateGenerator, input GeneratorInput) ([]models.Candidate, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.config.GeneratorTimeout)
	defer cancel()
	return gen.Generate(genCtx, input)
}

func (e *RecommendationEngine) selectGenerators(algorithm string) []CandidateGenerator {
	if algorithm == "" || algorithm == models.AlgorithmHybridEnsemble {
		return e.generators
	}
	for _, gen := range e.generators {
		if gen.Name() == algorithm {
			return []CandidateGenerator{gen}
		}
	}
	e.logger.WithField("algorithm", algorithm).Warn("Unknown algorithm, using hybrid ensemble")
	return e.generators
}

// assemble runs the deterministic tail of the pipeline: dedup, blend over the
// full pool, filter, rank, paginate, and dress the batch.
func (e *RecommendationEngine) assemble(
	query *models.RecommendationQuery,
	candidates []models.Candidate,
	behavior *models.UserBehaviorSummary,
	interests []models.UserInterest,
	viewed map[uuid.UUID]bool,
	fallback bool,
) *models.RecommendationResponse {
	now := e.now()

	deduped := DeduplicateCandidates(candidates)

	factors := BlendFactors{
		Diversity:       query.DiversityFactor,
		Freshness:       query.FreshnessFactor,
		Personalization: query.PersonalityFactor,
	}
	blends := e.blender.Blend(deduped, factors, interests, behavior, now)

	scored := make([]ScoredCandidate, len(deduped))
	for i := range deduped {
		scored[i] = ScoredCandidate{Candidate: deduped[i], Blend: blends[i]}
	}

	scored = e.filters(scored, &query.Filters, viewed)

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Blend.Final != scored[j].Blend.Final {
			return scored[i].Blend.Final > scored[j].Blend.Final
		}
		if scored[i].ItemID != scored[j].ItemID {
			return scored[i].ItemID.String() < scored[j].ItemID.String()
		}
		return scored[i].ItemType < scored[j].ItemType
	})

	total := len(scored)
	page := paginate(scored, query.Offset, query.Limit)

	// Fallback batches and anonymous traffic carry no behavioral evidence,
	// so both report the fixed low confidence.
	algorithm := query.Algorithm
	confidence := fallbackConfidence
	switch {
	case fallback:
		algorithm = models.AlgorithmPopularFallback
	case query.UserID != nil:
		confidence = computeConfidence(behavior, page)
	}

	batchID := uuid.New()
	recommendations := make([]models.Recommendation, len(page))
	for i, sc := range page {
		recommendations[i] = models.Recommendation{
			ID:              uuid.New(),
			BatchID:         batchID,
			UserID:          query.UserID,
			ItemID:          sc.ItemID,
			ItemType:        sc.ItemType,
			Score:           sc.Blend.Final,
			Confidence:      confidence,
			Algorithm:       algorithm,
			Reasons:         sc.Reasons,
			Freshness:       sc.Blend.Freshness,
			Diversity:       sc.Blend.Diversity,
			Personalization: sc.Blend.Personalization,
			Position:        query.Offset + i + 1,
			Item:            sc.Item,
			CreatedAt:       now,
		}
	}

	if query.Explainability {
		e.explainer.Explain(recommendations)
	}

	response := &models.RecommendationResponse{
		Recommendations: recommendations,
		Pagination: models.Pagination{
			Limit:   query.Limit,
			Offset:  query.Offset,
			Total:   total,
			HasMore: query.Offset+len(page) < total,
		},
		Meta: models.BatchMeta{
			BatchID:     batchID,
			Algorithm:   algorithm,
			Confidence:  confidence,
			GeneratedAt: now,
		},
		Analytics: batchAnalytics(page, confidence),
	}
	if behavior != nil && !behavior.InsufficientData {
		response.UserProfile = behavior
	}
	return response
}

// finalizeAsync persists the batch, publishes the served event, and caches
// the response. None of these can fail the request.
func (e *RecommendationEngine) finalizeAsync(query *models.RecommendationQuery, response *models.RecommendationResponse, cacheKey string) {
	recommendations := response.Recommendations

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := e.store.SaveBatch(ctx, recommendations); err != nil {
			e.logger.WithError(err).WithField("batch_id", response.Meta.BatchID).
				Error("Failed to persist recommendation batch")
		}

		e.cache.Set(ctx, cacheKey, response)

		if e.events != nil {
			user := "anonymous"
			if query.UserID != nil {
				user = query.UserID.String()
			}
			e.events.PublishRecommendationServed(ctx, user, map[string]interface{}{
				"batch_id":   response.Meta.BatchID.String(),
				"algorithm":  response.Meta.Algorithm,
				"count":      len(recommendations),
				"confidence": response.Meta.Confidence,
				"cache_hit":  false,
			})
		}
	}()
}

// interestsStale reports whether the stored interest set needs re-deriving
// from the interaction log: missing entirely for an active user, or not
// refreshed within the configured interval.
func interestsStale(interests []models.UserInterest, now time.Time, interval time.Duration) bool {
	if len(interests) == 0 {
		return true
	}
	if interval <= 0 {
		return false
	}
	newest := interests[0].UpdatedAt
	for _, interest := range interests[1:] {
		if interest.UpdatedAt.After(newest) {
			newest = interest.UpdatedAt
		}
	}
	return now.Sub(newest) > interval
}

func (e *RecommendationEngine) refreshInterestsAsync(userID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.profiles.RefreshInterests(ctx, userID); err != nil {
			e.logger.WithError(err).WithField("user_id", userID).
				Warn("Interest refresh failed")
		}
	}()
}

// computeConfidence blends history depth with the batch's mean blended score.
func computeConfidence(behavior *models.UserBehaviorSummary, page []ScoredCandidate) float64 {
	var historyComponent float64
	if behavior != nil {
		historyComponent = math.Min(float64(behavior.TotalInteractions)/confidenceInteractionTarget, 1.0)
	}

	var scoreComponent float64
	if len(page) > 0 {
		scores := make([]float64, len(page))
		for i, sc := range page {
			scores[i] = sc.Blend.Final
		}
		scoreComponent = stat.Mean(scores, nil)
	}

	return clamp01(0.6*historyComponent + 0.4*scoreComponent)
}

func batchAnalytics(page []ScoredCandidate, confidence float64) models.BatchAnalytics {
	analytics := models.BatchAnalytics{
		AvgConfidence:      confidence,
		AlgorithmBreakdown: make(map[string]int),
	}
	if len(page) == 0 {
		return analytics
	}

	scores := make([]float64, len(page))
	diversity := make([]float64, len(page))
	freshness := make([]float64, len(page))
	for i, sc := range page {
		scores[i] = sc.Blend.Final
		diversity[i] = sc.Blend.Diversity
		freshness[i] = sc.Blend.Freshness
		analytics.AlgorithmBreakdown[sc.Source]++
	}
	analytics.AvgScore = stat.Mean(scores, nil)
	analytics.DiversityScore = stat.Mean(diversity, nil)
	analytics.FreshnessScore = stat.Mean(freshness, nil)
	return analytics
}

func paginate(scored []ScoredCandidate, offset, limit int) []ScoredCandidate {
	if offset >= len(scored) {
		return nil
	}
	end := offset + limit
	if end > len(scored) {
		end = len(scored)
	}
	return scored[offset:end]
}

// popularFallback serves users without enough history: globally popular
// active items ranked by lifetime engagement.
type popularFallback struct {
	db DatabaseQuerier
}

func (p *popularFallback) fetch(ctx context.Context, limit int) ([]models.Candidate, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, type, title, section, tags, author, language, reading_time,
		       view_count, like_count, share_count, featured, published_at
		FROM content_items
		WHERE active = true
		ORDER BY view_count + like_count * 10 DESC, published_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("popular fallback query failed: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	var maxViews int64
	var pool []*models.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			continue
		}
		pool = append(pool, item)
		if item.ViewCount > maxViews {
			maxViews = item.ViewCount
		}
	}
	if maxViews == 0 {
		maxViews = 1
	}

	for _, item := range pool {
		candidates = append(candidates, models.Candidate{
			ItemID:   item.ID,
			ItemType: item.Type,
			Score:    float64(item.ViewCount) / float64(maxViews),
			Source:   models.AlgorithmPopularFallback,
			Item:     item,
			Reasons: []models.Reason{{
				Type: models.ReasonPopularity,
				Popularity: &models.PopularityReason{
					Views: item.ViewCount,
					Likes: item.LikeCount,
				},
			}},
		})
	}
	return candidates, nil
}
