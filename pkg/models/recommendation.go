package models

import (
	"time"

	"github.com/google/uuid"
)

// Recommendation types accepted by the read endpoint.
const (
	TypeArticles       = "articles"
	TypeSections       = "sections"
	TypeTags           = "tags"
	TypeAuthors        = "authors"
	TypeRelatedContent = "related_content"
	TypeTrending       = "trending"
	TypePersonalized   = "personalized"
	TypeCollaborative  = "collaborative"
	TypeHybrid         = "hybrid"
)

// Algorithm identifiers.
const (
	AlgorithmContentSimilarity = "content_similarity"
	AlgorithmCollaborative     = "collaborative_filtering"
	AlgorithmTrending          = "trending_analysis"
	AlgorithmHybridEnsemble    = "hybrid_ensemble"
	AlgorithmPopularFallback   = "popular_fallback"
)

type ReasonType string

const (
	ReasonContentSimilarity ReasonType = "content_similarity"
	ReasonCollaborative     ReasonType = "collaborative"
	ReasonTrending          ReasonType = "trending"
	ReasonPopularity        ReasonType = "popularity"
)

// Reason carries typed scoring metadata from a generator. Exactly one of the
// payload fields is set, matching Type.
type Reason struct {
	Type              ReasonType               `json:"type"`
	ContentSimilarity *ContentSimilarityReason `json:"content_similarity,omitempty"`
	Collaborative     *CollaborativeReason     `json:"collaborative,omitempty"`
	Trending          *TrendingReason          `json:"trending,omitempty"`
	Popularity        *PopularityReason        `json:"popularity,omitempty"`
}

type ContentSimilarityReason struct {
	MatchedCategories []string `json:"matched_categories,omitempty"`
	MatchedKeywords   []string `json:"matched_keywords,omitempty"`
	OverlapWeight     float64  `json:"overlap_weight"`
}

type CollaborativeReason struct {
	SimilarUserCount   int     `json:"similar_user_count"`
	CommonInteractions int     `json:"common_interactions"`
	AvgSimilarity      float64 `json:"avg_similarity"`
}

type TrendingReason struct {
	Views        int64  `json:"views"`
	Interactions int64  `json:"interactions"`
	Category     string `json:"category,omitempty"`
}

type PopularityReason struct {
	Views int64 `json:"views"`
	Likes int64 `json:"likes"`
}

// Candidate is an item proposed by a single generator. Candidates live only
// inside the request pipeline; they are persisted only once finalized as a
// Recommendation.
type Candidate struct {
	ItemID   uuid.UUID    `json:"item_id"`
	ItemType string       `json:"item_type"`
	Score    float64      `json:"score"`
	Source   string       `json:"source"`
	Reasons  []Reason     `json:"reasons"`
	Item     *ContentItem `json:"item,omitempty"`
}

// Recommendation is the finalized, user-facing ranked unit. Immutable once
// created; a new batch supersedes the old one.
type Recommendation struct {
	ID              uuid.UUID    `json:"id"`
	BatchID         uuid.UUID    `json:"batch_id"`
	UserID          *uuid.UUID   `json:"user_id,omitempty"`
	ItemID          uuid.UUID    `json:"item_id"`
	ItemType        string       `json:"item_type"`
	Score           float64      `json:"score"`
	Confidence      float64      `json:"confidence"`
	Algorithm       string       `json:"algorithm"`
	Reasons         []Reason     `json:"reasoning"`
	Freshness       float64      `json:"freshness"`
	Diversity       float64      `json:"diversity"`
	Personalization float64      `json:"personalization"`
	Position        int           `json:"position"`
	Item            *ContentItem  `json:"item,omitempty"`
	Explanations    *Explanations `json:"explanations,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// RecommendationReasoning is the persisted 1:1 explanation row, written only
// when explainability is requested.
type RecommendationReasoning struct {
	RecommendationID uuid.UUID  `json:"recommendation_id" db:"recommendation_id"`
	Type             ReasonType `json:"type" db:"type"`
	Explanation      string     `json:"explanation" db:"explanation"`
	Confidence       float64    `json:"confidence" db:"confidence"`
	Factors          []string   `json:"factors" db:"factors"`
}

// RequestContext is the optional JSON-valued "context" query parameter.
type RequestContext struct {
	CurrentItemID  *uuid.UUID  `json:"current_item_id,omitempty"`
	UserInterests  []string    `json:"user_interests,omitempty"`
	ReadingHistory []uuid.UUID `json:"reading_history,omitempty"`
	TimeOfDay      string      `json:"time_of_day,omitempty"`
	Device         string      `json:"device,omitempty"`
}

// Filters are the hard constraints of the filter stage.
type Filters struct {
	Sections        []string   `json:"sections,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	Authors         []string   `json:"authors,omitempty"`
	PublishedAfter  *time.Time `json:"published_after,omitempty"`
	PublishedBefore *time.Time `json:"published_before,omitempty"`
	MinReadingTime  *int       `json:"min_reading_time,omitempty"`
	MaxReadingTime  *int       `json:"max_reading_time,omitempty"`
	Language        string     `json:"language,omitempty"`
	ExcludeRead     bool       `json:"exclude_read,omitempty"`
	OnlyFeatured    bool       `json:"only_featured,omitempty"`
}

// RecommendationQuery is the fully parsed read request.
type RecommendationQuery struct {
	UserID          *uuid.UUID     `json:"user_id,omitempty"`
	Type            string         `json:"type"`
	Context         RequestContext `json:"context"`
	Filters         Filters        `json:"filters"`
	Algorithm       string         `json:"algorithm"`
	DiversityFactor float64        `json:"diversity_factor" validate:"gte=0,lte=1"`
	FreshnessFactor float64        `json:"freshness_factor" validate:"gte=0,lte=1"`
	PersonalityFactor float64      `json:"personality_factor" validate:"gte=0,lte=1"`
	Explainability  bool           `json:"explainability"`
	Limit           int            `json:"limit" validate:"min=1,max=100"`
	Offset          int            `json:"offset" validate:"min=0"`
}

type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

type BatchMeta struct {
	BatchID          uuid.UUID `json:"batch_id"`
	Algorithm        string    `json:"algorithm"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CacheHit         bool      `json:"cache_hit"`
	Confidence       float64   `json:"confidence"`
	GeneratedAt      time.Time `json:"generated_at"`
}

type BatchAnalytics struct {
	AvgScore           float64        `json:"avg_score"`
	AvgConfidence      float64        `json:"avg_confidence"`
	AlgorithmBreakdown map[string]int `json:"algorithm_breakdown"`
	DiversityScore     float64        `json:"diversity_score"`
	FreshnessScore     float64        `json:"freshness_score"`
}

type Explanations struct {
	Why          []string `json:"why"`
	How          []string `json:"how"`
	Alternatives []string `json:"alternatives"`
}

type RecommendationResponse struct {
	Recommendations []Recommendation     `json:"recommendations"`
	Pagination      Pagination           `json:"pagination"`
	Meta            BatchMeta            `json:"meta"`
	Analytics       BatchAnalytics       `json:"analytics"`
	UserProfile     *UserBehaviorSummary `json:"user_profile,omitempty"`
}

// Feedback actions.
const (
	ActionClick   = "click"
	ActionLike    = "like"
	ActionShare   = "share"
	ActionSave    = "save"
	ActionIgnore  = "ignore"
	ActionDislike = "dislike"
	ActionReport  = "report"
)

// Feedback is an append-only record of a user reaction to a recommendation.
type Feedback struct {
	ID               uuid.UUID              `json:"id" db:"id"`
	UserID           uuid.UUID              `json:"user_id" db:"user_id"`
	RecommendationID uuid.UUID              `json:"recommendation_id" db:"recommendation_id"`
	ItemID           uuid.UUID              `json:"item_id" db:"item_id"`
	Action           string                 `json:"action" db:"action"`
	Rating           *int                   `json:"rating,omitempty" db:"rating"`
	Comment          *string                `json:"comment,omitempty" db:"comment"`
	Context          map[string]interface{} `json:"context,omitempty" db:"context"`
	Timestamp        time.Time              `json:"timestamp" db:"timestamp"`
}

type FeedbackRequest struct {
	RecommendationID uuid.UUID              `json:"recommendation_id" binding:"required"`
	UserID           uuid.UUID              `json:"user_id" binding:"required"`
	ItemID           uuid.UUID              `json:"item_id" binding:"required"`
	Action           string                 `json:"action" binding:"required" validate:"oneof=click like share save ignore dislike report"`
	Rating           *int                   `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Feedback         *string                `json:"feedback,omitempty"`
	Context          map[string]interface{} `json:"context,omitempty"`
}

type FeedbackResponse struct {
	FeedbackID uuid.UUID `json:"feedback_id"`
	Recorded   bool      `json:"recorded"`
}
