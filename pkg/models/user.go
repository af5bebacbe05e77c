package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	InterestTypeCategory = "category"
	InterestTypeKeyword  = "keyword"
)

// UserInterest is a single weighted interest signal. The full set for a user
// is atomically replaced on each refresh; weights below the persistence
// threshold are dropped rather than stored.
type UserInterest struct {
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	InterestType string    `json:"interest_type" db:"interest_type" validate:"required,oneof=category keyword"`
	Value        string    `json:"value" db:"value" validate:"required"`
	Weight       float64   `json:"weight" db:"weight" validate:"gt=0,lte=1"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UserBehaviorSummary is a derived, time-windowed aggregate of a user's
// interaction events. It is recomputed per request or cached briefly; it is
// never the system of record.
type UserBehaviorSummary struct {
	UserID             uuid.UUID      `json:"user_id"`
	TotalInteractions  int            `json:"total_interactions"`
	CountsByEventType  map[string]int `json:"counts_by_event_type"`
	AvgSessionDuration float64        `json:"avg_session_duration"` // seconds
	AvgReadingTime     float64        `json:"avg_reading_time"`     // minutes, over read items
	PreferredCategories []string      `json:"preferred_categories"`
	ActivityPattern    string         `json:"activity_pattern"` // morning, afternoon, evening, night
	WindowDays         int            `json:"window_days"`
	InsufficientData   bool           `json:"insufficient_data"`
}

// UserInteraction is a single entry of the prior-interaction log. The log is
// owned by the platform; the engine only reads it.
type UserInteraction struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ItemID    uuid.UUID `json:"item_id" db:"item_id"`
	EventType string    `json:"event_type" db:"event_type"` // view, click, like, share, save, search
	Duration  int       `json:"duration" db:"duration"`     // seconds
	SessionID uuid.UUID `json:"session_id" db:"session_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

type SimilarUser struct {
	UserID          uuid.UUID `json:"user_id"`
	SimilarityScore float64   `json:"similarity_score"`
	SharedItems     int       `json:"shared_items"`
}
