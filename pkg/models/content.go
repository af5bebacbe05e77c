package models

import (
	"time"

	"github.com/google/uuid"
)

type ContentItem struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Type        string    `json:"type" db:"type" validate:"required,oneof=article video gallery"`
	Title       string    `json:"title" db:"title" validate:"required,min=1,max=255"`
	Section     string    `json:"section" db:"section"`
	Tags        []string  `json:"tags,omitempty" db:"tags"`
	Author      string    `json:"author" db:"author"`
	Language    string    `json:"language" db:"language"`
	ReadingTime int       `json:"reading_time" db:"reading_time"` // minutes
	ViewCount   int64     `json:"view_count" db:"view_count"`
	LikeCount   int64     `json:"like_count" db:"like_count"`
	ShareCount  int64     `json:"share_count" db:"share_count"`
	Featured    bool      `json:"featured" db:"featured"`
	Active      bool      `json:"active" db:"active"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PrimaryCategory is the category used for diversity bookkeeping. Items are
// grouped by section first; the first tag is used when the section is empty.
func (c *ContentItem) PrimaryCategory() string {
	if c.Section != "" {
		return c.Section
	}
	if len(c.Tags) > 0 {
		return c.Tags[0]
	}
	return "general"
}
