package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/internal/textutil"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// TrendingGenerator surfaces items with high recent interaction velocity.
// When the user has category interests those sections are queried first and
// the remainder is topped up from the global trending pool, so a personalized
// request still fills its quota on quiet sections. Anonymous requests go
// straight to the global pool.
type TrendingGenerator struct {
	db     DatabaseQuerier
	config *config.EngineConfig
	logger *logrus.Logger
}

func NewTrendingGenerator(db DatabaseQuerier, cfg *config.EngineConfig, logger *logrus.Logger) *TrendingGenerator {
	return &TrendingGenerator{db: db, config: cfg, logger: logger}
}

func (g *TrendingGenerator) Name() string {
	return models.AlgorithmTrending
}

type trendingRow struct {
	item         *models.ContentItem
	recentEvents int
	velocity     float64
}

func (g *TrendingGenerator) Generate(ctx context.Context, input GeneratorInput) ([]models.Candidate, error) {
	want := input.Limit * g.config.CandidateMultiplier

	var sections []string
	for _, interest := range input.Interests {
		if interest.InterestType == models.InterestTypeCategory {
			sections = append(sections, textutil.NormalizeTerm(interest.Value))
		}
	}

	var pool []trendingRow
	if len(sections) > 0 {
		sectionRows, err := g.queryTrending(ctx, sections, want)
		if err != nil {
			return nil, err
		}
		pool = sectionRows
	}
	if len(pool) < want {
		globalRows, err := g.queryTrending(ctx, nil, want)
		if err != nil {
			if len(pool) == 0 {
				return nil, err
			}
			g.logger.WithError(err).Warn("Global trending top-up failed")
		}
		pool = mergeTrending(pool, globalRows, want)
	}
	if len(pool) == 0 {
		return nil, nil
	}

	maxVelocity := 0.0
	for _, row := range pool {
		maxVelocity = math.Max(maxVelocity, row.velocity)
	}
	if maxVelocity == 0 {
		return nil, nil
	}

	candidates := make([]models.Candidate, 0, len(pool))
	for _, row := range pool {
		candidates = append(candidates, models.Candidate{
			ItemID:   row.item.ID,
			ItemType: row.item.Type,
			Score:    row.velocity / maxVelocity,
			Source:   g.Name(),
			Item:     row.item,
			Reasons: []models.Reason{{
				Type: models.ReasonTrending,
				Trending: &models.TrendingReason{
					Views:        row.item.ViewCount,
					Interactions: int64(row.recentEvents),
					Category:     row.item.PrimaryCategory(),
				},
			}},
		})
	}

	sortCandidatesByScore(candidates)
	return truncateCandidates(candidates, input.Limit), nil
}

// queryTrending ranks items by engagement within the trending window. The
// velocity blends the windowed event count with log-damped lifetime views so
// a brand-new item with a burst of interactions can outrank an old popular
// one.
func (g *TrendingGenerator) queryTrending(ctx context.Context, sections []string, limit int) ([]trendingRow, error) {
	since := time.Now().Add(-time.Duration(g.config.Trending.WindowHours) * time.Hour)

	rows, err := g.db.Query(ctx, `
		SELECT ci.id, ci.type, ci.title, ci.section, ci.tags, ci.author,
		       ci.language, ci.reading_time, ci.view_count, ci.like_count,
		       ci.share_count, ci.featured, ci.published_at,
		       COUNT(ui.id) AS recent_events
		FROM content_items ci
		JOIN user_interactions ui ON ui.item_id = ci.id AND ui.timestamp >= $1
		WHERE ci.active = true
		  AND ci.view_count >= $2
		  AND ($3::text[] IS NULL OR lower(ci.section) = ANY($3))
		GROUP BY ci.id
		ORDER BY recent_events DESC, ci.view_count DESC
		LIMIT $4`,
		since, g.config.Trending.MinViews, sections, limit)
	if err != nil {
		return nil, fmt.Errorf("trending query failed: %w", err)
	}
	defer rows.Close()

	var result []trendingRow
	for rows.Next() {
		var item models.ContentItem
		var recentEvents int
		err := rows.Scan(
			&item.ID, &item.Type, &item.Title, &item.Section, &item.Tags,
			&item.Author, &item.Language, &item.ReadingTime,
			&item.ViewCount, &item.LikeCount, &item.ShareCount,
			&item.Featured, &item.PublishedAt, &recentEvents,
		)
		if err != nil {
			continue
		}
		item.Active = true

		result = append(result, trendingRow{
			item:         &item,
			recentEvents: recentEvents,
			velocity:     float64(recentEvents) + math.Log1p(float64(item.ViewCount)),
		})
	}
	return result, nil
}

func mergeTrending(primary, extra []trendingRow, limit int) []trendingRow {
	seen := make(map[string]bool, len(primary))
	for _, row := range primary {
		seen[row.item.ID.String()] = true
	}
	for _, row := range extra {
		if len(primary) >= limit {
			break
		}
		if seen[row.item.ID.String()] {
			continue
		}
		seen[row.item.ID.String()] = true
		primary = append(primary, row)
	}
	return primary
}
