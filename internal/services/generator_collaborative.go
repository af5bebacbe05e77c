package services

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// CollaborativeGenerator recommends items that users with similar interaction
// histories engaged with positively. User similarity is Jaccard overlap over
// co-interacted items in the graph; candidates are hydrated from Postgres so
// scoring sees current metadata.
type CollaborativeGenerator struct {
	db     DatabaseQuerier
	driver neo4j.DriverWithContext
	config *config.EngineConfig
	logger *logrus.Logger
}

func NewCollaborativeGenerator(
	db DatabaseQuerier,
	driver neo4j.DriverWithContext,
	cfg *config.EngineConfig,
	logger *logrus.Logger,
) *CollaborativeGenerator {
	return &CollaborativeGenerator{db: db, driver: driver, config: cfg, logger: logger}
}

func (g *CollaborativeGenerator) Name() string {
	return models.AlgorithmCollaborative
}

type scoredItem struct {
	raw       float64
	userCount int
	shared    int
}

func (g *CollaborativeGenerator) Generate(ctx context.Context, input GeneratorInput) ([]models.Candidate, error) {
	if input.UserID == nil {
		return nil, nil
	}

	similarUsers, err := g.findSimilarUsers(ctx, *input.UserID)
	if err != nil {
		return nil, fmt.Errorf("similar user lookup failed: %w", err)
	}
	if len(similarUsers) == 0 {
		return nil, nil
	}

	scored, err := g.collectNeighborItems(ctx, *input.UserID, similarUsers)
	if err != nil {
		return nil, fmt.Errorf("neighbor item lookup failed: %w", err)
	}
	if len(scored) == 0 {
		return nil, nil
	}

	var totalSimilarity float64
	for _, u := range similarUsers {
		totalSimilarity += u.SimilarityScore
	}
	avgSimilarity := totalSimilarity / float64(len(similarUsers))

	candidates, err := g.hydrate(ctx, scored, totalSimilarity, avgSimilarity)
	if err != nil {
		return nil, err
	}

	sortCandidatesByScore(candidates)
	return truncateCandidates(candidates, input.Limit), nil
}

// findSimilarUsers computes Jaccard similarity over co-interacted items and
// keeps neighbors above the configured threshold with enough shared items.
func (g *CollaborativeGenerator) findSimilarUsers(ctx context.Context, userID uuid.UUID) ([]models.SimilarUser, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			MATCH (u:User {id: $userID})-[:INTERACTED_WITH]->(i:Content)<-[:INTERACTED_WITH]-(other:User)
			WITH u, other, count(DISTINCT i) AS shared
			WHERE shared >= $minShared
			MATCH (u)-[:INTERACTED_WITH]->(mine:Content)
			WITH other, shared, count(DISTINCT mine) AS mineCount
			MATCH (other)-[:INTERACTED_WITH]->(theirs:Content)
			WITH other, shared, mineCount, count(DISTINCT theirs) AS theirCount
			WITH other, shared, toFloat(shared) / (mineCount + theirCount - shared) AS similarity
			WHERE similarity >= $threshold
			RETURN other.id AS userId, similarity, shared
			ORDER BY similarity DESC
			LIMIT $maxUsers`,
			map[string]any{
				"userID":    userID.String(),
				"minShared": g.config.Collaborative.MinSharedItems,
				"threshold": g.config.Collaborative.SimilarityThreshold,
				"maxUsers":  g.config.Collaborative.MaxSimilarUsers,
			})
		if err != nil {
			return nil, err
		}

		var users []models.SimilarUser
		for records.Next(ctx) {
			record := records.Record()
			idValue, _ := record.Get("userId")
			simValue, _ := record.Get("similarity")
			sharedValue, _ := record.Get("shared")

			idStr, ok := idValue.(string)
			if !ok {
				continue
			}
			otherID, err := uuid.Parse(idStr)
			if err != nil {
				continue
			}
			users = append(users, models.SimilarUser{
				UserID:          otherID,
				SimilarityScore: asFloat(simValue),
				SharedItems:     int(asInt(sharedValue)),
			})
		}
		return users, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.SimilarUser), nil
}

// collectNeighborItems gathers items the neighbors engaged with that the user
// has not seen, accumulating each neighbor's similarity into the item score.
// Explicit LIKED and SAVED edges count more than plain interactions.
func (g *CollaborativeGenerator) collectNeighborItems(ctx context.Context, userID uuid.UUID, neighbors []models.SimilarUser) (map[uuid.UUID]*scoredItem, error) {
	neighborIDs := make([]string, len(neighbors))
	similarity := make(map[string]float64, len(neighbors))
	for i, n := range neighbors {
		neighborIDs[i] = n.UserID.String()
		similarity[n.UserID.String()] = n.SimilarityScore
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			MATCH (other:User)-[r:INTERACTED_WITH|LIKED|SAVED]->(i:Content)
			WHERE other.id IN $neighborIDs
			  AND NOT (:User {id: $userID})-[:INTERACTED_WITH]->(i)
			  AND NOT (:User {id: $userID})-[:DISLIKED]->(i)
			RETURN i.id AS itemId, other.id AS userId, type(r) AS relType`,
			map[string]any{
				"neighborIDs": neighborIDs,
				"userID":      userID.String(),
			})
		if err != nil {
			return nil, err
		}

		scored := make(map[uuid.UUID]*scoredItem)
		counted := make(map[string]bool)
		for records.Next(ctx) {
			record := records.Record()
			itemValue, _ := record.Get("itemId")
			userValue, _ := record.Get("userId")
			relValue, _ := record.Get("relType")

			itemStr, _ := itemValue.(string)
			userStr, _ := userValue.(string)
			relType, _ := relValue.(string)

			itemID, err := uuid.Parse(itemStr)
			if err != nil {
				continue
			}

			weight := 1.0
			switch relType {
			case "LIKED":
				weight = 1.5
			case "SAVED":
				weight = 1.4
			}

			entry, ok := scored[itemID]
			if !ok {
				entry = &scoredItem{}
				scored[itemID] = entry
			}
			entry.raw += similarity[userStr] * weight
			entry.shared++

			pairKey := itemStr + "|" + userStr
			if !counted[pairKey] {
				counted[pairKey] = true
				entry.userCount++
			}
		}
		return scored, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.(map[uuid.UUID]*scoredItem), nil
}

// hydrate loads candidate metadata from Postgres and drops anything inactive.
func (g *CollaborativeGenerator) hydrate(ctx context.Context, scored map[uuid.UUID]*scoredItem, totalSimilarity, avgSimilarity float64) ([]models.Candidate, error) {
	itemIDs := make([]uuid.UUID, 0, len(scored))
	for id := range scored {
		itemIDs = append(itemIDs, id)
	}

	rows, err := g.db.Query(ctx, `
		SELECT id, type, title, section, tags, author, language, reading_time,
		       view_count, like_count, share_count, featured, published_at
		FROM content_items
		WHERE active = true AND id = ANY($1)`, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("candidate hydration failed: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			continue
		}
		entry := scored[item.ID]
		if entry == nil || totalSimilarity == 0 {
			continue
		}

		score := math.Min(entry.raw/totalSimilarity, 1.0)
		candidates = append(candidates, models.Candidate{
			ItemID:   item.ID,
			ItemType: item.Type,
			Score:    score,
			Source:   g.Name(),
			Item:     item,
			Reasons: []models.Reason{{
				Type: models.ReasonCollaborative,
				Collaborative: &models.CollaborativeReason{
					SimilarUserCount:   entry.userCount,
					CommonInteractions: entry.shared,
					AvgSimilarity:      avgSimilarity,
				},
			}},
		})
	}
	return candidates, nil
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
