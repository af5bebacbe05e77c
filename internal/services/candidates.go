package services

import (
	"sort"

	"github.com/sahafatech/tawsiya/pkg/models"
)

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanContentItem reads the standard content item column list used by all
// generator queries.
func scanContentItem(row rowScanner) (*models.ContentItem, error) {
	var item models.ContentItem
	err := row.Scan(
		&item.ID, &item.Type, &item.Title, &item.Section, &item.Tags,
		&item.Author, &item.Language, &item.ReadingTime,
		&item.ViewCount, &item.LikeCount, &item.ShareCount,
		&item.Featured, &item.PublishedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Active = true
	return &item, nil
}

// sortCandidatesByScore orders candidates best first, breaking score ties by
// item ID then type so the ordering is stable across runs.
func sortCandidatesByScore(candidates []models.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].ItemID != candidates[j].ItemID {
			return candidates[i].ItemID.String() < candidates[j].ItemID.String()
		}
		return candidates[i].ItemType < candidates[j].ItemType
	})
}

func truncateCandidates(candidates []models.Candidate, limit int) []models.Candidate {
	if limit > 0 && len(candidates) > limit {
		return candidates[:limit]
	}
	return candidates
}
