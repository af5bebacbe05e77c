package services

import (
	"sort"

	"github.com/sahafatech/tawsiya/pkg/models"
)

// mergedCandidate tracks, per reason type, the score of the candidate whose
// payload is currently kept, so merging stays independent of input order.
type mergedCandidate struct {
	cand        models.Candidate
	reasonScore map[models.ReasonType]float64
}

// DeduplicateCandidates merges candidates that reference the same
// (itemType, itemID). The surviving entry carries the highest score seen for
// the item, the source that produced that score, and the union of every
// contributing reason; when two generators emit the same reason type, the
// payload from the higher-scoring one wins. The result does not depend on
// the order generators finished in.
func DeduplicateCandidates(candidates []models.Candidate) []models.Candidate {
	byItem := make(map[string]*mergedCandidate, len(candidates))

	for i := range candidates {
		c := candidates[i]
		key := c.ItemType + "/" + c.ItemID.String()

		m, ok := byItem[key]
		if !ok {
			m = &mergedCandidate{
				cand:        c,
				reasonScore: make(map[models.ReasonType]float64, len(c.Reasons)),
			}
			m.cand.Reasons = append([]models.Reason(nil), c.Reasons...)
			for _, r := range c.Reasons {
				m.reasonScore[r.Type] = c.Score
			}
			byItem[key] = m
			continue
		}

		if c.Score > m.cand.Score {
			m.cand.Score = c.Score
			m.cand.Source = c.Source
		}
		if m.cand.Item == nil {
			m.cand.Item = c.Item
		}
		m.mergeReasons(c)
	}

	merged := make([]models.Candidate, 0, len(byItem))
	for _, m := range byItem {
		sortReasons(m.cand.Reasons)
		merged = append(merged, m.cand)
	}
	sortCandidatesByScore(merged)
	return merged
}

// mergeReasons unions reason entries, one per type. A duplicated type keeps
// the payload attached to the higher score.
func (m *mergedCandidate) mergeReasons(c models.Candidate) {
	for _, r := range c.Reasons {
		kept, ok := m.reasonScore[r.Type]
		if !ok {
			m.cand.Reasons = append(m.cand.Reasons, r)
			m.reasonScore[r.Type] = c.Score
			continue
		}
		if c.Score > kept {
			for i := range m.cand.Reasons {
				if m.cand.Reasons[i].Type == r.Type {
					m.cand.Reasons[i] = r
					break
				}
			}
			m.reasonScore[r.Type] = c.Score
		}
	}
}

func sortReasons(reasons []models.Reason) {
	sort.Slice(reasons, func(i, j int) bool {
		return reasons[i].Type < reasons[j].Type
	})
}
