package present

import (
	"sort"

	"fansite/internal/model"
)

// RankByCount returns stats ordered by descending count. Equal counts keep
// their input order. The input slice is not modified.
func RankByCount(stats []model.Stat) []model.Stat {
	out := make([]model.Stat, len(stats))
	copy(out, stats)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}
