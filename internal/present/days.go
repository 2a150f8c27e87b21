package present

import (
	"sort"
	"strings"
)

// Dated pairs an item with the civil days (YYYY-MM-DD) it touches.
type Dated[T any] struct {
	Item T
	Days []string
}

type Day[T any] struct {
	Date  string `json:"date"`
	Items []T    `json:"items"`
}

// GroupByDay buckets items under every day of month ("YYYY-MM") they touch.
// Only non-empty days are returned, in date order; items keep input order
// within a day.
func GroupByDay[T any](items []Dated[T], month string) []Day[T] {
	prefix := month + "-"
	index := map[string]int{}
	days := make([]Day[T], 0)

	for _, it := range items {
		for _, d := range it.Days {
			if !strings.HasPrefix(d, prefix) {
				continue
			}
			i, ok := index[d]
			if !ok {
				i = len(days)
				index[d] = i
				days = append(days, Day[T]{Date: d})
			}
			days[i].Items = append(days[i].Items, it.Item)
		}
	}

	sort.SliceStable(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}
