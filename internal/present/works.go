// Package present shapes loaded records into the groupings the site pages
// render: works by title, birthdays by month-day, rankings and day buckets.
package present

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// FallbackWorkTitle collects items without a work title. It always sorts
// after every real title.
const FallbackWorkTitle = "その他"

// Group is one work-title bucket. Items keep their input order.
type Group[T any] struct {
	Title string `json:"title"`
	Items []T    `json:"items"`
}

// GroupByWorkTitle buckets items by the title returned from titleOf.
// Buckets are ordered by Japanese collation with the fallback bucket last.
func GroupByWorkTitle[T any](items []T, titleOf func(T) string) []Group[T] {
	index := map[string]int{}
	groups := make([]Group[T], 0)

	for _, it := range items {
		title := strings.TrimSpace(titleOf(it))
		if title == "" {
			title = FallbackWorkTitle
		}
		i, ok := index[title]
		if !ok {
			i = len(groups)
			index[title] = i
			groups = append(groups, Group[T]{Title: title})
		}
		groups[i].Items = append(groups[i].Items, it)
	}

	// Collators keep internal buffers; one per call. The root collation
	// orders kana by reading; the ja tailoring sorts the long vowel mark
	// ahead of every kana.
	col := collate.New(language.Und)
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Title, groups[j].Title
		if a == FallbackWorkTitle || b == FallbackWorkTitle {
			return b == FallbackWorkTitle && a != FallbackWorkTitle
		}
		return col.CompareString(a, b) < 0
	})
	return groups
}
