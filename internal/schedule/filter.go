package schedule

import (
	"strings"

	"fansite/internal/model"
)

// ParseCategory maps a selector string to a category. An empty selector
// means "all".
func ParseCategory(s string) (model.Category, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == string(model.CategoryAll) {
		return model.CategoryAll, nil
	}
	c := model.Category(s)
	if !IsKnownCategory(c) {
		return c, &UnknownCategoryError{Category: s}
	}
	return c, nil
}

func IsKnownCategory(c model.Category) bool {
	for _, k := range model.Categories {
		if k == c {
			return true
		}
	}
	return false
}

// Filter returns the events of the given category in input order. "all"
// returns events as is; an unrecognized selector matches nothing.
func Filter(events []model.ScheduleEvent, category model.Category) []model.ScheduleEvent {
	if category == model.CategoryAll {
		return events
	}
	out := make([]model.ScheduleEvent, 0, len(events))
	if !IsKnownCategory(category) {
		return out
	}
	for _, ev := range events {
		if ev.Category == category {
			out = append(out, ev)
		}
	}
	return out
}

// Partition splits events into long-term and point-in-time lists, keeping
// the input order within each list.
func Partition(events []model.ScheduleEvent) (longTerm, regular []model.ScheduleEvent) {
	longTerm = make([]model.ScheduleEvent, 0)
	regular = make([]model.ScheduleEvent, 0, len(events))
	for _, ev := range events {
		if ev.IsLongTerm {
			longTerm = append(longTerm, ev)
		} else {
			regular = append(regular, ev)
		}
	}
	return longTerm, regular
}
