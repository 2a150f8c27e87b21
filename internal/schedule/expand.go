package schedule

import (
	"time"

	"github.com/teambition/rrule-go"

	"fansite/internal/model"
)

// maxExpandDays caps day expansion for very long spans.
const maxExpandDays = 400

// ExpandDays lists the civil days (YYYY-MM-DD, in loc) an interval touches.
// An end that falls exactly on midnight is exclusive, so all-day intervals
// and events ending at 24:00 do not spill into the next day. A zero-length
// interval touches its start day.
func ExpandDays(iv model.Interval, loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	first := midnight(iv.Start, loc)

	last := iv.End.In(loc)
	if last.After(iv.Start) && last.Equal(midnight(last, loc)) {
		last = last.Add(-time.Nanosecond)
	}
	lastDay := midnight(last, loc)
	if lastDay.Before(first) {
		lastDay = first
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: first,
		Until:   lastDay,
		Count:   maxExpandDays,
	})
	if err != nil {
		return []string{first.Format(layoutDate)}
	}

	occ := r.All()
	days := make([]string, 0, len(occ))
	for _, t := range occ {
		days = append(days, t.In(loc).Format(layoutDate))
	}
	return days
}
