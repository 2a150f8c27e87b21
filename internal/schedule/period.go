package schedule

import (
	"time"

	"fansite/internal/model"
)

// Classifier decides the period status of long-term events.
type Classifier struct {
	Location *time.Location
}

func NewClassifier(loc *time.Location) *Classifier {
	return &Classifier{Location: loc}
}

// Classify reports where now falls relative to a long-term event. The
// event covers midnight of Date through the last instant of EndDate, both
// inclusive, so an event starting today is ongoing.
func (c *Classifier) Classify(ev model.ScheduleEvent, now time.Time) (model.PeriodStatus, error) {
	if !ev.IsLongTerm {
		return "", ErrNotLongTerm
	}
	if err := CheckRange(ev); err != nil {
		return "", err
	}

	loc := time.Local
	if c != nil && c.Location != nil {
		loc = c.Location
	}

	first, err := parseDate("date", ev.Date, loc)
	if err != nil {
		return "", err
	}
	last, err := parseDate("endDate", ev.EndDate, loc)
	if err != nil {
		return "", err
	}
	endOfLast := last.AddDate(0, 0, 1).Add(-time.Nanosecond)

	switch {
	case now.Before(first):
		return model.PeriodUpcoming, nil
	case now.After(endOfLast):
		return model.PeriodEnded, nil
	default:
		return model.PeriodOngoing, nil
	}
}
