// Package schedule holds the date shaping rules for schedule records:
// interval normalization, calendar links, category filtering and period
// classification. Everything here is pure; the site zone is injected.
package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"fansite/internal/model"
)

const (
	layoutDate = "2006-01-02"
)

var (
	// Date fields accept zero-padded and unpadded forms with either separator.
	dateLayouts = []string{"2006-1-2", "2006/1/2"}

	// Zone-less timestamps are read in the site zone.
	localDateTimeLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}

	clockPattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	rangePattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*[-~〜～]\s*(\d{1,2}):(\d{2})\b`)
)

// slotSeparators split a time field into alternative slots; only the first
// slot takes part in interval computation.
const slotSeparators = "/／,、"

// Normalizer converts the date/time fields of a ScheduleEvent into an
// absolute Interval. Civil dates and times are read in Location.
type Normalizer struct {
	Location *time.Location
}

func NewNormalizer(loc *time.Location) *Normalizer {
	return &Normalizer{Location: loc}
}

func (n *Normalizer) location() *time.Location {
	if n == nil || n.Location == nil {
		return time.Local
	}
	return n.Location
}

// Normalize returns the interval of ev.
//
//   - Datetime / EndDatetime win over Date+Time.
//   - A "HH:MM-HH:MM" range ends on the start's civil date, or on EndDate for
//     long-term events.
//   - Without a range or EndDatetime the event has zero length.
//   - An end earlier than the start is moved one civil day forward.
//   - All-day events cover [midnight Date, midnight after EndDate/Date).
func (n *Normalizer) Normalize(ev model.ScheduleEvent) (model.Interval, error) {
	loc := n.location()

	if err := CheckRange(ev); err != nil {
		return model.Interval{}, err
	}
	if ev.IsAllDay {
		return n.allDay(ev, loc)
	}

	start, err := n.start(ev, loc)
	if err != nil {
		return model.Interval{}, err
	}
	end, err := n.end(ev, start, loc)
	if err != nil {
		return model.Interval{}, err
	}

	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
		if end.Before(start) {
			return model.Interval{}, &InvalidRangeError{ID: ev.ID, Date: ev.Datetime, EndDate: ev.EndDatetime}
		}
	}

	return model.Interval{Start: start, End: end}, nil
}

func (n *Normalizer) start(ev model.ScheduleEvent, loc *time.Location) (time.Time, error) {
	if ev.Datetime != "" {
		t, err := parseInstant("datetime", ev.Datetime, loc)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(loc), nil
	}

	day, err := parseDate("date", ev.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	c, ok, err := firstClock(ev.Time)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return day, nil
	}
	return c.on(day), nil
}

func (n *Normalizer) end(ev model.ScheduleEvent, start time.Time, loc *time.Location) (time.Time, error) {
	if ev.EndDatetime != "" {
		t, err := parseInstant("endDatetime", ev.EndDatetime, loc)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(loc), nil
	}

	c, ok, err := rangeEnd(ev.Time)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return start, nil
	}

	day := midnight(start, loc)
	if ev.IsLongTerm {
		day, err = parseDate("endDate", ev.EndDate, loc)
		if err != nil {
			return time.Time{}, err
		}
	}
	return c.on(day), nil
}

func (n *Normalizer) allDay(ev model.ScheduleEvent, loc *time.Location) (model.Interval, error) {
	var first time.Time
	if ev.Date == "" && ev.Datetime != "" {
		t, err := parseInstant("datetime", ev.Datetime, loc)
		if err != nil {
			return model.Interval{}, err
		}
		first = midnight(t, loc)
	} else {
		d, err := parseDate("date", ev.Date, loc)
		if err != nil {
			return model.Interval{}, err
		}
		first = d
	}

	last := first
	if ev.IsLongTerm {
		d, err := parseDate("endDate", ev.EndDate, loc)
		if err != nil {
			return model.Interval{}, err
		}
		last = d
	}

	return model.Interval{Start: first, End: last.AddDate(0, 0, 1), AllDay: true}, nil
}

// CheckRange validates the long-term invariant: EndDate present and not
// before Date.
func CheckRange(ev model.ScheduleEvent) error {
	if !ev.IsLongTerm {
		return nil
	}
	if strings.TrimSpace(ev.EndDate) == "" {
		return &InvalidRangeError{ID: ev.ID, Date: ev.Date}
	}
	// Comparison is on civil dates, any zone will do.
	start, err := parseDate("date", ev.Date, time.UTC)
	if err != nil {
		return err
	}
	end, err := parseDate("endDate", ev.EndDate, time.UTC)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return &InvalidRangeError{ID: ev.ID, Date: ev.Date, EndDate: ev.EndDate}
	}
	return nil
}

// ParseDate reads a civil date field as midnight in loc.
func ParseDate(v string, loc *time.Location) (time.Time, error) {
	return parseDate("date", v, loc)
}

func parseDate(field, v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, &MalformedDateError{Field: field, Value: v}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	// ORMs often hand DATE columns back as "2024-01-10T00:00:00.000Z"; the
	// calendar date is read in the value's own offset.
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, &MalformedDateError{Field: field, Value: v}
}

func parseInstant(field, v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	for _, layout := range localDateTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &MalformedDateError{Field: field, Value: v}
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// clock is a civil time of day.
type clock struct {
	hour, minute int
}

func (c clock) on(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.hour, c.minute, 0, 0, day.Location())
}

func firstSlot(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, slotSeparators); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// firstClock returns the first HH:MM of the first slot of a time field.
// ok is false when the field is blank.
func firstClock(raw string) (clock, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return clock{}, false, nil
	}
	m := clockPattern.FindStringSubmatch(firstSlot(raw))
	if m == nil {
		return clock{}, false, &MalformedDateError{Field: "time", Value: raw}
	}
	c, err := newClock(raw, m[1], m[2])
	if err != nil {
		return clock{}, false, err
	}
	return c, true, nil
}

// rangeEnd returns the end of an "HH:MM-HH:MM" range in the first slot.
func rangeEnd(raw string) (clock, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return clock{}, false, nil
	}
	m := rangePattern.FindStringSubmatch(firstSlot(raw))
	if m == nil {
		return clock{}, false, nil
	}
	if _, err := newClock(raw, m[1], m[2]); err != nil {
		return clock{}, false, err
	}
	c, err := newClock(raw, m[3], m[4])
	if err != nil {
		return clock{}, false, err
	}
	return c, true, nil
}

func newClock(raw, hh, mm string) (clock, error) {
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return clock{}, &MalformedDateError{Field: "time", Value: raw}
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return clock{}, &MalformedDateError{Field: "time", Value: raw}
	}
	return clock{hour: h, minute: m}, nil
}
