package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "fansite/internal/log"
)

const defaultMaxOccurrencesPerEvent = 500

// window bounds recurrence expansion. Non-recurring events are kept
// whatever their dates.
type window struct {
	Start time.Time
	End   time.Time
	Max   int
}

// occurrence is one concrete instance of a feed event. Key identifies the
// instance within a recurring series and is empty for single events.
type occurrence struct {
	ev    vevent
	start time.Time
	end   time.Time
	key   string
}

// expandOccurrences turns parsed VEVENTs into concrete instances:
// RRULE series are expanded inside w, EXDATEs removed and RECURRENCE-ID
// overrides applied. Overrides whose series is missing from the feed are
// kept as single events.
func expandOccurrences(events []vevent, w window) ([]occurrence, error) {
	if w.End.Before(w.Start) {
		return nil, errors.New("expand: window end is before start")
	}
	if w.Max <= 0 {
		w.Max = defaultMaxOccurrencesPerEvent
	}

	var order []string
	bases := map[string][]vevent{}
	overrides := map[string][]vevent{}
	for _, ev := range events {
		if ev.isOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, ok := bases[ev.UID]; !ok {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}
	for _, ev := range events {
		if ev.isOverride() {
			if _, ok := bases[ev.UID]; !ok {
				order = append(order, ev.UID)
				bases[ev.UID] = overrides[ev.UID]
				delete(overrides, ev.UID)
			}
		}
	}

	out := make([]occurrence, 0, len(events))
	for _, uid := range order {
		for _, ev := range bases[uid] {
			if ev.RawRRule == "" {
				out = append(out, expandSingle(ev, overrides[uid]))
				continue
			}
			occ, hitCap := expandRecurring(ev, overrides[uid], w)
			if hitCap {
				appLog.Warn("recurring event truncated", "uid", uid, "cap", w.Max)
			}
			out = append(out, occ...)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].start.Equal(out[j].start) {
			return out[i].start.Before(out[j].start)
		}
		return out[i].ev.UID < out[j].ev.UID
	})
	return out, nil
}

func expandSingle(ev vevent, overrides []vevent) occurrence {
	if o, ok := findOverride(overrides, ev.Start); ok {
		return occurrence{ev: o, start: o.Start, end: o.End}
	}
	return occurrence{ev: ev, start: ev.Start, end: ev.End}
}

func expandRecurring(ev vevent, overrides []vevent, w window) ([]occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("bad RRULE, keeping first instance only", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return []occurrence{{ev: ev, start: ev.Start, end: ev.End}}, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	times := set.Between(w.Start.In(ev.Start.Location()), w.End.In(ev.Start.Location()), true)
	hitCap := false
	if len(times) > w.Max {
		times = times[:w.Max]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]occurrence, 0, len(times))
	for _, start := range times {
		occ := occurrence{ev: ev, start: start, end: start.Add(dur), key: instanceKey(start, ev.AllDay)}
		if ev.AllDay {
			// Day arithmetic keeps whole days across DST in the series zone.
			days := int(dur.Hours()+12) / 24
			occ.end = start.AddDate(0, 0, days)
		}
		if o, ok := findOverride(overrides, start); ok {
			occ.ev, occ.start, occ.end = o, o.Start, o.End
		}
		out = append(out, occ)
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID is start.
func findOverride(overrides []vevent, start time.Time) (vevent, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return vevent{}, false
}

func instanceKey(start time.Time, allDay bool) string {
	if allDay {
		return start.Format("20060102")
	}
	return start.UTC().Format("20060102T150405Z")
}
