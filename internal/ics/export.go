package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "fansite/internal/log"
	"fansite/internal/model"
	"fansite/internal/schedule"
)

const productID = "-//fansite//schedule export//JA"

// ExportResult is a built calendar plus counts.
type ExportResult struct {
	Calendar *ical.Calendar
	Exported int
	Skipped  int
}

// Serialize renders the calendar as text/calendar.
func (r *ExportResult) Serialize() string {
	return r.Calendar.Serialize()
}

// Export builds a VCALENDAR from events. Each VEVENT takes its DTSTART and
// DTEND from the same interval Normalize returns for the calendar link:
// all-day events as VALUE=DATE, others as UTC date-times. Events whose
// dates cannot be normalized are skipped and counted.
func Export(events []model.ScheduleEvent, n *schedule.Normalizer, now time.Time) *ExportResult {
	cal := ical.NewCalendarFor("fansite")
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	res := &ExportResult{Calendar: cal}
	for _, ev := range events {
		iv, err := n.Normalize(ev)
		if err != nil {
			appLog.Debug("export skip event", "id", ev.ID, "error", err.Error())
			res.Skipped++
			continue
		}

		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(now)
		if iv.AllDay {
			ve.SetAllDayStartAt(iv.Start)
			ve.SetAllDayEndAt(iv.End)
		} else {
			ve.SetStartAt(iv.Start)
			ve.SetEndAt(iv.End)
		}
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if !schedule.IsPlaceholderLink(ev.Link) {
			ve.SetURL(strings.TrimSpace(ev.Link))
		}
		if ev.Category != "" {
			ve.AddProperty(ical.ComponentPropertyCategories, string(ev.Category))
		}
		res.Exported++
	}
	return res
}
