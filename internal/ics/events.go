package ics

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"fansite/internal/model"
	"fansite/internal/sanitize"
	"fansite/internal/schedule"
)

// idNamespace seeds the name-based (v5) UUIDs of imported events, so the
// same feed entry always maps to the same schedule ID.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("fansite:feed-event"))

// ParseOptions controls how a feed body becomes schedule events.
type ParseOptions struct {
	// Location is the site zone used for civil dates and floating times.
	Location *time.Location
	// WindowStart and WindowEnd bound the expansion of recurring events.
	WindowStart time.Time
	WindowEnd   time.Time
	// MaxOccurrences caps instances per recurring event.
	MaxOccurrences int
}

// ParseFeed maps the VEVENTs of body to schedule events.
//
//   - UID (plus the instance start for recurring events) becomes a UUIDv5 ID.
//   - SUMMARY, DESCRIPTION and LOCATION are reduced to plain text.
//   - Timed events get Datetime/EndDatetime (RFC3339, UTC) and Date/Time in
//     the site zone.
//   - All-day events get IsAllDay; spans of more than one day also become
//     long-term with an inclusive EndDate.
func ParseFeed(src FeedSource, body []byte, opts ParseOptions) ([]model.ScheduleEvent, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	parsed, err := parseCalendar(src, body, loc)
	if err != nil {
		return nil, err
	}
	occs, err := expandOccurrences(parsed, window{Start: opts.WindowStart, End: opts.WindowEnd, Max: opts.MaxOccurrences})
	if err != nil {
		return nil, err
	}

	out := make([]model.ScheduleEvent, 0, len(occs))
	for _, occ := range occs {
		out = append(out, toScheduleEvent(src, occ, loc))
	}
	return out, nil
}

// EventID is the schedule ID of a feed entry. key is empty for
// non-recurring events.
func EventID(feedID, uid, key string) string {
	name := feedID + "/" + uid
	if key != "" {
		name += "/" + key
	}
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

func toScheduleEvent(src FeedSource, occ occurrence, loc *time.Location) model.ScheduleEvent {
	ev := model.ScheduleEvent{
		ID:          EventID(src.ID, occ.ev.UID, occ.key),
		Title:       sanitize.Line(occ.ev.Summary),
		Description: sanitize.Text(occ.ev.Description),
		Location:    sanitize.Line(occ.ev.Location),
		Link:        strings.TrimSpace(occ.ev.URL),
		Category:    feedCategory(src, occ.ev.Categories),
		Source:      src.ID,
	}
	if ev.Location != "" {
		ev.LocationType = model.LocationVenue
	}

	if occ.ev.AllDay {
		days := int(occ.end.Sub(occ.start).Hours()+12) / 24
		if days < 1 {
			days = 1
		}
		ev.IsAllDay = true
		ev.Date = occ.start.Format(time.DateOnly)
		if days > 1 {
			ev.IsLongTerm = true
			ev.EndDate = occ.start.AddDate(0, 0, days-1).Format(time.DateOnly)
		}
		return ev
	}

	start := occ.start.In(loc)
	end := occ.end.In(loc)
	ev.Date = start.Format(time.DateOnly)
	ev.Datetime = occ.start.UTC().Format(time.RFC3339)
	ev.Time = start.Format("15:04")
	if end.After(start) {
		ev.EndDatetime = occ.end.UTC().Format(time.RFC3339)
		ev.Time += "-" + end.Format("15:04")
	}
	return ev
}

// feedCategory prefers a known CATEGORIES value of the event over the feed
// default.
func feedCategory(src FeedSource, cats []string) model.Category {
	for _, c := range cats {
		if cat := model.Category(strings.ToLower(c)); schedule.IsKnownCategory(cat) {
			return cat
		}
	}
	if schedule.IsKnownCategory(src.Category) {
		return src.Category
	}
	return model.CategoryOther
}
