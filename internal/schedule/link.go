package schedule

import (
	"net/url"
	"strings"
	"time"

	"fansite/internal/model"
)

// DefaultCalendarBaseURL is the "add event" endpoint of the external
// calendar provider.
const DefaultCalendarBaseURL = "https://calendar.google.com/calendar/render"

const utcStampLayout = "20060102T150405Z"

// placeholderLinks are link values editors use for "no link yet".
var placeholderLinks = map[string]bool{
	"#": true,
	"-": true,
}

// LinkBuilder composes external calendar "add event" URLs.
type LinkBuilder struct {
	BaseURL string
}

// URL builds the quick-add URL for ev. The dates parameter is derived only
// from iv, which must come from Normalize for the same event. The result
// depends on its inputs alone.
func (b LinkBuilder) URL(ev model.ScheduleEvent, iv model.Interval) string {
	base := b.BaseURL
	if base == "" {
		base = DefaultCalendarBaseURL
	}

	var q strings.Builder
	q.WriteString("action=TEMPLATE")
	writeParam(&q, "text", ev.Title)
	writeParam(&q, "dates", FormatDates(iv))
	writeParam(&q, "details", Details(ev))
	writeParam(&q, "location", ev.Location)

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.String()
}

func writeParam(b *strings.Builder, key, value string) {
	b.WriteByte('&')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(value))
}

// FormatDates renders iv as "start/end" UTC stamps.
func FormatDates(iv model.Interval) string {
	return iv.Start.UTC().Format(utcStampLayout) + "/" + iv.End.UTC().Format(utcStampLayout)
}

// ParseDates is the inverse of FormatDates.
func ParseDates(s string) (start, end time.Time, err error) {
	a, b, ok := strings.Cut(s, "/")
	if !ok {
		return time.Time{}, time.Time{}, &MalformedDateError{Field: "dates", Value: s}
	}
	start, err = time.Parse(utcStampLayout, a)
	if err != nil {
		return time.Time{}, time.Time{}, &MalformedDateError{Field: "dates", Value: s}
	}
	end, err = time.Parse(utcStampLayout, b)
	if err != nil {
		return time.Time{}, time.Time{}, &MalformedDateError{Field: "dates", Value: s}
	}
	return start, end, nil
}

// IsPlaceholderLink reports whether link is empty or an editor placeholder.
func IsPlaceholderLink(link string) bool {
	link = strings.TrimSpace(link)
	return link == "" || placeholderLinks[link]
}

// Details joins the event link and description with a blank line. Empty or
// placeholder links are left out.
func Details(ev model.ScheduleEvent) string {
	link := strings.TrimSpace(ev.Link)
	if IsPlaceholderLink(link) {
		link = ""
	}
	desc := ev.Description
	if strings.TrimSpace(desc) == "" {
		desc = ""
	}

	switch {
	case link != "" && desc != "":
		return link + "\n\n" + desc
	case link != "":
		return link
	default:
		return desc
	}
}
