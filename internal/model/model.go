package model

import "time"

// Category is the schedule category key stored with every event.
type Category string

const (
	CategoryEvent      Category = "event"
	CategoryStage      Category = "stage"
	CategoryBroadcast  Category = "broadcast"
	CategoryStreaming  Category = "streaming"
	CategoryVoiceGuide Category = "voice_guide"
	CategoryOther      Category = "other"

	// CategoryAll is the filter selector that matches every event.
	CategoryAll Category = "all"
)

// Categories lists the recognized category keys in display order.
var Categories = []Category{
	CategoryEvent,
	CategoryStage,
	CategoryBroadcast,
	CategoryStreaming,
	CategoryVoiceGuide,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryEvent:      "イベント",
	CategoryStage:      "舞台",
	CategoryBroadcast:  "放送",
	CategoryStreaming:  "配信",
	CategoryVoiceGuide: "音声ガイド",
	CategoryOther:      "その他",
	CategoryAll:        "すべて",
}

// Label is the display name of c, or c itself when unknown.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// LocationType distinguishes physical venues from broadcast/streaming.
type LocationType string

const (
	LocationVenue     LocationType = "venue"
	LocationBroadcast LocationType = "broadcast"
	LocationStreaming LocationType = "streaming"
	LocationOnline    LocationType = "online"
)

// PeriodStatus is the classification of a long-term event relative to now.
type PeriodStatus string

const (
	PeriodUpcoming PeriodStatus = "upcoming"
	PeriodOngoing  PeriodStatus = "ongoing"
	PeriodEnded    PeriodStatus = "ended"
)

type Performer struct {
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	IsTakuyaSato bool   `json:"isTakuyaSato"`
}

// ScheduleEvent is a schedule record as read from the store or an imported
// feed. It is treated as immutable once loaded.
//
// Date and EndDate are civil dates (YYYY-MM-DD). Time is either "HH:MM" or a
// range "HH:MM-HH:MM" and may carry several alternatives ("19:00 / 21:00").
// Datetime and EndDatetime, when set, are absolute timestamps and take
// precedence over Date+Time.
type ScheduleEvent struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Date         string       `json:"date"`
	EndDate      string       `json:"endDate,omitempty"`
	Time         string       `json:"time,omitempty"`
	IsAllDay     bool         `json:"isAllDay"`
	IsLongTerm   bool         `json:"isLongTerm"`
	Datetime     string       `json:"datetime,omitempty"`
	EndDatetime  string       `json:"endDatetime,omitempty"`
	Category     Category     `json:"category"`
	Location     string       `json:"location,omitempty"`
	Prefecture   string       `json:"prefecture,omitempty"`
	LocationType LocationType `json:"locationType,omitempty"`
	Performers   []Performer  `json:"performers,omitempty"`
	Link         string       `json:"link,omitempty"`
	Description  string       `json:"description,omitempty"`

	// Source is the feed ID for imported events, empty for hand-entered ones.
	Source string `json:"source,omitempty"`
}

// Interval is the canonical absolute start/end pair of an event.
// End is never before Start.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// AllDay marks intervals spanning whole civil days in the site zone.
	AllDay bool `json:"allDay"`
}

// Work is a title the actor appeared in (anime, game, drama CD, ...).
type Work struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	WorkTitle string `json:"workTitle,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Year      int    `json:"year,omitempty"`
}

// Character is a role voiced by the actor. Birthday is free text as entered,
// e.g. "3/14" or "1998-03-14".
type Character struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	WorkTitle string `json:"workTitle,omitempty"`
	Birthday  string `json:"birthday,omitempty"`
}

// Stat is a labelled count used for ranking views.
type Stat struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Count int    `json:"count"`
}
