package present

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"

	appLog "fansite/internal/log"
	"fansite/internal/model"
	"fansite/internal/schedule"
)

// Birthday is one entry of a month-day bucket.
type Birthday struct {
	Name      string `json:"name"`
	WorkTitle string `json:"workTitle,omitempty"`
	Month     int    `json:"month"`
	Day       int    `json:"day"`
}

// "3/14", "03／14", "3月14日"
var monthDayPattern = regexp.MustCompile(`^(\d{1,2})\s*[/／月]\s*(\d{1,2})\s*日?$`)

// Written-out dates ("March 14, 1990") go through the absolute-date parser
// only. Strict parsing needs year, month and day, so nothing is filled in
// from the reference time and relative phrases never match.
var (
	birthdayParser = &dps.Parser{ParserTypes: []dps.ParserType{dps.AbsoluteTime}}
	birthdayConfig = &dps.Configuration{
		CurrentTime:     time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
		DefaultTimezone: time.UTC,
		StrictParsing:   true,
	}
)

// MonthDayKey renders the bucket key "M-D" (no padding).
func MonthDayKey(month, day int) string {
	return strconv.Itoa(month) + "-" + strconv.Itoa(day)
}

// TodayKey is the bucket key of now's civil date in loc.
func TodayKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	_, m, d := now.In(loc).Date()
	return MonthDayKey(int(m), d)
}

// GroupByMonthDay buckets characters by birthday. Names are unique within a
// bucket; the first occurrence wins. Characters whose birthday cannot be
// read are left out.
func GroupByMonthDay(chars []model.Character) map[string][]Birthday {
	out := map[string][]Birthday{}
	seen := map[string]map[string]bool{}

	for _, c := range chars {
		if strings.TrimSpace(c.Birthday) == "" {
			continue
		}
		month, day, err := ParseMonthDay(c.Birthday)
		if err != nil {
			appLog.Debug("skip birthday", "character", c.ID, "value", c.Birthday, "error", err.Error())
			continue
		}

		key := MonthDayKey(month, day)
		if seen[key] == nil {
			seen[key] = map[string]bool{}
		}
		if seen[key][c.Name] {
			continue
		}
		seen[key][c.Name] = true
		out[key] = append(out[key], Birthday{Name: c.Name, WorkTitle: c.WorkTitle, Month: month, Day: day})
	}
	return out
}

// SortedMonthDayKeys orders bucket keys by calendar position.
func SortedMonthDayKeys(buckets map[string][]Birthday) []string {
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := buckets[keys[i]][0], buckets[keys[j]][0]
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Day < b.Day
	})
	return keys
}

// ParseMonthDay reads a birthday as month and day. The "M/D" token form and
// full calendar dates are both accepted; partial or relative dates are not.
func ParseMonthDay(v string) (month, day int, err error) {
	v = strings.TrimSpace(v)

	if m := monthDayPattern.FindStringSubmatch(v); m != nil {
		month, _ = strconv.Atoi(m[1])
		day, _ = strconv.Atoi(m[2])
		return checkMonthDay(v, month, day)
	}

	if t, perr := schedule.ParseDate(v, time.UTC); perr == nil {
		return int(t.Month()), t.Day(), nil
	}

	d, perr := birthdayParser.Parse(birthdayConfig, v)
	if perr != nil || d.IsZero() {
		return 0, 0, fmt.Errorf("birthday %q: %w", v, schedule.ErrMalformedDate)
	}
	return int(d.Time.Month()), d.Time.Day(), nil
}

func checkMonthDay(v string, month, day int) (int, int, error) {
	if month < 1 || month > 12 || day < 1 {
		return 0, 0, fmt.Errorf("birthday %q: %w", v, schedule.ErrMalformedDate)
	}
	// 2000 is a leap year, so 2/29 is accepted.
	t := time.Date(2000, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if int(t.Month()) != month || t.Day() != day {
		return 0, 0, fmt.Errorf("birthday %q: %w", v, schedule.ErrMalformedDate)
	}
	return month, day, nil
}
