package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fansite/internal/ics"
	appLog "fansite/internal/log"
	"fansite/internal/metrics"
	"fansite/internal/model"
	"fansite/internal/present"
	"fansite/internal/schedule"
	"fansite/internal/store"
)

// defaultRangeDays is the length of the default from/to window.
const defaultRangeDays = 30

// scheduleEntry is a schedule record plus its normalized interval, the
// external calendar link and, for long-term events, the period status.
type scheduleEntry struct {
	model.ScheduleEvent
	Start        time.Time          `json:"start"`
	End          time.Time          `json:"end"`
	CalendarURL  string             `json:"calendar_url"`
	PeriodStatus model.PeriodStatus `json:"period_status,omitempty"`

	interval model.Interval
}

type rangeQuery struct {
	From     string
	To       string
	Category model.Category
}

// parseRange reads from, to and category. from defaults to today in the
// site zone, to to from plus 30 days.
func (s *Server) parseRange(r *http.Request) (rangeQuery, error) {
	q := r.URL.Query()
	rq := rangeQuery{}

	from := s.now().In(s.loc)
	if v := q.Get("from"); v != "" {
		t, err := schedule.ParseDate(v, s.loc)
		if err != nil {
			return rq, fmt.Errorf("from: %w", err)
		}
		from = t
	}
	to := from.AddDate(0, 0, defaultRangeDays)
	if v := q.Get("to"); v != "" {
		t, err := schedule.ParseDate(v, s.loc)
		if err != nil {
			return rq, fmt.Errorf("to: %w", err)
		}
		to = t
	}
	rq.From = from.Format(time.DateOnly)
	rq.To = to.Format(time.DateOnly)
	if rq.To < rq.From {
		return rq, fmt.Errorf("to %s precedes from %s", rq.To, rq.From)
	}

	cat, err := schedule.ParseCategory(q.Get("category"))
	if err != nil {
		return rq, err
	}
	rq.Category = cat
	return rq, nil
}

// loadSchedules reads the events overlapping [from, to] and keeps those of
// category.
func (s *Server) loadSchedules(ctx context.Context, from, to string, category model.Category) ([]model.ScheduleEvent, error) {
	events, err := s.store.ListSchedules(ctx, store.FindSchedule{From: from, To: to})
	if err != nil {
		return nil, err
	}
	return schedule.Filter(events, category), nil
}

// buildEntries normalizes events. Events whose dates cannot be normalized
// or classified are left out and counted.
func (s *Server) buildEntries(events []model.ScheduleEvent, now time.Time) ([]scheduleEntry, int) {
	entries := make([]scheduleEntry, 0, len(events))
	skipped := 0
	for _, ev := range events {
		iv, err := s.normalizer.Normalize(ev)
		if err != nil {
			s.skip(ev, err)
			skipped++
			continue
		}
		e := scheduleEntry{
			ScheduleEvent: ev,
			Start:         iv.Start,
			End:           iv.End,
			CalendarURL:   s.links.URL(ev, iv),
			interval:      iv,
		}
		if ev.IsLongTerm {
			status, err := s.classifier.Classify(ev, now)
			if err != nil {
				s.skip(ev, err)
				skipped++
				continue
			}
			e.PeriodStatus = status
		}
		entries = append(entries, e)
	}
	return entries, skipped
}

func (s *Server) skip(ev model.ScheduleEvent, err error) {
	reason := "other"
	switch {
	case errors.Is(err, schedule.ErrInvalidRange):
		reason = "invalid_range"
	case errors.Is(err, schedule.ErrMalformedDate):
		reason = "malformed_date"
	}
	metrics.SkippedEventsTotal.WithLabelValues(reason).Inc()
	appLog.Debug("skip schedule", "id", ev.ID, "reason", reason, "error", err.Error())
}

type schedulesResponse struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Category model.Category  `json:"category"`
	LongTerm []scheduleEntry `json:"long_term"`
	Regular  []scheduleEntry `json:"regular"`
	Skipped  int             `json:"skipped"`
}

// loadScheduleLists is the body of /api/schedules, shared with /api/home.
func (s *Server) loadScheduleLists(ctx context.Context, rq rangeQuery) (schedulesResponse, error) {
	events, err := s.loadSchedules(ctx, rq.From, rq.To, rq.Category)
	if err != nil {
		return schedulesResponse{}, err
	}
	longTerm, regular := schedule.Partition(events)

	now := s.now()
	resp := schedulesResponse{From: rq.From, To: rq.To, Category: rq.Category}
	var n int
	resp.LongTerm, n = s.buildEntries(longTerm, now)
	resp.Skipped += n
	resp.Regular, n = s.buildEntries(regular, now)
	resp.Skipped += n
	return resp, nil
}

// handleSchedules returns long-term and regular schedules in a date range.
//
// GET /api/schedules?from=YYYY-MM-DD&to=YYYY-MM-DD&category=stage
func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	rq, err := s.parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.loadScheduleLists(r.Context(), rq)
	if err != nil {
		appLog.Error("api schedules: store query failed", err, "from", rq.From, "to", rq.To)
		writeError(w, http.StatusInternalServerError, "failed to load schedules")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSchedulesICS exports the same selection as /api/schedules as an
// iCalendar file.
func (s *Server) handleSchedulesICS(w http.ResponseWriter, r *http.Request) {
	rq, err := s.parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.loadSchedules(r.Context(), rq.From, rq.To, rq.Category)
	if err != nil {
		appLog.Error("api schedules.ics: store query failed", err, "from", rq.From, "to", rq.To)
		writeError(w, http.StatusInternalServerError, "failed to load schedules")
		return
	}

	res := ics.Export(events, s.normalizer, s.now())
	if res.Skipped > 0 {
		metrics.SkippedEventsTotal.WithLabelValues("export").Add(float64(res.Skipped))
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedules.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(res.Serialize()))
}

type calendarResponse struct {
	Month    string                       `json:"month"`
	Category model.Category               `json:"category"`
	Days     []present.Day[scheduleEntry] `json:"days"`
	Skipped  int                          `json:"skipped"`
}

// handleCalendar buckets the schedules of a month under every day they
// touch.
//
// GET /api/calendar?month=YYYY-MM&category=event
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	month := q.Get("month")
	if month == "" {
		month = s.now().In(s.loc).Format("2006-01")
	}
	first, err := time.ParseInLocation("2006-01", month, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("month %q: expected YYYY-MM", month))
		return
	}
	cat, err := schedule.ParseCategory(q.Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	from := first.Format(time.DateOnly)
	to := first.AddDate(0, 1, -1).Format(time.DateOnly)
	events, err := s.loadSchedules(r.Context(), from, to, cat)
	if err != nil {
		appLog.Error("api calendar: store query failed", err, "month", month)
		writeError(w, http.StatusInternalServerError, "failed to load schedules")
		return
	}

	entries, skipped := s.buildEntries(events, s.now())
	dated := make([]present.Dated[scheduleEntry], 0, len(entries))
	for _, e := range entries {
		dated = append(dated, present.Dated[scheduleEntry]{
			Item: e,
			Days: schedule.ExpandDays(e.interval, s.loc),
		})
	}

	writeJSON(w, http.StatusOK, calendarResponse{
		Month:    month,
		Category: cat,
		Days:     present.GroupByDay(dated, month),
		Skipped:  skipped,
	})
}

type categoryStatsResponse struct {
	From  string       `json:"from"`
	To    string       `json:"to"`
	Stats []model.Stat `json:"stats"`
}

func (s *Server) loadCategoryStats(ctx context.Context, from, to string) ([]model.Stat, error) {
	stats, err := s.store.CountSchedulesByCategory(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return present.RankByCount(stats), nil
}

// handleCategoryStats ranks categories by their schedule count in a range.
func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	rq, err := s.parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := s.loadCategoryStats(r.Context(), rq.From, rq.To)
	if err != nil {
		appLog.Error("api stats: store query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, categoryStatsResponse{From: rq.From, To: rq.To, Stats: stats})
}
