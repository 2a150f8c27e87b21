package web

import (
	"context"
	"net/http"
	"time"

	"fansite/internal/fanout"
	"fansite/internal/metrics"
	"fansite/internal/model"
	"fansite/internal/present"
)

// homeUpcomingDays is how far ahead the home page lists schedules.
const homeUpcomingDays = 7

type sectionStatus struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	TimedOut  bool   `json:"timed_out,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type homeResponse struct {
	Schedules schedulesResponse           `json:"schedules"`
	Works     []present.Group[model.Work] `json:"works"`
	Birthdays []present.Birthday          `json:"birthdays"`
	Stats     []model.Stat                `json:"stats"`
	Sections  []sectionStatus             `json:"sections"`
}

// handleHome loads every home page section in parallel. Each section has
// its own timeout; one that fails or times out is rendered empty and the
// others are unaffected.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	today := s.now().In(s.loc)
	rq := rangeQuery{
		From:     today.Format(time.DateOnly),
		To:       today.AddDate(0, 0, homeUpcomingDays).Format(time.DateOnly),
		Category: model.CategoryAll,
	}
	statsTo := today.AddDate(0, 0, defaultRangeDays).Format(time.DateOnly)

	resp := homeResponse{
		Schedules: schedulesResponse{
			From: rq.From, To: rq.To, Category: rq.Category,
			LongTerm: []scheduleEntry{}, Regular: []scheduleEntry{},
		},
		Works:     []present.Group[model.Work]{},
		Birthdays: []present.Birthday{},
		Stats:     []model.Stat{},
	}

	g := fanout.New(r.Context(), s.cfg.FetchTimeout())
	fanout.Go(g, "schedules", &resp.Schedules, func(ctx context.Context) (schedulesResponse, error) {
		return s.loadScheduleLists(ctx, rq)
	})
	fanout.Go(g, "works", &resp.Works, s.loadWorkGroups)
	fanout.Go(g, "birthdays", &resp.Birthdays, func(ctx context.Context) ([]present.Birthday, error) {
		b, err := s.loadBirthdays(ctx)
		if err != nil {
			return nil, err
		}
		return b.TodayBirthdays, nil
	})
	fanout.Go(g, "stats", &resp.Stats, func(ctx context.Context) ([]model.Stat, error) {
		return s.loadCategoryStats(ctx, rq.From, statsTo)
	})

	outcomes := g.Wait()
	resp.Sections = make([]sectionStatus, 0, len(outcomes))
	for _, o := range outcomes {
		result := "ok"
		switch {
		case o.TimedOut:
			result = "timeout"
		case o.Err != nil:
			result = "error"
		}
		metrics.SectionFetchTotal.WithLabelValues(o.Name, result).Inc()
		metrics.SectionFetchDuration.WithLabelValues(o.Name).Observe(o.Elapsed.Seconds())

		resp.Sections = append(resp.Sections, sectionStatus{
			Name:      o.Name,
			OK:        o.OK(),
			TimedOut:  o.TimedOut,
			ElapsedMs: o.Elapsed.Milliseconds(),
		})
	}

	// Partial pages are served but not cached.
	for _, sec := range resp.Sections {
		if !sec.OK {
			w.Header().Set("Cache-Control", "no-store")
			break
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
