package web

import (
	"context"
	"net/http"

	appLog "fansite/internal/log"
	"fansite/internal/model"
	"fansite/internal/present"
)

type worksResponse struct {
	Groups []present.Group[model.Work] `json:"groups"`
}

func (s *Server) loadWorkGroups(ctx context.Context) ([]present.Group[model.Work], error) {
	works, err := s.store.ListWorks(ctx)
	if err != nil {
		return nil, err
	}
	return present.GroupByWorkTitle(works, func(w model.Work) string { return w.WorkTitle }), nil
}

func (s *Server) handleWorks(w http.ResponseWriter, r *http.Request) {
	groups, err := s.loadWorkGroups(r.Context())
	if err != nil {
		appLog.Error("api works: store query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load works")
		return
	}
	writeJSON(w, http.StatusOK, worksResponse{Groups: groups})
}

type birthdayDay struct {
	Key       string             `json:"key"`
	Birthdays []present.Birthday `json:"birthdays"`
}

type birthdaysResponse struct {
	Today          string             `json:"today"`
	TodayBirthdays []present.Birthday `json:"today_birthdays"`
	Days           []birthdayDay      `json:"days"`
}

func (s *Server) loadBirthdays(ctx context.Context) (birthdaysResponse, error) {
	chars, err := s.store.ListCharacters(ctx)
	if err != nil {
		return birthdaysResponse{}, err
	}
	buckets := present.GroupByMonthDay(chars)

	resp := birthdaysResponse{
		Today: present.TodayKey(s.now(), s.loc),
		Days:  make([]birthdayDay, 0, len(buckets)),
	}
	for _, key := range present.SortedMonthDayKeys(buckets) {
		resp.Days = append(resp.Days, birthdayDay{Key: key, Birthdays: buckets[key]})
	}
	resp.TodayBirthdays = buckets[resp.Today]
	if resp.TodayBirthdays == nil {
		resp.TodayBirthdays = []present.Birthday{}
	}
	return resp, nil
}

// handleBirthdays returns character birthdays bucketed by month-day, plus
// the key of today in the site zone.
func (s *Server) handleBirthdays(w http.ResponseWriter, r *http.Request) {
	resp, err := s.loadBirthdays(r.Context())
	if err != nil {
		appLog.Error("api birthdays: store query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load birthdays")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
