package web

import (
	"net/http"
	"strings"

	"github.com/gorilla/feeds"

	appLog "fansite/internal/log"
	"fansite/internal/schedule"
)

// handleFeed serves upcoming schedules (default range, every category) as
// RSS 2.0.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	rq, err := s.parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lists, err := s.loadScheduleLists(r.Context(), rq)
	if err != nil {
		appLog.Error("feed: store query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load schedules")
		return
	}

	now := s.now()
	feed := &feeds.Feed{
		Title:       s.cfg.SiteName,
		Link:        &feeds.Link{Href: s.cfg.SiteURL},
		Description: s.cfg.SiteName,
		Created:     now,
		Updated:     now,
	}
	for _, list := range [][]scheduleEntry{lists.LongTerm, lists.Regular} {
		for _, e := range list {
			feed.Add(s.feedItem(e))
		}
	}

	rss, err := feed.ToRss()
	if err != nil {
		appLog.Error("feed: render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render feed")
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rss))
}

func (s *Server) feedItem(e scheduleEntry) *feeds.Item {
	link := s.cfg.SiteURL
	if !schedule.IsPlaceholderLink(e.Link) {
		link = strings.TrimSpace(e.Link)
	}
	return &feeds.Item{
		Title:       "[" + e.Category.Label() + "] " + e.Title,
		Link:        &feeds.Link{Href: link},
		Description: schedule.Details(e.ScheduleEvent),
		Id:          e.ID,
		IsPermaLink: "false",
		Created:     e.Start,
	}
}
