package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fansite/internal/config"
	appLog "fansite/internal/log"
	"fansite/internal/metrics"
	"fansite/internal/model"
	"fansite/internal/schedule"
	"fansite/internal/store"
)

// Store is the read side of the data-access layer the API serves from.
type Store interface {
	ListSchedules(ctx context.Context, find store.FindSchedule) ([]model.ScheduleEvent, error)
	ListWorks(ctx context.Context) ([]model.Work, error)
	ListCharacters(ctx context.Context) ([]model.Character, error)
	CountSchedulesByCategory(ctx context.Context, from, to string) ([]model.Stat, error)
}

// Options configures a Server. Location and Now default to time.Local and
// time.Now.
type Options struct {
	Config   *config.Config
	Store    Store
	Location *time.Location
	Now      func() time.Time
}

// Server provides the HTTP JSON API plus the ICS, RSS and metrics endpoints.
type Server struct {
	cfg   *config.Config
	store Store
	loc   *time.Location
	now   func() time.Time
	mux   *http.ServeMux

	normalizer *schedule.Normalizer
	classifier *schedule.Classifier
	links      schedule.LinkBuilder

	cache *responseCache
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		cfg:        cfg,
		store:      opts.Store,
		loc:        loc,
		now:        now,
		mux:        http.NewServeMux(),
		normalizer: schedule.NewNormalizer(loc),
		classifier: schedule.NewClassifier(loc),
		links:      schedule.LinkBuilder{BaseURL: cfg.CalendarBaseURL},
		cache:      newResponseCache(cfg.CacheTTL(), now),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler with metrics and, when configured,
// basic auth applied.
func (s *Server) Handler() http.Handler {
	h := metrics.HTTPMiddleware(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// InvalidateCache drops every cached response. The feed importer calls it
// after writing to the store.
func (s *Server) InvalidateCache() {
	s.cache.Invalidate()
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials mean disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health and /metrics with
// HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="fansite", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())

	s.mux.Handle("GET /api/schedules", s.cached(s.handleSchedules))
	s.mux.Handle("GET /api/schedules.ics", s.cached(s.handleSchedulesICS))
	s.mux.Handle("GET /api/calendar", s.cached(s.handleCalendar))
	s.mux.Handle("GET /api/works", s.cached(s.handleWorks))
	s.mux.Handle("GET /api/birthdays", s.cached(s.handleBirthdays))
	s.mux.Handle("GET /api/stats/categories", s.cached(s.handleCategoryStats))
	s.mux.Handle("GET /api/home", s.cached(s.handleHome))
	s.mux.Handle("GET /feed.xml", s.cached(s.handleFeed))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
