package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fansite/internal/config"
	"fansite/internal/model"
	"fansite/internal/store"
)

var jst = time.FixedZone("JST", 9*60*60)

// fixedNow is 2024-01-10 12:00 JST.
var fixedNow = time.Date(2024, 1, 10, 12, 0, 0, 0, jst)

type fakeStore struct {
	mu    sync.Mutex
	calls map[string]int
	finds []store.FindSchedule

	events []model.ScheduleEvent
	works  []model.Work
	chars  []model.Character
	stats  []model.Stat

	errs   map[string]error
	delays map[string]time.Duration
}

func (f *fakeStore) enter(ctx context.Context, method string) error {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[method]++
	d := f.delays[method]
	err := f.errs[method]
	f.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeStore) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeStore) ListSchedules(ctx context.Context, find store.FindSchedule) ([]model.ScheduleEvent, error) {
	f.mu.Lock()
	f.finds = append(f.finds, find)
	f.mu.Unlock()
	if err := f.enter(ctx, "ListSchedules"); err != nil {
		return nil, err
	}
	return f.events, nil
}

func (f *fakeStore) ListWorks(ctx context.Context) ([]model.Work, error) {
	if err := f.enter(ctx, "ListWorks"); err != nil {
		return nil, err
	}
	return f.works, nil
}

func (f *fakeStore) ListCharacters(ctx context.Context) ([]model.Character, error) {
	if err := f.enter(ctx, "ListCharacters"); err != nil {
		return nil, err
	}
	return f.chars, nil
}

func (f *fakeStore) CountSchedulesByCategory(ctx context.Context, from, to string) ([]model.Stat, error) {
	if err := f.enter(ctx, "CountSchedulesByCategory"); err != nil {
		return nil, err
	}
	return f.stats, nil
}

func sampleStore() *fakeStore {
	return &fakeStore{
		events: []model.ScheduleEvent{
			{ID: "exhibit", Title: "原画展", Date: "2024-01-05", EndDate: "2024-01-20", IsLongTerm: true, IsAllDay: true, Category: model.CategoryEvent},
			{ID: "live", Title: "朗読劇", Date: "2024-01-12", Time: "19:00-21:00", Category: model.CategoryStage, Location: "東京"},
			{ID: "broken", Title: "未定", Date: "soon", Category: model.CategoryBroadcast},
		},
		works: []model.Work{
			{ID: "w1", Title: "Drama CD", WorkTitle: ""},
			{ID: "w2", Title: "Episode 1", WorkTitle: "あおぞら"},
		},
		chars: []model.Character{
			{ID: "c1", Name: "Hero", Birthday: "1/10"},
			{ID: "c2", Name: "Rival", Birthday: "3月14日"},
		},
		stats: []model.Stat{
			{Key: "event", Count: 1},
			{Key: "stage", Count: 3},
		},
	}
}

func newTestServer(t *testing.T, st Store, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.CacheTTLSeconds = 0
	if mutate != nil {
		mutate(cfg)
	}
	return NewServer(Options{
		Config:   cfg,
		Store:    st,
		Location: jst,
		Now:      func() time.Time { return fixedNow },
	})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type entryJSON struct {
	ID           string    `json:"id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	CalendarURL  string    `json:"calendar_url"`
	PeriodStatus string    `json:"period_status"`
}

type schedulesJSON struct {
	From     string      `json:"from"`
	To       string      `json:"to"`
	LongTerm []entryJSON `json:"long_term"`
	Regular  []entryJSON `json:"regular"`
	Skipped  int         `json:"skipped"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, sampleStore(), nil)
	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestSchedules_PartitionAndSkip(t *testing.T) {
	s := newTestServer(t, sampleStore(), nil)

	rec := get(t, s.Handler(), "/api/schedules?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[schedulesJSON](t, rec)
	assert.Equal(t, "2024-01-01", got.From)
	assert.Equal(t, "2024-01-31", got.To)
	assert.Equal(t, 1, got.Skipped)

	require.Len(t, got.LongTerm, 1)
	assert.Equal(t, "exhibit", got.LongTerm[0].ID)
	assert.Equal(t, "ongoing", got.LongTerm[0].PeriodStatus)

	require.Len(t, got.Regular, 1)
	live := got.Regular[0]
	assert.Equal(t, "live", live.ID)
	assert.Empty(t, live.PeriodStatus)
	assert.True(t, live.Start.Equal(time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)))
	assert.True(t, live.End.Equal(time.Date(2024, 1, 12, 12, 0, 0, 0, time.UTC)))
	assert.Contains(t, live.CalendarURL, "dates=20240112T100000Z%2F20240112T120000Z")
}

func TestSchedules_DefaultRange(t *testing.T) {
	st := sampleStore()
	s := newTestServer(t, st, nil)

	rec := get(t, s.Handler(), "/api/schedules")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, st.finds, 1)
	assert.Equal(t, store.FindSchedule{From: "2024-01-10", To: "2024-02-09"}, st.finds[0])
}

func TestSchedules_Category(t *testing.T) {
	s := newTestServer(t, sampleStore(), nil)

	rec := get(t, s.Handler(), "/api/schedules?from=2024-01-01&to=2024-01-31&category=stage")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[schedulesJSON](t, rec)
	assert.Empty(t, got.LongTerm)
	require.Len(t, got.Regular, 1)
	assert.Equal(t, "live", got.Regular[0].ID)
	assert.Zero(t, got.Skipped)
}

func TestSchedules_BadRequest(t *testing.T) {
	s := newTestServer(t, sampleStore(), nil)

	for _, target := range []string{
		"/api/schedules?category=radio",
		"/api/schedules?from=someday",
		"/api/schedules?from=2024-02-01&to=2024-01-01",
		"/api/calendar?month=2024-13",
		"/api/stats/categories?to=nope",
	} {
		t.Run(target, func(t *testing.T) {
			rec := get(t, s.Handler(), target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestSchedules_StoreError(t *testing.T) {
	st := sampleStore()
	st.errs = map[string]error{"ListSchedules": errors.New("disk on fire")}
	s := newTestServer(t, st, nil)

	rec := get(t, s.Handler(), "/api/schedules")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestSchedulesICS(t *testing.T) {
	s := newTestServer(t, sampleStore(), nil)

	rec := get(t, s.Handler(), "/api/schedules.ics?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:朗読劇")
	assert.Contains(t, body, "DTSTART:20240112T100000Z")
	assert.NotContains(t, body, "未定")
}

func TestCalendar(t *testing.T) {
	s := newTestServer(t, sampleStore(), nil)

	rec := get(t, s.Handler(), "/api/calendar?month=2024-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Month string `json:"month"`
		Days  []struct {
			Date  string      `json:"date"`
			Items []entryJSON `json:"items"`
		} `json:"days"`
		Skipped int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.Equal(t, "2024-01", got.Month)
	assert.Equal(t, 1, got.Skipped)
	// 01-05 through 01-20 inclusive.
	require.Len(t, got.Days, 16)
	assert.Equal(t, "2024-01-05", got.Days[0].Date)
	assert.Equal(t, "2024-01-20", got.Days[15].Date)

	for _, d := range got.Days {
		if d.Date == "2024-01-12" {
			require.Len(t, d.Items, 2)
			assert.Equal(t, "exhibit", d.Items[0].ID)
			assert.Equal(t, "live", d.Items[1].ID)
		}
	}
}

func TestWorks_FallbackLast(t *testing.T) {
	s := newTestServer(t, sampleStore(), nil)

	rec := get(t, s.Handler(), "/api/works")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Groups []struct {
			Title string       `json:"title"`
			Items []model.Work `json:"items"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Groups, 2)
	assert.Equal(t, "あおぞら", got.Groups[0].Title)
	assert.Equal(t, "その他", got.Groups[1].Title)
	assert.Equal(t, "w1", got.Groups[1].Items[0].ID)
}

func TestBirthdays(t *testing.T) {
	s := newTestServer(t, sampleStore(), nil)

	rec := get(t, s.Handler(), "/api/birthdays")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Today          string `json:"today"`
		TodayBirthdays []struct {
			Name string `json:"name"`
		} `json:"today_birthdays"`
		Days []struct {
			Key string `json:"key"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "1-10", got.Today)
	require.Len(t, got.TodayBirthdays, 1)
	assert.Equal(t, "Hero", got.TodayBirthdays[0].Name)
	require.Len(t, got.Days, 2)
	assert.Equal(t, "1-10", got.Days[0].Key)
	assert.Equal(t, "3-14", got.Days[1].Key)
}

func TestCategoryStats_Ranked(t *testing.T) {
	s := newTestServer(t, sampleStore(), nil)

	rec := get(t, s.Handler(), "/api/stats/categories")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Stats []model.Stat `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Stats, 2)
	assert.Equal(t, "stage", got.Stats[0].Key)
	assert.Equal(t, "event", got.Stats[1].Key)
}

func TestHome_SectionsAreIndependent(t *testing.T) {
	st := sampleStore()
	st.errs = map[string]error{"ListWorks": errors.New("works table missing")}
	st.delays = map[string]time.Duration{"ListCharacters": 5 * time.Second}
	s := newTestServer(t, st, func(c *config.Config) {
		c.FetchTimeoutSeconds = 1
		c.CacheTTLSeconds = 60
	})

	started := time.Now()
	rec := get(t, s.Handler(), "/api/home")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, time.Since(started), 4*time.Second)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var got struct {
		Schedules schedulesJSON   `json:"schedules"`
		Works     []any           `json:"works"`
		Birthdays []any           `json:"birthdays"`
		Stats     []model.Stat    `json:"stats"`
		Sections  []sectionStatus `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	require.Len(t, got.Sections, 4)
	byName := map[string]sectionStatus{}
	for _, sec := range got.Sections {
		byName[sec.Name] = sec
	}
	assert.True(t, byName["schedules"].OK)
	assert.True(t, byName["stats"].OK)
	assert.False(t, byName["works"].OK)
	assert.False(t, byName["works"].TimedOut)
	assert.False(t, byName["birthdays"].OK)
	assert.True(t, byName["birthdays"].TimedOut)

	assert.NotNil(t, got.Works)
	assert.Empty(t, got.Works)
	assert.NotNil(t, got.Birthdays)
	assert.Empty(t, got.Birthdays)
	assert.Len(t, got.Stats, 2)
	require.Len(t, got.Schedules.Regular, 1)
	assert.Equal(t, "live", got.Schedules.Regular[0].ID)

	// Partial pages are not cached.
	rec = get(t, s.Handler(), "/api/home")
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestFeed(t *testing.T) {
	s := newTestServer(t, sampleStore(), func(c *config.Config) {
		c.SiteName = "Schedule"
		c.SiteURL = "https://example.jp"
	})

	rec := get(t, s.Handler(), "/feed.xml?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "<rss")
	assert.Contains(t, body, "<title>Schedule</title>")
	assert.Contains(t, body, "[舞台] 朗読劇")
	assert.Contains(t, body, "[イベント] 原画展")
	assert.Contains(t, body, `<guid isPermaLink="false">live</guid>`)
	assert.NotContains(t, body, "未定")
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t, sampleStore(), func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})
	h := s.Handler()

	rec := get(t, h, "/api/works")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/works", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/works", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/metrics").Code)
}

func TestResponseCache(t *testing.T) {
	st := sampleStore()
	s := newTestServer(t, st, func(c *config.Config) { c.CacheTTLSeconds = 60 })
	h := s.Handler()

	first := get(t, h, "/api/works")
	require.Equal(t, http.StatusOK, first.Code)
	second := get(t, h, "/api/works")
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, 1, st.count("ListWorks"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))

	// Different query, different entry.
	get(t, h, "/api/works?v=2")
	assert.Equal(t, 2, st.count("ListWorks"))

	s.InvalidateCache()
	get(t, h, "/api/works")
	assert.Equal(t, 3, st.count("ListWorks"))
}

func TestResponseCache_SkipsErrors(t *testing.T) {
	st := sampleStore()
	st.errs = map[string]error{"ListWorks": errors.New("boom")}
	s := newTestServer(t, st, func(c *config.Config) { c.CacheTTLSeconds = 60 })

	assert.Equal(t, http.StatusInternalServerError, get(t, s.Handler(), "/api/works").Code)
	assert.Equal(t, http.StatusInternalServerError, get(t, s.Handler(), "/api/works").Code)
	assert.Equal(t, 2, st.count("ListWorks"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, sampleStore(), nil)
	h := s.Handler()

	get(t, h, "/health")
	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `fansite_http_requests_total{method="GET",path="GET /health",status="200"}`))
}

func TestSchedules_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "fansite.db"), store.WithLocation(jst))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.UpsertSchedule(ctx, model.ScheduleEvent{
		ID: "night", Title: "Night radio", Date: "2024-01-10", Time: "23:00-01:00", Category: model.CategoryBroadcast,
		Performers: []model.Performer{{Name: "佐藤拓也", IsTakuyaSato: true}},
	}))
	require.NoError(t, db.UpsertSchedule(ctx, model.ScheduleEvent{
		ID: "tour", Title: "Tour", Date: "2024-01-20", EndDate: "2024-02-04", IsLongTerm: true, IsAllDay: true, Category: model.CategoryStage,
	}))

	s := newTestServer(t, db, nil)
	rec := get(t, s.Handler(), "/api/schedules?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[schedulesJSON](t, rec)
	require.Len(t, got.LongTerm, 1)
	assert.Equal(t, "upcoming", got.LongTerm[0].PeriodStatus)
	require.Len(t, got.Regular, 1)
	assert.Contains(t, got.Regular[0].CalendarURL, "dates=20240110T140000Z%2F20240110T160000Z")
}
