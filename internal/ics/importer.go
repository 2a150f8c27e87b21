package ics

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	appLog "fansite/internal/log"
	"fansite/internal/metrics"
	"fansite/internal/model"
)

// ErrAllFeedsFailed is returned by Run when no configured feed imported.
var ErrAllFeedsFailed = errors.New("every feed failed to import")

// Store is the part of the data-access layer the importer writes to.
type Store interface {
	UpsertSchedule(ctx context.Context, ev model.ScheduleEvent) error
	PruneSource(ctx context.Context, source string, keep []string) (int64, error)
}

// FeedReport is the result of importing one feed.
type FeedReport struct {
	ID          string `json:"id"`
	Events      int    `json:"events"`
	Skipped     int    `json:"skipped"`
	Pruned      int64  `json:"pruned"`
	NotModified bool   `json:"not_modified"`
	Err         error  `json:"-"`
}

type Report struct {
	Feeds []FeedReport
}

func (r Report) Failed() int {
	n := 0
	for _, f := range r.Feeds {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Changed reports whether any feed wrote to the store. An unchanged feed
// body still counts: its recurring events are re-expanded against a moved
// window.
func (r Report) Changed() bool {
	for _, f := range r.Feeds {
		if f.Err == nil {
			return true
		}
	}
	return false
}

// Importer pulls every configured feed into the store.
type Importer struct {
	Fetcher  *Fetcher
	Store    Store
	Feeds    []FeedSource
	Location *time.Location

	// Recurring events are expanded from Now()-Past to Now()+Future.
	// Zero values mean 30 days back and one year ahead.
	Past   time.Duration
	Future time.Duration

	// Concurrency bounds parallel fetches; zero means 2.
	Concurrency int64

	// OnChange runs after a Run that wrote to the store.
	OnChange func()

	Now func() time.Time
}

func (im *Importer) now() time.Time {
	if im.Now != nil {
		return im.Now()
	}
	return time.Now()
}

// Run imports every feed. One feed failing does not stop the others; the
// error is ErrAllFeedsFailed only when every feed failed.
func (im *Importer) Run(ctx context.Context) (Report, error) {
	report := Report{Feeds: make([]FeedReport, len(im.Feeds))}
	if len(im.Feeds) == 0 {
		return report, nil
	}

	limit := im.Concurrency
	if limit <= 0 {
		limit = 2
	}
	sem := semaphore.NewWeighted(limit)

	started := time.Now()
	var wg sync.WaitGroup
	for i, src := range im.Feeds {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(im.Feeds); j++ {
				report.Feeds[j] = FeedReport{ID: im.Feeds[j].ID, Err: err}
			}
			break
		}
		wg.Add(1)
		go func(i int, src FeedSource) {
			defer wg.Done()
			defer sem.Release(1)
			report.Feeds[i] = im.importOne(ctx, src)
		}(i, src)
	}
	wg.Wait()

	failed := report.Failed()
	appLog.Info("feed import finished", "feeds", len(im.Feeds), "failed", failed,
		"elapsed_ms", time.Since(started).Milliseconds())

	if report.Changed() && im.OnChange != nil {
		im.OnChange()
	}
	if failed == len(im.Feeds) {
		return report, ErrAllFeedsFailed
	}
	return report, nil
}

func (im *Importer) importOne(ctx context.Context, src FeedSource) FeedReport {
	rep := FeedReport{ID: src.ID}

	res, err := im.Fetcher.FetchOne(ctx, src)
	if err != nil {
		appLog.Error("feed import failed", err, "feed", src.ID)
		metrics.FeedImportTotal.WithLabelValues(src.ID, "error").Inc()
		rep.Err = err
		return rep
	}
	// A 304 body comes from the disk cache and is imported like a fresh one.
	rep.NotModified = res.NotModified

	past, future := im.Past, im.Future
	if past <= 0 {
		past = 30 * 24 * time.Hour
	}
	if future <= 0 {
		future = 365 * 24 * time.Hour
	}
	now := im.now()
	events, err := ParseFeed(src, res.Body, ParseOptions{
		Location:    im.Location,
		WindowStart: now.Add(-past),
		WindowEnd:   now.Add(future),
	})
	if err != nil {
		appLog.Error("feed parse failed", err, "feed", src.ID)
		metrics.FeedImportTotal.WithLabelValues(src.ID, "error").Inc()
		rep.Err = err
		return rep
	}

	keep := make([]string, 0, len(events))
	for _, ev := range events {
		if err := im.Store.UpsertSchedule(ctx, ev); err != nil {
			appLog.Warn("skip imported event", "feed", src.ID, "id", ev.ID, "error", err.Error())
			rep.Skipped++
			continue
		}
		keep = append(keep, ev.ID)
		rep.Events++
	}

	// A feed whose every event was rejected keeps its previous rows.
	if rep.Events > 0 || rep.Skipped == 0 {
		pruned, err := im.Store.PruneSource(ctx, src.ID, keep)
		if err != nil {
			appLog.Error("feed prune failed", err, "feed", src.ID)
		}
		rep.Pruned = pruned
	}

	result := "ok"
	if rep.NotModified {
		result = "not_modified"
	}
	metrics.FeedImportTotal.WithLabelValues(src.ID, result).Inc()
	metrics.FeedEvents.WithLabelValues(src.ID).Set(float64(rep.Events))
	appLog.Info("feed imported", "feed", src.ID, "events", rep.Events, "skipped", rep.Skipped,
		"pruned", rep.Pruned, "from_cache", res.FromCache, "not_modified", rep.NotModified)
	return rep
}
