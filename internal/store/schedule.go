package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	appLog "fansite/internal/log"
	"fansite/internal/model"
	"fansite/internal/schedule"
)

const isoDate = "2006-01-02"

// FindSchedule selects schedules overlapping [From, To] (inclusive ISO
// dates). Empty bounds are open; an empty or "all" Category matches every
// category.
type FindSchedule struct {
	From     string
	To       string
	Category model.Category
	Source   string
}

const scheduleColumns = `id, title, date, end_date, time, is_all_day, is_long_term,
	datetime, end_datetime, category, location, prefecture, location_type,
	link, description, source`

func (d *DB) ListSchedules(ctx context.Context, find FindSchedule) ([]model.ScheduleEvent, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.From != "" {
		where, args = append(where, "last_date >= ?"), append(args, find.From)
	}
	if find.To != "" {
		where, args = append(where, "date <= ?"), append(args, find.To)
	}
	if c := find.Category; c != "" && c != model.CategoryAll {
		where, args = append(where, "category = ?"), append(args, string(c))
	}
	if find.Source != "" {
		where, args = append(where, "source = ?"), append(args, find.Source)
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY date ASC, length(time) ASC, time ASC, id ASC`

	started := time.Now()
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}

	list := make([]model.ScheduleEvent, 0)
	index := map[string]int{}
	for rows.Next() {
		var ev model.ScheduleEvent
		var allDay, longTerm int
		var category, locationType string
		if err := rows.Scan(
			&ev.ID, &ev.Title, &ev.Date, &ev.EndDate, &ev.Time, &allDay, &longTerm,
			&ev.Datetime, &ev.EndDatetime, &category, &ev.Location, &ev.Prefecture, &locationType,
			&ev.Link, &ev.Description, &ev.Source,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		ev.IsAllDay = allDay != 0
		ev.IsLongTerm = longTerm != 0
		ev.Category = model.Category(category)
		ev.LocationType = model.LocationType(locationType)

		index[ev.ID] = len(list)
		list = append(list, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate schedules: %w", err)
	}
	// Released before the performer query; the pool holds one connection.
	rows.Close()

	if err := d.loadPerformers(ctx, list, index); err != nil {
		return nil, err
	}

	appLog.Debug("schedules listed", "from", find.From, "to", find.To, "category", string(find.Category),
		"count", len(list), "elapsed_ms", time.Since(started).Milliseconds())
	return list, nil
}

func (d *DB) loadPerformers(ctx context.Context, list []model.ScheduleEvent, index map[string]int) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]any, 0, len(list))
	for _, ev := range list {
		ids = append(ids, ev.ID)
	}
	query := `SELECT schedule_id, name, role, is_takuya_sato FROM schedule_performers
		WHERE schedule_id IN (` + placeholders(len(ids)) + `)
		ORDER BY schedule_id, position`

	rows, err := d.db.QueryContext(ctx, query, ids...)
	if err != nil {
		return fmt.Errorf("failed to query performers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var p model.Performer
		var self int
		if err := rows.Scan(&id, &p.Name, &p.Role, &self); err != nil {
			return fmt.Errorf("failed to scan performer: %w", err)
		}
		p.IsTakuyaSato = self != 0
		i := index[id]
		list[i].Performers = append(list[i].Performers, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate performers: %w", err)
	}
	return nil
}

// UpsertSchedule inserts ev or replaces the stored row with the same ID,
// performers included. Date and EndDate are stored as YYYY-MM-DD so range
// queries can compare them as text; last_date is the latest civil day the
// event touches in the site zone.
func (d *DB) UpsertSchedule(ctx context.Context, ev model.ScheduleEvent) error {
	if ev.ID == "" {
		return fmt.Errorf("schedule has no id")
	}
	if err := schedule.CheckRange(ev); err != nil {
		return err
	}

	date, err := schedule.ParseDate(ev.Date, time.UTC)
	if err != nil {
		return err
	}
	ev.Date = date.Format(isoDate)
	if ev.EndDate != "" {
		end, err := schedule.ParseDate(ev.EndDate, time.UTC)
		if err != nil {
			return err
		}
		ev.EndDate = end.Format(isoDate)
	}
	if ev.Category == "" {
		ev.Category = model.CategoryOther
	}
	lastDate := d.lastDate(ev)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt := `INSERT INTO schedules (` + scheduleColumns + `, last_date, updated_ts)
		VALUES (` + placeholders(17) + `, strftime('%s', 'now'))
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title, date = excluded.date, end_date = excluded.end_date,
			last_date = excluded.last_date,
			time = excluded.time, is_all_day = excluded.is_all_day, is_long_term = excluded.is_long_term,
			datetime = excluded.datetime, end_datetime = excluded.end_datetime,
			category = excluded.category, location = excluded.location, prefecture = excluded.prefecture,
			location_type = excluded.location_type, link = excluded.link,
			description = excluded.description, source = excluded.source,
			updated_ts = excluded.updated_ts`
	if _, err := tx.ExecContext(ctx, stmt,
		ev.ID, ev.Title, ev.Date, ev.EndDate, ev.Time, boolInt(ev.IsAllDay), boolInt(ev.IsLongTerm),
		ev.Datetime, ev.EndDatetime, string(ev.Category), ev.Location, ev.Prefecture, string(ev.LocationType),
		ev.Link, ev.Description, ev.Source, lastDate,
	); err != nil {
		return fmt.Errorf("failed to upsert schedule %s: %w", ev.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_performers WHERE schedule_id = ?`, ev.ID); err != nil {
		return fmt.Errorf("failed to clear performers of %s: %w", ev.ID, err)
	}
	for i, p := range ev.Performers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_performers (schedule_id, position, name, role, is_takuya_sato) VALUES (?, ?, ?, ?, ?)`,
			ev.ID, i, p.Name, p.Role, boolInt(p.IsTakuyaSato),
		); err != nil {
			return fmt.Errorf("failed to insert performer of %s: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule %s: %w", ev.ID, err)
	}
	return nil
}

// lastDate is the latest of Date, EndDate and the civil day of the
// normalized end. An end at exactly midnight closes the previous day.
// Date and EndDate must already be canonical.
func (d *DB) lastDate(ev model.ScheduleEvent) string {
	last := ev.Date
	if ev.EndDate > last {
		last = ev.EndDate
	}
	iv, err := d.norm.Normalize(ev)
	if err != nil {
		appLog.Debug("schedule interval unreadable, last day from dates", "id", ev.ID, "error", err.Error())
		return last
	}
	end := iv.End
	if end.After(iv.Start) {
		end = end.Add(-time.Nanosecond)
	}
	if day := end.In(d.norm.Location).Format(isoDate); day > last {
		last = day
	}
	return last
}

// backfillLastDates fills last_date on rows written before the column
// existed.
func (d *DB) backfillLastDates(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx, `SELECT id, date, end_date, time, is_all_day, is_long_term,
		datetime, end_datetime FROM schedules WHERE last_date = ''`)
	if err != nil {
		return fmt.Errorf("failed to query schedules without last_date: %w", err)
	}
	var pending []model.ScheduleEvent
	for rows.Next() {
		var ev model.ScheduleEvent
		var allDay, longTerm int
		if err := rows.Scan(&ev.ID, &ev.Date, &ev.EndDate, &ev.Time, &allDay, &longTerm,
			&ev.Datetime, &ev.EndDatetime); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan schedule: %w", err)
		}
		ev.IsAllDay = allDay != 0
		ev.IsLongTerm = longTerm != 0
		pending = append(pending, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate schedules: %w", err)
	}
	rows.Close()

	for _, ev := range pending {
		if _, err := d.db.ExecContext(ctx, `UPDATE schedules SET last_date = ? WHERE id = ?`, d.lastDate(ev), ev.ID); err != nil {
			return fmt.Errorf("failed to backfill last_date of %s: %w", ev.ID, err)
		}
	}
	if len(pending) > 0 {
		appLog.Info("schedule last dates backfilled", "count", len(pending))
	}
	return nil
}

// PruneSource deletes schedules imported from source whose IDs are not in
// keep. It returns the number of deleted rows.
func (d *DB) PruneSource(ctx context.Context, source string, keep []string) (int64, error) {
	if source == "" {
		return 0, fmt.Errorf("prune: empty source")
	}

	where, args := []string{"source = ?"}, []any{source}
	if len(keep) > 0 {
		where = append(where, "id NOT IN ("+placeholders(len(keep))+")")
		for _, id := range keep {
			args = append(args, id)
		}
	}

	res, err := d.db.ExecContext(ctx, `DELETE FROM schedules WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune source %s: %w", source, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountSchedulesByCategory counts schedules overlapping [from, to] per
// category. Every known category is present, in display order, even with a
// zero count; unknown stored categories follow.
func (d *DB) CountSchedulesByCategory(ctx context.Context, from, to string) ([]model.Stat, error) {
	where, args := []string{"1 = 1"}, []any{}
	if from != "" {
		where, args = append(where, "last_date >= ?"), append(args, from)
	}
	if to != "" {
		where, args = append(where, "date <= ?"), append(args, to)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM schedules WHERE `+strings.Join(where, " AND ")+` GROUP BY category ORDER BY category`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count schedules: %w", err)
	}
	defer rows.Close()

	counts := map[model.Category]int{}
	var extra []model.Category
	for rows.Next() {
		var c string
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		cat := model.Category(c)
		if !schedule.IsKnownCategory(cat) {
			extra = append(extra, cat)
		}
		counts[cat] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counts: %w", err)
	}

	stats := make([]model.Stat, 0, len(model.Categories)+len(extra))
	for _, c := range append(append([]model.Category{}, model.Categories...), extra...) {
		stats = append(stats, model.Stat{Key: string(c), Label: c.Label(), Count: counts[c]})
	}
	return stats, nil
}
