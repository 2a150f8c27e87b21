// Package store is the SQLite data-access layer for schedules, works and
// characters.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	appLog "fansite/internal/log"
	"fansite/internal/schedule"
)

type DB struct {
	db   *sql.DB
	path string
	// norm reads civil dates and times in the site zone.
	norm *schedule.Normalizer
}

type Option func(*DB)

// WithLocation sets the site zone used to derive each schedule's last civil
// day. The default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(d *DB) {
		if loc != nil {
			d.norm = schedule.NewNormalizer(loc)
		}
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS schedules (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	date          TEXT NOT NULL,
	end_date      TEXT NOT NULL DEFAULT '',
	last_date     TEXT NOT NULL DEFAULT '',
	time          TEXT NOT NULL DEFAULT '',
	is_all_day    INTEGER NOT NULL DEFAULT 0,
	is_long_term  INTEGER NOT NULL DEFAULT 0,
	datetime      TEXT NOT NULL DEFAULT '',
	end_datetime  TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL,
	location      TEXT NOT NULL DEFAULT '',
	prefecture    TEXT NOT NULL DEFAULT '',
	location_type TEXT NOT NULL DEFAULT '',
	link          TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL DEFAULT '',
	updated_ts    INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_schedules_date ON schedules (date, end_date);
CREATE INDEX IF NOT EXISTS idx_schedules_source ON schedules (source);

CREATE TABLE IF NOT EXISTS schedule_performers (
	schedule_id    TEXT NOT NULL REFERENCES schedules (id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	name           TEXT NOT NULL,
	role           TEXT NOT NULL DEFAULT '',
	is_takuya_sato INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (schedule_id, position)
);

CREATE TABLE IF NOT EXISTS works (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	work_title TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL DEFAULT '',
	year       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS characters (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	work_title TEXT NOT NULL DEFAULT '',
	birthday   TEXT NOT NULL DEFAULT ''
);
`

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	d := &DB{db: db, path: path, norm: schedule.NewNormalizer(time.Local)}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	appLog.Info("database opened", "path", path, "timezone", d.norm.Location.String())
	return d, nil
}

// migrate brings databases created before last_date existed up to date.
func (d *DB) migrate(ctx context.Context) error {
	var n int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('schedules') WHERE name = 'last_date'`,
	).Scan(&n); err != nil {
		return fmt.Errorf("inspect schedules table: %w", err)
	}
	if n == 0 {
		if _, err := d.db.ExecContext(ctx, `ALTER TABLE schedules ADD COLUMN last_date TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add last_date column: %w", err)
		}
		appLog.Info("schedules table migrated", "column", "last_date")
	}
	if _, err := d.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_schedules_last_date ON schedules (last_date)`); err != nil {
		return fmt.Errorf("create last_date index: %w", err)
	}
	return d.backfillLastDates(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

// placeholders returns n comma-separated SQLite placeholders.
func placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, "?")
	}
	return strings.Join(list, ", ")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
