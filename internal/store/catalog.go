package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fansite/internal/model"
)

func (d *DB) ListWorks(ctx context.Context) ([]model.Work, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, title, work_title, kind, year FROM works ORDER BY year DESC, title ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query works: %w", err)
	}
	defer rows.Close()

	list := make([]model.Work, 0)
	for rows.Next() {
		var w model.Work
		if err := rows.Scan(&w.ID, &w.Title, &w.WorkTitle, &w.Kind, &w.Year); err != nil {
			return nil, fmt.Errorf("failed to scan work: %w", err)
		}
		list = append(list, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate works: %w", err)
	}
	return list, nil
}

// CreateWork stores w, assigning a random ID when w.ID is empty.
func (d *DB) CreateWork(ctx context.Context, w *model.Work) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO works (id, title, work_title, kind, year) VALUES (?, ?, ?, ?, ?)`,
		w.ID, w.Title, w.WorkTitle, w.Kind, w.Year,
	); err != nil {
		return fmt.Errorf("failed to create work: %w", err)
	}
	return nil
}

func (d *DB) ListCharacters(ctx context.Context) ([]model.Character, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, work_title, birthday FROM characters ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query characters: %w", err)
	}
	defer rows.Close()

	list := make([]model.Character, 0)
	for rows.Next() {
		var c model.Character
		if err := rows.Scan(&c.ID, &c.Name, &c.WorkTitle, &c.Birthday); err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate characters: %w", err)
	}
	return list, nil
}

// CreateCharacter stores c, assigning a random ID when c.ID is empty.
func (d *DB) CreateCharacter(ctx context.Context, c *model.Character) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO characters (id, name, work_title, birthday) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.WorkTitle, c.Birthday,
	); err != nil {
		return fmt.Errorf("failed to create character: %w", err)
	}
	return nil
}
