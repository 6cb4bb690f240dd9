package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/ticket-gate/internal/model"
)

// EventRepo persists events. (name, date) is unique.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to db.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts e. Returns ErrConflict for a duplicate name and date.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, name, date, location, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Date, e.Location, e.CreatedAt.UTC())
	return unavailable("create event", duplicateKey(err))
}

// List returns all events ordered by date then name.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, DATE_FORMAT(date, '%Y-%m-%d'), location, created_at FROM events ORDER BY date, name`)
	if err != nil {
		return nil, unavailable("list events", err)
	}
	defer rows.Close()
	out := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Date, &e.Location, &e.CreatedAt); err != nil {
			return nil, unavailable("scan event", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list events", err)
	}
	return out, nil
}

// Delete removes an event by id.
func (r *EventRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete event", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
