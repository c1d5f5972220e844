package store

import (
	"context"
	"errors"
	"time"

	"github.com/theirongolddev/esusu/internal/model"
)

// TriggerLastRun returns the date a scheduler trigger last ran.
func (s *Store) TriggerLastRun(ctx context.Context, name string) (time.Time, bool, error) {
	var last string
	err := s.db.QueryRowContext(ctx, "SELECT last_date FROM trigger_runs WHERE name = ?", name).Scan(&last)
	if err != nil {
		if errors.Is(mapErr(err), model.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return parseDate(last), true, nil
}

// MarkTriggerRun records that a scheduler trigger ran on date.
func (s *Store) MarkTriggerRun(ctx context.Context, name string, date time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO trigger_runs (name, last_date, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET last_date = excluded.last_date, updated_at = excluded.updated_at`,
		name, formatDate(date), nowString())
	return err
}
