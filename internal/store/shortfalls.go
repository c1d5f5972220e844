package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/esusu/internal/model"
)

const dailyColumns = `id, plan_id, week, day, date, due, paid, remaining, is_paid, paid_date, created_at`

// GetDailyShortfall looks up the shortfall for (plan, week, day).
func (s *Store) GetDailyShortfall(ctx context.Context, planID int64, week, day int) (model.DailyShortfall, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+dailyColumns+" FROM daily_shortfalls WHERE plan_id = ? AND week = ? AND day = ?",
		planID, week, day)
	ds, err := scanDaily(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DailyShortfall{}, false, nil
	}
	if err != nil {
		return model.DailyShortfall{}, false, err
	}
	return ds, true, nil
}

// CreateDailyShortfall inserts a shortfall. A second row for the same
// (plan, week, day) fails with model.ErrDuplicate.
func (s *Store) CreateDailyShortfall(ctx context.Context, ds *model.DailyShortfall) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO daily_shortfalls
		(plan_id, week, day, date, due, paid, remaining, is_paid, paid_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ds.PlanID, ds.Week, ds.Day, formatDate(ds.Date), ds.Due, ds.Paid, ds.Remaining,
		boolInt(ds.IsPaid), nullDate(ds.PaidDate), nowString(),
	)
	if err != nil {
		return mapErr(err)
	}
	ds.ID, err = res.LastInsertId()
	return err
}

// ListUnpaidDailyShortfalls returns a plan's open shortfalls from fromWeek on,
// oldest date first.
func (s *Store) ListUnpaidDailyShortfalls(ctx context.Context, planID int64, fromWeek int) ([]model.DailyShortfall, error) {
	return s.listDaily(ctx, "SELECT "+dailyColumns+` FROM daily_shortfalls
		WHERE plan_id = ? AND week >= ? AND is_paid = 0
		ORDER BY date, id`, planID, fromWeek)
}

// ListUnpaidDailyShortfallsForWeek returns every open shortfall in week.
func (s *Store) ListUnpaidDailyShortfallsForWeek(ctx context.Context, week int) ([]model.DailyShortfall, error) {
	return s.listDaily(ctx, "SELECT "+dailyColumns+` FROM daily_shortfalls
		WHERE week = ? AND is_paid = 0
		ORDER BY plan_id, date, id`, week)
}

// ListDailyShortfalls returns all of a plan's shortfalls, oldest first.
func (s *Store) ListDailyShortfalls(ctx context.Context, planID int64) ([]model.DailyShortfall, error) {
	return s.listDaily(ctx, "SELECT "+dailyColumns+` FROM daily_shortfalls
		WHERE plan_id = ? ORDER BY date, id`, planID)
}

// ApplyShortfallPayment persists an allocation onto a daily shortfall and
// appends the matching payment log row in one transaction.
func (s *Store) ApplyShortfallPayment(ctx context.Context, ds *model.DailyShortfall, p *model.ShortfallPayment) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE daily_shortfalls
			SET paid = ?, remaining = ?, is_paid = ?, paid_date = ?
			WHERE id = ?`,
			ds.Paid, ds.Remaining, boolInt(ds.IsPaid), nullDate(ds.PaidDate), ds.ID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO shortfall_payments
			(plan_id, shortfall_id, week, day, amount, paid_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.PlanID, p.ShortfallID, p.Week, p.Day, p.Amount, formatDate(p.PaidDate), nowString())
		if err != nil {
			return err
		}
		p.ID, err = res.LastInsertId()
		return err
	})
}

// TotalShortfallPaymentsBetween sums current-week allocations by paid date,
// inclusive on both ends.
func (s *Store) TotalShortfallPaymentsBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return sumAmounts(ctx, s.db,
		"SELECT amount FROM shortfall_payments WHERE paid_date >= ? AND paid_date <= ?",
		formatDate(from), formatDate(to))
}

func (s *Store) listDaily(ctx context.Context, query string, args ...any) ([]model.DailyShortfall, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.DailyShortfall
	for rows.Next() {
		ds, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func scanDaily(r rowScanner) (model.DailyShortfall, error) {
	var (
		ds              model.DailyShortfall
		date, createdAt string
		isPaid          int
		paidDate        sql.NullString
	)
	err := r.Scan(&ds.ID, &ds.PlanID, &ds.Week, &ds.Day, &date, &ds.Due, &ds.Paid, &ds.Remaining,
		&isPaid, &paidDate, &createdAt)
	if err != nil {
		return model.DailyShortfall{}, err
	}
	ds.Date = parseDate(date)
	ds.IsPaid = isPaid != 0
	if paidDate.Valid && paidDate.String != "" {
		pd := parseDate(paidDate.String)
		ds.PaidDate = &pd
	}
	ds.CreatedAt = parseTime(createdAt)
	return ds, nil
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

const weeklyColumns = `id, plan_id, week, total, paid, remaining, is_paid, created_at, updated_at`

// GetWeeklyShortfall looks up the frozen record for (plan, week).
func (s *Store) GetWeeklyShortfall(ctx context.Context, planID int64, week int) (model.WeeklyShortfall, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+weeklyColumns+" FROM weekly_shortfalls WHERE plan_id = ? AND week = ?", planID, week)
	ws, err := scanWeekly(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WeeklyShortfall{}, false, nil
	}
	if err != nil {
		return model.WeeklyShortfall{}, false, err
	}
	return ws, true, nil
}

// CreateWeeklyShortfall inserts a weekly record; duplicates fail with model.ErrDuplicate.
func (s *Store) CreateWeeklyShortfall(ctx context.Context, ws *model.WeeklyShortfall) error {
	now := nowString()
	res, err := s.db.ExecContext(ctx, `INSERT INTO weekly_shortfalls
		(plan_id, week, total, paid, remaining, is_paid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.PlanID, ws.Week, ws.Total, ws.Paid, ws.Remaining, boolInt(ws.IsPaid), now, now)
	if err != nil {
		return mapErr(err)
	}
	ws.ID, err = res.LastInsertId()
	return err
}

// UpdateWeeklyShortfall persists the paid/remaining counters of a weekly record.
func (s *Store) UpdateWeeklyShortfall(ctx context.Context, ws *model.WeeklyShortfall) error {
	_, err := s.db.ExecContext(ctx, `UPDATE weekly_shortfalls
		SET paid = ?, remaining = ?, is_paid = ?, updated_at = ? WHERE id = ?`,
		ws.Paid, ws.Remaining, boolInt(ws.IsPaid), nowString(), ws.ID)
	return err
}

// SaveLateShortfall writes a weekly record that grew after its week was
// frozen, inserting it when ws.ID is zero, together with the balance it was
// folded into. b may be nil when the plan has no balance yet.
func (s *Store) SaveLateShortfall(ctx context.Context, ws *model.WeeklyShortfall, b *model.AccumulatedBalance) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := nowString()
		if ws.ID == 0 {
			res, err := tx.ExecContext(ctx, `INSERT INTO weekly_shortfalls
				(plan_id, week, total, paid, remaining, is_paid, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				ws.PlanID, ws.Week, ws.Total, ws.Paid, ws.Remaining, boolInt(ws.IsPaid), now, now)
			if err != nil {
				return mapErr(err)
			}
			if ws.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		} else if _, err := tx.ExecContext(ctx, `UPDATE weekly_shortfalls
			SET total = ?, paid = ?, remaining = ?, is_paid = ?, updated_at = ? WHERE id = ?`,
			ws.Total, ws.Paid, ws.Remaining, boolInt(ws.IsPaid), now, ws.ID); err != nil {
			return err
		}
		if b == nil {
			return nil
		}
		return saveBalance(ctx, tx, b)
	})
}

// ListUnpaidWeeklyShortfalls returns a plan's open weekly records, oldest week first.
func (s *Store) ListUnpaidWeeklyShortfalls(ctx context.Context, planID int64) ([]model.WeeklyShortfall, error) {
	return s.listWeekly(ctx, "SELECT "+weeklyColumns+` FROM weekly_shortfalls
		WHERE plan_id = ? AND is_paid = 0 ORDER BY week, id`, planID)
}

// ListWeeklyShortfalls returns all of a plan's weekly records, oldest week first.
func (s *Store) ListWeeklyShortfalls(ctx context.Context, planID int64) ([]model.WeeklyShortfall, error) {
	return s.listWeekly(ctx, "SELECT "+weeklyColumns+` FROM weekly_shortfalls
		WHERE plan_id = ? ORDER BY week, id`, planID)
}

func (s *Store) listWeekly(ctx context.Context, query string, args ...any) ([]model.WeeklyShortfall, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.WeeklyShortfall
	for rows.Next() {
		ws, err := scanWeekly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

func scanWeekly(r rowScanner) (model.WeeklyShortfall, error) {
	var (
		ws                   model.WeeklyShortfall
		isPaid               int
		createdAt, updatedAt string
	)
	err := r.Scan(&ws.ID, &ws.PlanID, &ws.Week, &ws.Total, &ws.Paid, &ws.Remaining, &isPaid, &createdAt, &updatedAt)
	if err != nil {
		return model.WeeklyShortfall{}, err
	}
	ws.IsPaid = isPaid != 0
	ws.CreatedAt = parseTime(createdAt)
	ws.UpdatedAt = parseTime(updatedAt)
	return ws, nil
}
