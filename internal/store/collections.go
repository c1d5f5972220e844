package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/esusu/internal/model"
)

// RecordPayment appends a daily collection to the collection log.
func (s *Store) RecordPayment(ctx context.Context, p *model.Payment) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO payments (plan_id, week, day, date, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.PlanID, p.Week, p.Day, formatDate(p.Date), p.Amount, nowString())
	if err != nil {
		return mapErr(err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// GetPayment returns the collections for (plan, week, day) summed into one
// payment. found is false when nothing was collected that day.
func (s *Store) GetPayment(ctx context.Context, planID int64, week, day int) (model.Payment, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, date, amount FROM payments WHERE plan_id = ? AND week = ? AND day = ? ORDER BY id",
		planID, week, day)
	if err != nil {
		return model.Payment{}, false, err
	}
	defer func() { _ = rows.Close() }()

	out := model.Payment{PlanID: planID, Week: week, Day: day, Amount: decimal.Zero}
	found := false
	for rows.Next() {
		var (
			id   int64
			date string
			amt  decimal.Decimal
		)
		if err := rows.Scan(&id, &date, &amt); err != nil {
			return model.Payment{}, false, err
		}
		if !found {
			out.ID = id
			out.Date = parseDate(date)
		}
		found = true
		out.Amount = out.Amount.Add(amt)
	}
	return out, found, rows.Err()
}

// TotalPaid returns everything collected for a plan.
func (s *Store) TotalPaid(ctx context.Context, planID int64) (decimal.Decimal, error) {
	return sumAmounts(ctx, s.db, "SELECT amount FROM payments WHERE plan_id = ?", planID)
}

// TotalCollectedForWeek returns all daily collections recorded for week.
func (s *Store) TotalCollectedForWeek(ctx context.Context, week int) (decimal.Decimal, error) {
	return sumAmounts(ctx, s.db, "SELECT amount FROM payments WHERE week = ?", week)
}

// RecordTrustDeposit appends a trust-deposit inflow.
func (s *Store) RecordTrustDeposit(ctx context.Context, d *model.TrustDeposit) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO trust_deposits (plan_id, week, date, amount, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.PlanID, d.Week, formatDate(d.Date), d.Amount, nowString())
	if err != nil {
		return mapErr(err)
	}
	d.ID, err = res.LastInsertId()
	return err
}

// TotalDepositsForWeek returns trust-deposit inflows recorded for week.
func (s *Store) TotalDepositsForWeek(ctx context.Context, week int) (decimal.Decimal, error) {
	return sumAmounts(ctx, s.db, "SELECT amount FROM trust_deposits WHERE week = ?", week)
}

// RecordOutflow appends a manual outflow.
func (s *Store) RecordOutflow(ctx context.Context, o *model.Outflow) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO outflows (week, date, amount, category, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.Week, formatDate(o.Date), o.Amount, string(o.Category), o.Description, nowString())
	if err != nil {
		return mapErr(err)
	}
	o.ID, err = res.LastInsertId()
	return err
}

// TotalOutflowsForWeek returns manual outflows logged for week.
func (s *Store) TotalOutflowsForWeek(ctx context.Context, week int) (decimal.Decimal, error) {
	return sumAmounts(ctx, s.db, "SELECT amount FROM outflows WHERE week = ?", week)
}
