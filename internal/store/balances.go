package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/esusu/internal/model"
)

const balanceColumns = `plan_id, total_arrears, paid_amount, remaining_amount, last_week_number,
	is_paid, last_applied_payment_id, created_at, updated_at`

// GetBalance returns the plan's accumulated balance, if one exists.
func (s *Store) GetBalance(ctx context.Context, planID int64) (model.AccumulatedBalance, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+balanceColumns+" FROM accumulated_balances WHERE plan_id = ?", planID)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AccumulatedBalance{}, false, nil
	}
	if err != nil {
		return model.AccumulatedBalance{}, false, err
	}
	return b, true, nil
}

// ListBalances returns every balance ordered by plan.
func (s *Store) ListBalances(ctx context.Context) ([]model.AccumulatedBalance, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+balanceColumns+" FROM accumulated_balances ORDER BY plan_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.AccumulatedBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AnyBalanceRolledPast reports whether some balance already points beyond week.
func (s *Store) AnyBalanceRolledPast(ctx context.Context, week int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM accumulated_balances WHERE last_week_number > ?", week).Scan(&n)
	return n > 0, err
}

// SaveBalance upserts a balance. Rows that break remaining = total - paid are refused.
func (s *Store) SaveBalance(ctx context.Context, b *model.AccumulatedBalance) error {
	return saveBalance(ctx, s.db, b)
}

// SaveBalanceWithHistory upserts a balance and appends its history entry atomically.
func (s *Store) SaveBalanceWithHistory(ctx context.Context, b *model.AccumulatedBalance, h *model.BalanceHistoryEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := saveBalance(ctx, tx, b); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO balance_history
			(plan_id, week, amount_paid, remaining_before, remaining_after, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			h.PlanID, h.Week, h.AmountPaid, h.RemainingBefore, h.RemainingAfter, nowString())
		if err != nil {
			return err
		}
		h.ID, err = res.LastInsertId()
		return err
	})
}

func saveBalance(ctx context.Context, q querier, b *model.AccumulatedBalance) error {
	if err := b.Check(); err != nil {
		return err
	}
	createdAt := nowString()
	if !b.CreatedAt.IsZero() {
		createdAt = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	_, err := q.ExecContext(ctx, `INSERT INTO accumulated_balances
		(plan_id, total_arrears, paid_amount, remaining_amount, last_week_number,
		 is_paid, last_applied_payment_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(plan_id) DO UPDATE SET
			total_arrears = excluded.total_arrears,
			paid_amount = excluded.paid_amount,
			remaining_amount = excluded.remaining_amount,
			last_week_number = excluded.last_week_number,
			is_paid = excluded.is_paid,
			last_applied_payment_id = excluded.last_applied_payment_id,
			updated_at = excluded.updated_at`,
		b.PlanID, b.TotalArrears, b.PaidAmount, b.RemainingAmount, b.LastWeekNumber,
		boolInt(b.IsPaid), b.LastAppliedPaymentID, createdAt, nowString(),
	)
	return mapErr(err)
}

func scanBalance(r rowScanner) (model.AccumulatedBalance, error) {
	var (
		b                    model.AccumulatedBalance
		isPaid               int
		createdAt, updatedAt string
	)
	err := r.Scan(&b.PlanID, &b.TotalArrears, &b.PaidAmount, &b.RemainingAmount, &b.LastWeekNumber,
		&isPaid, &b.LastAppliedPaymentID, &createdAt, &updatedAt)
	if err != nil {
		return model.AccumulatedBalance{}, err
	}
	b.IsPaid = isPaid != 0
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

// RecordAccumulatedPayment appends a standing-balance payment to the log.
func (s *Store) RecordAccumulatedPayment(ctx context.Context, p *model.AccumulatedPayment) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO accumulated_payments (plan_id, week, day, amount, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.PlanID, p.Week, p.Day, p.Amount, formatDate(p.Date), nowString())
	if err != nil {
		return mapErr(err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// ListAccumulatedPayments returns a plan's payments with id > afterID and
// week <= throughWeek, in insertion order.
func (s *Store) ListAccumulatedPayments(ctx context.Context, planID, afterID int64, throughWeek int) ([]model.AccumulatedPayment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, plan_id, week, day, amount, date, created_at
		FROM accumulated_payments WHERE plan_id = ? AND id > ? AND week <= ? ORDER BY id`,
		planID, afterID, throughWeek)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.AccumulatedPayment
	for rows.Next() {
		var (
			p               model.AccumulatedPayment
			date, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.PlanID, &p.Week, &p.Day, &p.Amount, &date, &createdAt); err != nil {
			return nil, err
		}
		p.Date = parseDate(date)
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// PendingAccumulatedPayments sums a plan's payments not yet applied to its balance.
func (s *Store) PendingAccumulatedPayments(ctx context.Context, planID, afterID int64) (decimal.Decimal, error) {
	return sumAmounts(ctx, s.db, "SELECT amount FROM accumulated_payments WHERE plan_id = ? AND id > ?", planID, afterID)
}

// TotalAccumulatedPaymentsForWeek sums standing-balance payments recorded for week.
func (s *Store) TotalAccumulatedPaymentsForWeek(ctx context.Context, week int) (decimal.Decimal, error) {
	return sumAmounts(ctx, s.db, "SELECT amount FROM accumulated_payments WHERE week = ?", week)
}

// TotalArchivedPaid sums the paid amounts archived by earlier carry-forwards.
func (s *Store) TotalArchivedPaid(ctx context.Context, planID int64) (decimal.Decimal, error) {
	return sumAmounts(ctx, s.db, "SELECT amount_paid FROM balance_history WHERE plan_id = ?", planID)
}

// ListBalanceHistory returns a plan's archived carry-forwards, oldest first.
func (s *Store) ListBalanceHistory(ctx context.Context, planID int64) ([]model.BalanceHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, plan_id, week, amount_paid, remaining_before, remaining_after, created_at
		FROM balance_history WHERE plan_id = ? ORDER BY id`, planID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.BalanceHistoryEntry
	for rows.Next() {
		var (
			h         model.BalanceHistoryEntry
			createdAt string
		)
		if err := rows.Scan(&h.ID, &h.PlanID, &h.Week, &h.AmountPaid, &h.RemainingBefore, &h.RemainingAfter, &createdAt); err != nil {
			return nil, err
		}
		h.CreatedAt = parseTime(createdAt)
		out = append(out, h)
	}
	return out, rows.Err()
}
