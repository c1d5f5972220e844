package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/esusu/internal/model"
)

const reconciliationColumns = `id, week, week_start, expected, actual, difference,
	previous_actual, collections, shortfall_paid, balance_paid, trust_deposits, outflows,
	notes, status, performed_by, performed_at`

// GetReconciliation returns the reconciliation for week, if any.
func (s *Store) GetReconciliation(ctx context.Context, week int) (model.WeeklyReconciliation, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+reconciliationColumns+" FROM weekly_reconciliations WHERE week = ?", week)
	r, err := scanReconciliation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WeeklyReconciliation{}, false, nil
	}
	if err != nil {
		return model.WeeklyReconciliation{}, false, err
	}
	return r, true, nil
}

// ListReconciliations returns every reconciliation, oldest week first.
func (s *Store) ListReconciliations(ctx context.Context) ([]model.WeeklyReconciliation, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+reconciliationColumns+" FROM weekly_reconciliations ORDER BY week")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.WeeklyReconciliation
	for rows.Next() {
		r, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordReconciliation inserts the reconciliation row and its vault deposit
// in one transaction. A second reconciliation for the same week fails with
// model.ErrDuplicate and posts nothing.
func (s *Store) RecordReconciliation(ctx context.Context, r *model.WeeklyReconciliation, deposit *model.VaultTransaction) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		b := r.Breakdown
		res, err := tx.ExecContext(ctx, `INSERT INTO weekly_reconciliations
			(week, week_start, expected, actual, difference,
			 previous_actual, collections, shortfall_paid, balance_paid, trust_deposits, outflows,
			 notes, status, performed_by, performed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Week, formatDate(r.WeekStart), r.Expected, r.Actual, r.Difference,
			b.PreviousActual, b.Collections, b.ShortfallPaid, b.BalancePaid, b.TrustDeposits, b.Outflows,
			r.Notes, string(r.Status), r.PerformedBy, r.PerformedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return mapErr(err)
		}
		if r.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		deposit.ReconciliationID = r.ID
		return insertVault(ctx, tx, deposit)
	})
}

// RecordVaultTransaction appends a vault row that is not tied to a reconciliation.
func (s *Store) RecordVaultTransaction(ctx context.Context, v *model.VaultTransaction) error {
	return insertVault(ctx, s.db, v)
}

// ListVaultTransactions returns the vault ledger, oldest first.
func (s *Store) ListVaultTransactions(ctx context.Context) ([]model.VaultTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, amount, date, description, reconciliation_id, created_at
		FROM vault_transactions ORDER BY created_at, date`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.VaultTransaction
	for rows.Next() {
		var (
			v              model.VaultTransaction
			kind, date     string
			createdAt      string
			reconciliation sql.NullInt64
		)
		if err := rows.Scan(&v.ID, &kind, &v.Amount, &date, &v.Description, &reconciliation, &createdAt); err != nil {
			return nil, err
		}
		v.Kind = model.VaultKind(kind)
		v.Date = parseDate(date)
		v.ReconciliationID = reconciliation.Int64
		v.CreatedAt = parseTime(createdAt)
		out = append(out, v)
	}
	return out, rows.Err()
}

func insertVault(ctx context.Context, q querier, v *model.VaultTransaction) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	var reconciliation any
	if v.ReconciliationID != 0 {
		reconciliation = v.ReconciliationID
	}
	_, err := q.ExecContext(ctx, `INSERT INTO vault_transactions
		(id, kind, amount, date, description, reconciliation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, string(v.Kind), v.Amount, formatDate(v.Date), v.Description, reconciliation, nowString())
	return mapErr(err)
}

func scanReconciliation(r rowScanner) (model.WeeklyReconciliation, error) {
	var (
		rec                       model.WeeklyReconciliation
		weekStart, status, doneAt string
	)
	b := &rec.Breakdown
	err := r.Scan(&rec.ID, &rec.Week, &weekStart, &rec.Expected, &rec.Actual, &rec.Difference,
		&b.PreviousActual, &b.Collections, &b.ShortfallPaid, &b.BalancePaid, &b.TrustDeposits, &b.Outflows,
		&rec.Notes, &status, &rec.PerformedBy, &doneAt)
	if err != nil {
		return model.WeeklyReconciliation{}, err
	}
	b.Week = rec.Week
	rec.WeekStart = parseDate(weekStart)
	rec.Status = model.ReconciliationStatus(status)
	rec.PerformedAt = parseTime(doneAt)
	return rec, nil
}

// VaultBalance returns deposits minus withdrawals across the vault ledger.
func (s *Store) VaultBalance(ctx context.Context) (decimal.Decimal, error) {
	in, err := sumAmounts(ctx, s.db, "SELECT amount FROM vault_transactions WHERE kind = ?", string(model.VaultDeposit))
	if err != nil {
		return decimal.Zero, err
	}
	out, err := sumAmounts(ctx, s.db, "SELECT amount FROM vault_transactions WHERE kind = ?", string(model.VaultWithdrawal))
	if err != nil {
		return decimal.Zero, err
	}
	return in.Sub(out), nil
}
