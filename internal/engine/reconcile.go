package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/esusu/internal/cycle"
	"github.com/theirongolddev/esusu/internal/model"
)

// ReconcileInput is an operator's cash count for a week.
type ReconcileInput struct {
	Week     int             `validate:"gte=1"`
	Actual   decimal.Decimal `validate:"-"`
	Notes    string          `validate:"max=2000"`
	Operator string          `validate:"required,max=100"`
}

// ReconcileResult reports a completed reconciliation.
type ReconcileResult struct {
	Reconciliation model.WeeklyReconciliation
	DepositID      string
	// NoteRequired is set when the difference exceeded the variance threshold.
	NoteRequired bool
	RolledOver   bool
	Rollover     *RolloverResult
	// ClosingSweep is set when the current week was reconciled and its
	// closing day was swept ahead of the rollover.
	ClosingSweep *SweepResult
}

// Reconciler compares counted cash against what the ledgers say should be in hand.
type Reconciler struct {
	collections CollectionLog
	trust       TrustDepositLedger
	outflows    OutflowLog
	shortfalls  ShortfallStore
	balances    BalanceStore
	recs        ReconciliationStore
	tracker     *Tracker
	rollover    *Rollover
	cal         cycle.Calendar
	clock       cycle.Clock
	log         logrus.FieldLogger
	// notePercent is the |difference| share of expected above which notes are required.
	notePercent decimal.Decimal
}

// NewReconciler returns a reconciler over st. rollover runs after each
// successful submission for weeks not yet rolled; when that week is the
// current one, tracker sweeps the closing day first.
func NewReconciler(st Store, tracker *Tracker, rollover *Rollover, cal cycle.Calendar, clock cycle.Clock, notePercent decimal.Decimal, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{
		collections: st,
		trust:       st,
		outflows:    st,
		shortfalls:  st,
		balances:    st,
		recs:        st,
		tracker:     tracker,
		rollover:    rollover,
		cal:         cal,
		clock:       clock,
		log:         log,
		notePercent: notePercent,
	}
}

// Preview computes the expected amount for week without writing anything.
func (r *Reconciler) Preview(ctx context.Context, week int) (model.ExpectedBreakdown, error) {
	const op = "reconciliation preview"
	if err := r.cal.CheckWeek(week); err != nil {
		return model.ExpectedBreakdown{}, invalid(op, "%v", err)
	}
	b, err := r.expected(ctx, week)
	if err != nil {
		return b, wrap(op, "compute expected", err)
	}
	return b, nil
}

func (r *Reconciler) expected(ctx context.Context, week int) (model.ExpectedBreakdown, error) {
	b := model.ExpectedBreakdown{Week: week, PreviousActual: decimal.Zero}

	if week > 1 {
		prev, ok, err := r.recs.GetReconciliation(ctx, week-1)
		if err != nil {
			return b, fmt.Errorf("previous reconciliation: %w", err)
		}
		if ok {
			b.PreviousActual = prev.Actual
		} else {
			b.PreviousMissing = true
		}
	}

	var err error
	if b.Collections, err = r.collections.TotalCollectedForWeek(ctx, week); err != nil {
		return b, fmt.Errorf("collections: %w", err)
	}
	if b.ShortfallPaid, err = r.shortfalls.TotalShortfallPaymentsBetween(ctx, r.cal.WeekStart(week), r.cal.WeekEnd(week)); err != nil {
		return b, fmt.Errorf("shortfall payments: %w", err)
	}
	if b.BalancePaid, err = r.balances.TotalAccumulatedPaymentsForWeek(ctx, week); err != nil {
		return b, fmt.Errorf("balance payments: %w", err)
	}
	if b.TrustDeposits, err = r.trust.TotalDepositsForWeek(ctx, week); err != nil {
		return b, fmt.Errorf("trust deposits: %w", err)
	}
	if b.Outflows, err = r.outflows.TotalOutflowsForWeek(ctx, week); err != nil {
		return b, fmt.Errorf("outflows: %w", err)
	}
	return b, nil
}

// NoteRequired reports whether difference is large enough, relative to
// expected, that the operator must explain it.
func (r *Reconciler) NoteRequired(expected, difference decimal.Decimal) bool {
	threshold := expected.Abs().Mul(r.notePercent).Div(decimal.NewFromInt(100))
	return difference.Abs().GreaterThan(threshold)
}

// Submit records the week's cash count, posts it to the vault and, unless
// the week was already rolled, runs the weekly rollover.
func (r *Reconciler) Submit(ctx context.Context, in ReconcileInput) (ReconcileResult, error) {
	const op = "submit reconciliation"
	var res ReconcileResult

	in.Notes = strings.TrimSpace(in.Notes)
	in.Operator = strings.TrimSpace(in.Operator)
	if err := validateInput(op, in); err != nil {
		return res, err
	}
	if err := r.cal.CheckWeek(in.Week); err != nil {
		return res, invalid(op, "%v", err)
	}
	if in.Actual.IsNegative() {
		return res, invalid(op, "actual amount cannot be negative")
	}

	now, err := currentTime(r.cal, r.clock)
	if err != nil {
		return res, invalid(op, "%v", err)
	}
	if now.isFuture(in.Week) {
		return res, invalid(op, "week %d has not started", in.Week)
	}
	if !now.ended && in.Week == now.pos.Week && now.pos.Day != r.cal.ClosingDay {
		return res, invalid(op, "week %d can only be reconciled on its closing day (day %d)", in.Week, r.cal.ClosingDay)
	}

	if _, ok, err := r.recs.GetReconciliation(ctx, in.Week); err != nil {
		return res, wrap(op, "check existing", err)
	} else if ok {
		return res, conflict(op, "week %d is already reconciled", in.Week)
	}

	breakdown, err := r.expected(ctx, in.Week)
	if err != nil {
		return res, wrap(op, "compute expected", err)
	}
	expected := breakdown.Total()
	diff := in.Actual.Sub(expected)
	res.NoteRequired = r.NoteRequired(expected, diff)
	if res.NoteRequired && in.Notes == "" {
		return res, invalid(op, "difference %s exceeds %s%% of expected %s; a note is required",
			diff.StringFixed(2), r.notePercent.String(), expected.StringFixed(2))
	}

	rec := model.WeeklyReconciliation{
		Week:        in.Week,
		WeekStart:   r.cal.WeekStart(in.Week),
		Expected:    expected,
		Actual:      in.Actual,
		Difference:  diff,
		Breakdown:   breakdown,
		Notes:       in.Notes,
		Status:      model.ReconciliationCompleted,
		PerformedBy: in.Operator,
		PerformedAt: now.at,
	}
	deposit := model.VaultTransaction{
		Kind:        model.VaultDeposit,
		Amount:      in.Actual,
		Date:        now.date,
		Description: fmt.Sprintf("Week %d reconciliation", in.Week),
	}
	if err := r.recs.RecordReconciliation(ctx, &rec, &deposit); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return res, conflict(op, "week %d is already reconciled", in.Week)
		}
		return res, wrap(op, "save reconciliation", err)
	}
	res.Reconciliation = rec
	res.DepositID = deposit.ID

	r.log.WithFields(logrus.Fields{
		"week":        in.Week,
		"expected":    expected.String(),
		"actual":      in.Actual.String(),
		"difference":  diff.String(),
		"operator":    in.Operator,
		"vault_entry": deposit.ID,
	}).Info("weekly reconciliation recorded")

	rolled, err := r.rollover.AlreadyRolled(ctx, in.Week)
	if err != nil {
		return res, wrap(op, "reconciliation saved; check rollover state", err)
	}
	if rolled {
		return res, nil
	}
	if !now.ended && in.Week == now.pos.Week {
		// The day's own shortfalls must be recorded before the week is frozen.
		sw, err := r.tracker.Sweep(ctx, now.date)
		if err != nil {
			return res, wrap(op, "reconciliation saved; closing-day sweep failed", err)
		}
		res.ClosingSweep = &sw
	}
	ro, err := r.rollover.Run(ctx, in.Week)
	if err != nil {
		return res, wrap(op, "reconciliation saved; rollover failed", err)
	}
	res.RolledOver = true
	res.Rollover = &ro
	return res, nil
}
