package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrBalanceInvariant is returned when a balance mutation would leave the row
// inconsistent or negative.
var ErrBalanceInvariant = errors.New("balance invariant violated")

// DailyShortfall is the unpaid part of one plan's due contribution on one day.
type DailyShortfall struct {
	ID        int64
	PlanID    int64
	Week      int
	Day       int
	Date      time.Time
	Due       decimal.Decimal
	Paid      decimal.Decimal
	Remaining decimal.Decimal
	IsPaid    bool
	PaidDate  *time.Time
	CreatedAt time.Time
}

// NewDailyShortfall builds an open shortfall for the gap between due and collected.
func NewDailyShortfall(planID int64, week, day int, date time.Time, due, collected decimal.Decimal) DailyShortfall {
	gap := due.Sub(collected)
	return DailyShortfall{
		PlanID:    planID,
		Week:      week,
		Day:       day,
		Date:      date,
		Due:       gap,
		Paid:      decimal.Zero,
		Remaining: gap,
	}
}

// Outstanding returns the unpaid remainder.
func (s *DailyShortfall) Outstanding() decimal.Decimal { return s.Remaining }

// Pay applies up to amount and returns what was actually applied.
func (s *DailyShortfall) Pay(amount decimal.Decimal, at time.Time) decimal.Decimal {
	applied := decimal.Min(s.Remaining, amount)
	if !applied.IsPositive() {
		return decimal.Zero
	}
	s.Paid = s.Paid.Add(applied)
	s.Remaining = s.Due.Sub(s.Paid)
	if s.Remaining.IsZero() {
		s.IsPaid = true
		paidOn := at
		s.PaidDate = &paidOn
	}
	return applied
}

// WeeklyShortfall freezes one week's unpaid shortfalls for a plan at rollover.
type WeeklyShortfall struct {
	ID        int64
	PlanID    int64
	Week      int
	Total     decimal.Decimal
	Paid      decimal.Decimal
	Remaining decimal.Decimal
	IsPaid    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Outstanding returns the unpaid remainder.
func (w *WeeklyShortfall) Outstanding() decimal.Decimal { return w.Remaining }

// Pay applies up to amount and returns what was actually applied.
func (w *WeeklyShortfall) Pay(amount decimal.Decimal, at time.Time) decimal.Decimal {
	applied := decimal.Min(w.Remaining, amount)
	if !applied.IsPositive() {
		return decimal.Zero
	}
	w.Paid = w.Paid.Add(applied)
	w.Remaining = w.Total.Sub(w.Paid)
	w.IsPaid = w.Remaining.IsZero()
	w.UpdatedAt = at
	return applied
}

// Grow adds shortfalls recorded after the week was frozen.
func (w *WeeklyShortfall) Grow(amount decimal.Decimal, at time.Time) {
	w.Total = w.Total.Add(amount)
	w.Remaining = w.Total.Sub(w.Paid)
	w.IsPaid = w.Remaining.IsZero()
	w.UpdatedAt = at
}

// AccumulatedBalance is the authoritative outstanding amount a plan owes
// across all rolled weeks. Mutate it only through Apply.
type AccumulatedBalance struct {
	PlanID          int64
	TotalArrears    decimal.Decimal
	PaidAmount      decimal.Decimal
	RemainingAmount decimal.Decimal
	// LastWeekNumber is the first week not yet rolled past.
	LastWeekNumber int
	IsPaid         bool
	// LastAppliedPaymentID is the newest AccumulatedPayment already counted in PaidAmount.
	LastAppliedPaymentID int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewAccumulatedBalance seeds an empty balance pointing at week.
func NewAccumulatedBalance(planID int64, week int, now time.Time) AccumulatedBalance {
	return AccumulatedBalance{
		PlanID:          planID,
		TotalArrears:    decimal.Zero,
		PaidAmount:      decimal.Zero,
		RemainingAmount: decimal.Zero,
		LastWeekNumber:  week,
		IsPaid:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// BalanceDelta is a signed change to a balance's principal and paid counters.
type BalanceDelta struct {
	Total decimal.Decimal
	Paid  decimal.Decimal
}

// PaymentDelta records amount as paid against the current principal.
func PaymentDelta(amount decimal.Decimal) BalanceDelta {
	return BalanceDelta{Paid: amount}
}

// CarryForwardDelta folds the paid counter into the principal and adds the
// newly frozen week total: total becomes remaining+added, paid becomes zero.
func (b AccumulatedBalance) CarryForwardDelta(added decimal.Decimal) BalanceDelta {
	return BalanceDelta{
		Total: added.Sub(b.PaidAmount),
		Paid:  b.PaidAmount.Neg(),
	}
}

// Apply is the single mutation path for the money fields of a balance.
func (b *AccumulatedBalance) Apply(d BalanceDelta, at time.Time) error {
	total := b.TotalArrears.Add(d.Total)
	paid := b.PaidAmount.Add(d.Paid)
	remaining := total.Sub(paid)
	if total.IsNegative() || paid.IsNegative() || remaining.IsNegative() {
		return fmt.Errorf("%w: plan %d total=%s paid=%s", ErrBalanceInvariant, b.PlanID, total, paid)
	}
	b.TotalArrears = total
	b.PaidAmount = paid
	b.RemainingAmount = remaining
	b.IsPaid = remaining.IsZero()
	b.UpdatedAt = at
	return nil
}

// Check verifies remaining = total - paid and that nothing is negative.
func (b AccumulatedBalance) Check() error {
	if !b.RemainingAmount.Equal(b.TotalArrears.Sub(b.PaidAmount)) {
		return fmt.Errorf("%w: plan %d remaining=%s total=%s paid=%s",
			ErrBalanceInvariant, b.PlanID, b.RemainingAmount, b.TotalArrears, b.PaidAmount)
	}
	if b.RemainingAmount.IsNegative() || b.PaidAmount.IsNegative() {
		return fmt.Errorf("%w: plan %d has a negative amount", ErrBalanceInvariant, b.PlanID)
	}
	return nil
}

// AccumulatedPayment is an immutable log entry for a payment toward the balance.
type AccumulatedPayment struct {
	ID        int64
	PlanID    int64
	Week      int
	Day       int
	Amount    decimal.Decimal
	Date      time.Time
	CreatedAt time.Time
}

// BalanceHistoryEntry archives the paid counter at each carry-forward.
type BalanceHistoryEntry struct {
	ID              int64
	PlanID          int64
	Week            int
	AmountPaid      decimal.Decimal
	RemainingBefore decimal.Decimal
	RemainingAfter  decimal.Decimal
	CreatedAt       time.Time
}

// ShortfallPayment logs one current-week allocation onto a daily shortfall.
type ShortfallPayment struct {
	ID          int64
	PlanID      int64
	ShortfallID int64
	Week        int
	Day         int
	Amount      decimal.Decimal
	PaidDate    time.Time
	CreatedAt   time.Time
}
