package engine

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/esusu/internal/cycle"
	"github.com/theirongolddev/esusu/internal/model"
)

// Mode selects which arrears a payment is applied to.
type Mode string

const (
	// ModeCurrentWeek pays down daily shortfalls not yet rolled into the balance.
	ModeCurrentWeek Mode = "current"
	// ModeBalance pays toward the accumulated balance.
	ModeBalance Mode = "balance"
)

// AllocateInput is a member payment toward arrears.
type AllocateInput struct {
	PlanID int64           `validate:"gt=0"`
	Amount decimal.Decimal `validate:"-"`
	Mode   Mode            `validate:"oneof=current balance"`
}

// Allocation is one slice of a payment applied to a single record.
type Allocation struct {
	Week           int
	Day            int
	Date           time.Time
	Amount         decimal.Decimal
	RemainingAfter decimal.Decimal
}

// AllocationResult describes where a payment went.
type AllocationResult struct {
	PlanID      int64
	Mode        Mode
	Requested   decimal.Decimal
	Applied     decimal.Decimal
	Unapplied   decimal.Decimal
	Allocations []Allocation
	// PaymentID is the AccumulatedPayment id in balance mode.
	PaymentID int64
	// PendingBalance is the balance outstanding after all unapplied payments.
	PendingBalance decimal.Decimal
}

// Outstanding is what a plan owes under each payment mode.
type Outstanding struct {
	PlanID      int64
	CurrentWeek decimal.Decimal
	Balance     decimal.Decimal
	// Pending is balance-mode money logged but not yet applied by a rollover.
	Pending decimal.Decimal
}

// Payable returns how much a balance-mode payment may still cover.
func (o Outstanding) Payable() decimal.Decimal {
	return o.Balance.Sub(o.Pending)
}

// Allocator applies member payments to arrears.
type Allocator struct {
	plans      PlanRegistry
	shortfalls ShortfallStore
	balances   BalanceStore
	cal        cycle.Calendar
	clock      cycle.Clock
	log        logrus.FieldLogger
}

// NewAllocator returns an allocator over the given ports.
func NewAllocator(plans PlanRegistry, shortfalls ShortfallStore, balances BalanceStore, cal cycle.Calendar, clock cycle.Clock, log logrus.FieldLogger) *Allocator {
	return &Allocator{plans: plans, shortfalls: shortfalls, balances: balances, cal: cal, clock: clock, log: log}
}

// Outstanding reports the plan's open arrears in both modes.
func (a *Allocator) Outstanding(ctx context.Context, planID int64) (Outstanding, error) {
	const op = "outstanding"
	out := Outstanding{PlanID: planID, CurrentWeek: decimal.Zero, Balance: decimal.Zero, Pending: decimal.Zero}

	b, hasBalance, err := a.balances.GetBalance(ctx, planID)
	if err != nil {
		return out, wrap(op, "load balance", err)
	}
	open, err := a.openShortfalls(ctx, planID, b, hasBalance)
	if err != nil {
		return out, wrap(op, "list shortfalls", err)
	}
	for _, s := range open {
		out.CurrentWeek = out.CurrentWeek.Add(s.Remaining)
	}
	if hasBalance {
		out.Balance = b.RemainingAmount
		if out.Pending, err = a.balances.PendingAccumulatedPayments(ctx, planID, b.LastAppliedPaymentID); err != nil {
			return out, wrap(op, "sum pending payments", err)
		}
	}
	return out, nil
}

// Allocate applies in.Amount according to in.Mode.
func (a *Allocator) Allocate(ctx context.Context, in AllocateInput) (AllocationResult, error) {
	const op = "allocate payment"
	res := AllocationResult{PlanID: in.PlanID, Mode: in.Mode, Requested: in.Amount, Applied: decimal.Zero, Unapplied: decimal.Zero}

	if err := validateInput(op, in); err != nil {
		return res, err
	}
	if !in.Amount.IsPositive() {
		return res, invalid(op, "amount must be positive, got %s", in.Amount)
	}

	plan, err := a.plans.GetPlan(ctx, in.PlanID)
	if err != nil {
		return res, wrap(op, "load plan", err)
	}
	if plan.IsTrust() {
		return res, invalid(op, "plan %d is a trust-deposit plan and carries no arrears", plan.ID)
	}
	if plan.Status == model.PlanArchived {
		return res, invalid(op, "plan %d is archived", plan.ID)
	}

	now, err := currentTime(a.cal, a.clock)
	if err != nil {
		return res, invalid(op, "%v", err)
	}

	if in.Mode == ModeBalance {
		return a.payBalance(ctx, op, plan, in.Amount, now, res)
	}
	return a.payCurrentWeek(ctx, op, plan, in.Amount, now, res)
}

func (a *Allocator) openShortfalls(ctx context.Context, planID int64, b model.AccumulatedBalance, hasBalance bool) ([]model.DailyShortfall, error) {
	from := 1
	if hasBalance {
		from = b.LastWeekNumber
	}
	return a.shortfalls.ListUnpaidDailyShortfalls(ctx, planID, from)
}

func (a *Allocator) payCurrentWeek(ctx context.Context, op string, plan model.Plan, amount decimal.Decimal, now moment, res AllocationResult) (AllocationResult, error) {
	b, hasBalance, err := a.balances.GetBalance(ctx, plan.ID)
	if err != nil {
		return res, wrap(op, "load balance", err)
	}
	open, err := a.openShortfalls(ctx, plan.ID, b, hasBalance)
	if err != nil {
		return res, wrap(op, "list shortfalls", err)
	}

	left := amount
	for i := range open {
		if !left.IsPositive() {
			break
		}
		s := &open[i]
		applied := s.Pay(left, now.date)
		if applied.IsZero() {
			continue
		}
		log := &model.ShortfallPayment{
			PlanID:      plan.ID,
			ShortfallID: s.ID,
			Week:        s.Week,
			Day:         s.Day,
			Amount:      applied,
			PaidDate:    now.date,
		}
		if err := a.shortfalls.ApplyShortfallPayment(ctx, s, log); err != nil {
			return res, wrap(op, "apply to shortfall", err)
		}
		left = left.Sub(applied)
		res.Applied = res.Applied.Add(applied)
		res.Allocations = append(res.Allocations, Allocation{
			Week:           s.Week,
			Day:            s.Day,
			Date:           s.Date,
			Amount:         applied,
			RemainingAfter: s.Remaining,
		})
	}
	res.Unapplied = left

	a.log.WithFields(logrus.Fields{
		"plan_id":   plan.ID,
		"mode":      ModeCurrentWeek,
		"applied":   res.Applied.String(),
		"unapplied": res.Unapplied.String(),
		"records":   len(res.Allocations),
	}).Info("payment allocated")
	return res, nil
}

func (a *Allocator) payBalance(ctx context.Context, op string, plan model.Plan, amount decimal.Decimal, now moment, res AllocationResult) (AllocationResult, error) {
	b, ok, err := a.balances.GetBalance(ctx, plan.ID)
	if err != nil {
		return res, wrap(op, "load balance", err)
	}
	if !ok {
		return res, invalid(op, "plan %d has no accumulated balance", plan.ID)
	}
	pending, err := a.balances.PendingAccumulatedPayments(ctx, plan.ID, b.LastAppliedPaymentID)
	if err != nil {
		return res, wrap(op, "sum pending payments", err)
	}
	payable := b.RemainingAmount.Sub(pending)
	if amount.GreaterThan(payable) {
		return res, invalid(op, "payment %s exceeds payable balance %s", amount.StringFixed(2), payable.StringFixed(2))
	}

	p := &model.AccumulatedPayment{
		PlanID: plan.ID,
		Week:   now.pos.Week,
		Day:    now.pos.Day,
		Amount: amount,
		Date:   now.date,
	}
	if err := a.balances.RecordAccumulatedPayment(ctx, p); err != nil {
		return res, wrap(op, "record payment", err)
	}
	res.PaymentID = p.ID
	res.Applied = amount
	res.PendingBalance = payable.Sub(amount)

	// Weekly records are history only; a failure here must not undo the payment.
	allocs, err := a.mirrorWeekly(ctx, plan.ID, amount, now.date)
	if err != nil {
		a.log.WithFields(logrus.Fields{"plan_id": plan.ID, "payment_id": p.ID}).
			WithError(err).Warn("balance payment: update weekly records")
	}
	res.Allocations = allocs

	a.log.WithFields(logrus.Fields{
		"plan_id":    plan.ID,
		"mode":       ModeBalance,
		"amount":     amount.String(),
		"payment_id": p.ID,
	}).Info("balance payment recorded")
	return res, nil
}

// mirrorWeekly spreads amount over the plan's open weekly records, oldest first.
func (a *Allocator) mirrorWeekly(ctx context.Context, planID int64, amount decimal.Decimal, at time.Time) ([]Allocation, error) {
	weeks, err := a.shortfalls.ListUnpaidWeeklyShortfalls(ctx, planID)
	if err != nil {
		return nil, err
	}
	var (
		out  []Allocation
		errs []error
	)
	left := amount
	for i := range weeks {
		if !left.IsPositive() {
			break
		}
		w := &weeks[i]
		applied := w.Pay(left, at)
		if applied.IsZero() {
			continue
		}
		if err := a.shortfalls.UpdateWeeklyShortfall(ctx, w); err != nil {
			errs = append(errs, err)
			continue
		}
		left = left.Sub(applied)
		out = append(out, Allocation{Week: w.Week, Amount: applied, RemainingAfter: w.Remaining})
	}
	return out, errors.Join(errs...)
}
