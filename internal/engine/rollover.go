package engine

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/esusu/internal/cycle"
	"github.com/theirongolddev/esusu/internal/model"
)

// ApplyResult summarizes the payment-application phase of a rollover.
type ApplyResult struct {
	Balances int
	Payments int
	Failed   int
	Amount   decimal.Decimal
}

// CarryResult summarizes the carry-forward phase of a rollover.
type CarryResult struct {
	RecordsCreated  int
	BalancesCreated int
	BalancesCarried int
	// LateFolded counts plans whose balance had already moved past the week
	// and picked up shortfalls recorded since.
	LateFolded int
	Failed     int
	Added      decimal.Decimal
}

// RolloverResult summarizes a full weekly rollover.
type RolloverResult struct {
	Week int
	// AlreadyRolled is set when some balance had moved past Week before this
	// run; only rows still pointing at Week or earlier were carried.
	AlreadyRolled bool
	Applied       ApplyResult
	Carried       CarryResult
}

// Rollover freezes a finished week's shortfalls into the accumulated balance.
type Rollover struct {
	plans      PlanRegistry
	shortfalls ShortfallStore
	balances   BalanceStore
	cal        cycle.Calendar
	clock      cycle.Clock
	log        logrus.FieldLogger
}

// NewRollover returns a rollover engine over the given ports.
func NewRollover(plans PlanRegistry, shortfalls ShortfallStore, balances BalanceStore, cal cycle.Calendar, clock cycle.Clock, log logrus.FieldLogger) *Rollover {
	return &Rollover{plans: plans, shortfalls: shortfalls, balances: balances, cal: cal, clock: clock, log: log}
}

// AlreadyRolled reports whether any balance has moved past week.
func (r *Rollover) AlreadyRolled(ctx context.Context, week int) (bool, error) {
	return r.balances.AnyBalanceRolledPast(ctx, week)
}

// Run executes both phases for week: payments logged through week are applied
// first, then the week's unpaid shortfalls are carried forward.
func (r *Rollover) Run(ctx context.Context, week int) (RolloverResult, error) {
	const op = "weekly rollover"
	res := RolloverResult{Week: week}

	if err := r.cal.CheckWeek(week); err != nil {
		return res, invalid(op, "%v", err)
	}
	now, err := currentTime(r.cal, r.clock)
	if err != nil {
		return res, invalid(op, "%v", err)
	}
	if now.isFuture(week) {
		return res, invalid(op, "week %d has not started", week)
	}

	rolled, err := r.AlreadyRolled(ctx, week)
	if err != nil {
		return res, wrap(op, "check rollover state", err)
	}
	res.AlreadyRolled = rolled

	if res.Applied, err = r.ApplyWeekPayments(ctx, week); err != nil {
		return res, err
	}
	if res.Carried, err = r.CarryForward(ctx, week); err != nil {
		return res, err
	}

	fields := logrus.Fields{
		"week":             week,
		"payments_applied": res.Applied.Payments,
		"records_created":  res.Carried.RecordsCreated,
		"balances_carried": res.Carried.BalancesCarried,
		"late_folded":      res.Carried.LateFolded,
		"failed":           res.Applied.Failed + res.Carried.Failed,
	}
	if rolled {
		r.log.WithFields(fields).Info("weekly rollover: week already rolled, only lagging balances and late shortfalls carried")
	} else {
		r.log.WithFields(fields).Info("weekly rollover finished")
	}
	return res, nil
}

// ApplyWeekPayments folds balance-mode payments logged through week into the
// balances that have not yet rolled past it. Each payment is applied once.
// A plan that fails is logged and left for the next run.
func (r *Rollover) ApplyWeekPayments(ctx context.Context, week int) (ApplyResult, error) {
	const op = "apply balance payments"
	res := ApplyResult{Amount: decimal.Zero}

	balances, err := r.balances.ListBalances(ctx)
	if err != nil {
		return res, wrap(op, "list balances", err)
	}
	for _, b := range balances {
		if b.LastWeekNumber > week {
			continue
		}
		n, amount, err := r.applyPayments(ctx, &b, week)
		if err != nil {
			res.Failed++
			r.log.WithFields(logrus.Fields{"plan_id": b.PlanID, "week": week}).
				WithError(err).Error("apply balance payments: plan")
			continue
		}
		if n == 0 {
			continue
		}
		res.Balances++
		res.Payments += n
		res.Amount = res.Amount.Add(amount)
	}
	return res, nil
}

func (r *Rollover) applyPayments(ctx context.Context, b *model.AccumulatedBalance, week int) (int, decimal.Decimal, error) {
	payments, err := r.balances.ListAccumulatedPayments(ctx, b.PlanID, b.LastAppliedPaymentID, week)
	if err != nil || len(payments) == 0 {
		return 0, decimal.Zero, err
	}
	at := r.clock.Now()
	amount := decimal.Zero
	for _, p := range payments {
		if err := b.Apply(model.PaymentDelta(p.Amount), at); err != nil {
			return 0, decimal.Zero, err
		}
		b.LastAppliedPaymentID = p.ID
		amount = amount.Add(p.Amount)
	}
	if err := r.balances.SaveBalance(ctx, b); err != nil {
		return 0, decimal.Zero, err
	}
	return len(payments), amount, nil
}

// CarryForward freezes week's unpaid daily shortfalls into weekly records and
// folds them into each plan's balance, then moves every balance still pointing
// at week or earlier to week+1. Shortfalls recorded after a plan's balance
// moved past week grow the week's record and the balance without moving it.
// A plan that fails is logged and counted; the others still roll.
func (r *Rollover) CarryForward(ctx context.Context, week int) (CarryResult, error) {
	const op = "carry forward"
	res := CarryResult{Added: decimal.Zero}

	open, err := r.shortfalls.ListUnpaidDailyShortfallsForWeek(ctx, week)
	if err != nil {
		return res, wrap(op, "list shortfalls", err)
	}
	for _, g := range groupByPlan(open) {
		added, err := r.carryPlan(ctx, g, week, &res)
		if err != nil {
			res.Failed++
			r.log.WithFields(logrus.Fields{"plan_id": g.planID, "week": week}).
				WithError(err).Error("carry forward: plan")
			continue
		}
		res.Added = res.Added.Add(added)
	}

	// Plans with no shortfall this week still advance.
	balances, err := r.balances.ListBalances(ctx)
	if err != nil {
		return res, wrap(op, "list balances", err)
	}
	for i := range balances {
		b := &balances[i]
		if b.LastWeekNumber > week {
			continue
		}
		if err := r.carry(ctx, b, week, decimal.Zero); err != nil {
			res.Failed++
			r.log.WithFields(logrus.Fields{"plan_id": b.PlanID, "week": week}).
				WithError(err).Error("carry forward: balance")
			continue
		}
		res.BalancesCarried++
	}
	return res, nil
}

func (r *Rollover) carryPlan(ctx context.Context, g planTotal, week int, res *CarryResult) (decimal.Decimal, error) {
	plan, err := r.plans.GetPlan(ctx, g.planID)
	if err != nil {
		return decimal.Zero, err
	}
	if plan.IsTrust() {
		return decimal.Zero, nil
	}
	b, ok, err := r.balances.GetBalance(ctx, plan.ID)
	if err != nil {
		return decimal.Zero, err
	}
	ws, grew, err := r.weekRecord(ctx, plan.ID, week, g.total)
	if err != nil {
		return decimal.Zero, err
	}

	if ok && b.LastWeekNumber > week {
		if !grew.IsPositive() {
			return decimal.Zero, nil
		}
		if err := b.Apply(model.BalanceDelta{Total: grew}, r.clock.Now()); err != nil {
			return decimal.Zero, err
		}
		if err := r.shortfalls.SaveLateShortfall(ctx, &ws, &b); err != nil {
			return decimal.Zero, err
		}
		res.LateFolded++
		return grew, nil
	}

	if grew.IsPositive() {
		created := ws.ID == 0
		if err := r.shortfalls.SaveLateShortfall(ctx, &ws, nil); err != nil {
			return decimal.Zero, err
		}
		if created {
			res.RecordsCreated++
		}
	}
	if !ok {
		b = model.NewAccumulatedBalance(plan.ID, week, r.clock.Now())
		res.BalancesCreated++
	}
	if err := r.carry(ctx, &b, week, g.total); err != nil {
		return decimal.Zero, err
	}
	res.BalancesCarried++
	return g.total, nil
}

// ConvertWeek freezes week's unpaid daily shortfalls into weekly records
// without touching balances. Existing records grow to cover shortfalls
// recorded after they were written. It returns how many records were created.
func (r *Rollover) ConvertWeek(ctx context.Context, week int) (int, error) {
	open, err := r.shortfalls.ListUnpaidDailyShortfallsForWeek(ctx, week)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, g := range groupByPlan(open) {
		ws, grew, err := r.weekRecord(ctx, g.planID, week, g.total)
		if err != nil {
			return n, err
		}
		if !grew.IsPositive() {
			continue
		}
		created := ws.ID == 0
		if err := r.shortfalls.SaveLateShortfall(ctx, &ws, nil); err != nil {
			if errors.Is(err, model.ErrDuplicate) {
				continue
			}
			return n, err
		}
		if created {
			n++
		}
	}
	return n, nil
}

// weekRecord returns the plan's weekly record for week grown to cover open,
// the unpaid daily remainder, and how much it grew by. A record not yet
// stored has a zero ID. Daily rows of a frozen week are never paid directly,
// so anything above the record's total was recorded after it was written.
func (r *Rollover) weekRecord(ctx context.Context, planID int64, week int, open decimal.Decimal) (model.WeeklyShortfall, decimal.Decimal, error) {
	ws, ok, err := r.shortfalls.GetWeeklyShortfall(ctx, planID, week)
	if err != nil {
		return ws, decimal.Zero, err
	}
	if !ok {
		ws = model.WeeklyShortfall{
			PlanID:    planID,
			Week:      week,
			Total:     decimal.Zero,
			Paid:      decimal.Zero,
			Remaining: decimal.Zero,
		}
	}
	grew := open.Sub(ws.Total)
	if !grew.IsPositive() {
		return ws, decimal.Zero, nil
	}
	ws.Grow(grew, r.clock.Now())
	return ws, grew, nil
}

// carry archives any paid amount, folds it into the principal together with
// added, and points the balance at the following week.
func (r *Rollover) carry(ctx context.Context, b *model.AccumulatedBalance, week int, added decimal.Decimal) error {
	paid := b.PaidAmount
	before := b.RemainingAmount
	if err := b.Apply(b.CarryForwardDelta(added), r.clock.Now()); err != nil {
		return err
	}
	b.LastWeekNumber = week + 1

	if !paid.IsPositive() {
		return r.balances.SaveBalance(ctx, b)
	}
	return r.balances.SaveBalanceWithHistory(ctx, b, &model.BalanceHistoryEntry{
		PlanID:          b.PlanID,
		Week:            week,
		AmountPaid:      paid,
		RemainingBefore: before,
		RemainingAfter:  b.RemainingAmount,
	})
}

type planTotal struct {
	planID int64
	total  decimal.Decimal
}

// groupByPlan sums remaining amounts per plan, keeping first-seen order.
func groupByPlan(shortfalls []model.DailyShortfall) []planTotal {
	var out []planTotal
	index := make(map[int64]int)
	for _, s := range shortfalls {
		i, ok := index[s.PlanID]
		if !ok {
			i = len(out)
			index[s.PlanID] = i
			out = append(out, planTotal{planID: s.PlanID, total: decimal.Zero})
		}
		out[i].total = out[i].total.Add(s.Remaining)
	}
	return out
}
