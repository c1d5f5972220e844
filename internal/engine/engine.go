// Package engine implements the arrears lifecycle of a rotating savings
// association: daily shortfall tracking, payment allocation, weekly rollover,
// cash reconciliation and historical backfill.
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/esusu/internal/cycle"
	"github.com/theirongolddev/esusu/internal/model"
)

// Options configures an Engine.
type Options struct {
	Calendar cycle.Calendar
	// Clock defaults to the system clock.
	Clock cycle.Clock
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
	// VarianceNotePercent defaults to 1.
	VarianceNotePercent decimal.Decimal
}

// Engine is the command surface over the five arrears components.
type Engine struct {
	Tracker    *Tracker
	Allocator  *Allocator
	Rollover   *Rollover
	Reconciler *Reconciler
	Backfill   *Backfill

	cal   cycle.Calendar
	clock cycle.Clock
	log   logrus.FieldLogger
}

// New wires every component over st.
func New(st Store, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = cycle.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.VarianceNotePercent.IsZero() {
		opts.VarianceNotePercent = decimal.NewFromInt(1)
	}
	cal, clock, log := opts.Calendar, opts.Clock, opts.Logger

	tracker := NewTracker(st, st, st, cal, log.WithField("module", "tracker"))
	rollover := NewRollover(st, st, st, cal, clock, log.WithField("module", "rollover"))
	return &Engine{
		Tracker:    tracker,
		Allocator:  NewAllocator(st, st, st, cal, clock, log.WithField("module", "allocator")),
		Rollover:   rollover,
		Reconciler: NewReconciler(st, tracker, rollover, cal, clock, opts.VarianceNotePercent, log.WithField("module", "reconcile")),
		Backfill:   NewBackfill(st, st, st, tracker, rollover, cal, clock, log.WithField("module", "backfill")),
		cal:        cal,
		clock:      clock,
		log:        log,
	}
}

// Calendar returns the cycle calendar the engine runs on.
func (e *Engine) Calendar() cycle.Calendar { return e.cal }

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// Position returns today's cycle position. ended is set once the cycle is over.
func (e *Engine) Position() (pos cycle.Position, ended bool, err error) {
	m, err := currentTime(e.cal, e.clock)
	if err != nil {
		return cycle.Position{}, false, invalid("position", "%v", err)
	}
	return m.pos, m.ended, nil
}

// RunDailySweep records shortfalls for every active plan on date. When the
// date's week has already rolled, new shortfalls are folded straight into
// the week's records and balances.
func (e *Engine) RunDailySweep(ctx context.Context, date time.Time) (res SweepResult, err error) {
	defer recoverTo("daily sweep", &err)
	if res, err = e.Tracker.Sweep(ctx, date); err != nil || res.Created == 0 {
		return res, err
	}
	rolled, err := e.Rollover.AlreadyRolled(ctx, res.Week)
	if err != nil {
		return res, wrap("daily sweep", "check rollover state", err)
	}
	if !rolled {
		return res, nil
	}
	carried, err := e.Rollover.CarryForward(ctx, res.Week)
	if err != nil {
		return res, err
	}
	res.LateFolded = carried.LateFolded
	return res, nil
}

// RunWeeklyRollover applies the week's balance payments, then carries its
// shortfalls forward.
func (e *Engine) RunWeeklyRollover(ctx context.Context, week int) (res RolloverResult, err error) {
	defer recoverTo("weekly rollover", &err)
	return e.Rollover.Run(ctx, week)
}

// SubmitReconciliation records a week's cash count.
func (e *Engine) SubmitReconciliation(ctx context.Context, in ReconcileInput) (res ReconcileResult, err error) {
	defer recoverTo("submit reconciliation", &err)
	return e.Reconciler.Submit(ctx, in)
}

// PreviewReconciliation returns the expected breakdown for week.
func (e *Engine) PreviewReconciliation(ctx context.Context, week int) (b model.ExpectedBreakdown, err error) {
	defer recoverTo("reconciliation preview", &err)
	return e.Reconciler.Preview(ctx, week)
}

// RunHistoricalBackfill reconstructs arrears for weeks start..end.
func (e *Engine) RunHistoricalBackfill(ctx context.Context, start, end int, progress ProgressFunc) (res BackfillResult, err error) {
	defer recoverTo("historical backfill", &err)
	return e.Backfill.Run(ctx, BackfillInput{StartWeek: start, EndWeek: end}, progress)
}

// AllocatePayment applies a member payment in the given mode.
func (e *Engine) AllocatePayment(ctx context.Context, planID int64, amount decimal.Decimal, mode Mode) (res AllocationResult, err error) {
	defer recoverTo("allocate payment", &err)
	return e.Allocator.Allocate(ctx, AllocateInput{PlanID: planID, Amount: amount, Mode: mode})
}

// Outstanding reports a plan's arrears in both payment modes.
func (e *Engine) Outstanding(ctx context.Context, planID int64) (o Outstanding, err error) {
	defer recoverTo("outstanding", &err)
	return e.Allocator.Outstanding(ctx, planID)
}
