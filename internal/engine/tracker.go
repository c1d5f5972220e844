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

// SweepResult summarizes one daily sweep.
type SweepResult struct {
	Date     time.Time
	Week     int
	Day      int
	Examined int
	Created  int
	Skipped  int
	Failed   int
	// LateFolded counts plans whose new shortfalls landed in a week that had
	// already rolled and were folded into its records.
	LateFolded int
	Total      decimal.Decimal
}

// Tracker records what each plan failed to pay on a given day.
type Tracker struct {
	plans       PlanRegistry
	collections CollectionLog
	shortfalls  ShortfallStore
	cal         cycle.Calendar
	log         logrus.FieldLogger
}

// NewTracker returns a tracker over the given ports.
func NewTracker(plans PlanRegistry, collections CollectionLog, shortfalls ShortfallStore, cal cycle.Calendar, log logrus.FieldLogger) *Tracker {
	return &Tracker{plans: plans, collections: collections, shortfalls: shortfalls, cal: cal, log: log}
}

// Track records a shortfall for plan on (week, day) when its collection fell
// short of the daily amount. It reports whether a new record was written.
// An existing record for the slot is left untouched.
func (t *Tracker) Track(ctx context.Context, plan model.Plan, pos cycle.Position, date time.Time) (model.DailyShortfall, bool, error) {
	if existing, ok, err := t.shortfalls.GetDailyShortfall(ctx, plan.ID, pos.Week, pos.Day); err != nil {
		return model.DailyShortfall{}, false, err
	} else if ok {
		return existing, false, nil
	}

	collected := decimal.Zero
	if p, ok, err := t.collections.GetPayment(ctx, plan.ID, pos.Week, pos.Day); err != nil {
		return model.DailyShortfall{}, false, err
	} else if ok {
		collected = p.Amount
	}
	if collected.GreaterThanOrEqual(plan.DailyAmount) {
		return model.DailyShortfall{}, false, nil
	}

	ds := model.NewDailyShortfall(plan.ID, pos.Week, pos.Day, cycle.Day(date), plan.DailyAmount, collected)
	if err := t.shortfalls.CreateDailyShortfall(ctx, &ds); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			// Lost a race with another writer for the same slot.
			return model.DailyShortfall{}, false, nil
		}
		return model.DailyShortfall{}, false, err
	}
	return ds, true, nil
}

// Sweep examines every active plan for date. Per-plan failures are logged
// and counted without aborting the sweep.
func (t *Tracker) Sweep(ctx context.Context, date time.Time) (SweepResult, error) {
	const op = "daily sweep"
	date = cycle.Day(date)
	res := SweepResult{Date: date, Total: decimal.Zero}

	pos, err := t.cal.Locate(date)
	if err != nil {
		return res, invalid(op, "%v", err)
	}
	res.Week, res.Day = pos.Week, pos.Day

	plans, err := t.plans.ListActivePlans(ctx)
	if err != nil {
		return res, wrap(op, "list plans", err)
	}

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return res, wrap(op, "cancelled", err)
		}
		if !plan.AccruesOn(date, pos.Day) {
			res.Skipped++
			continue
		}
		res.Examined++
		ds, created, err := t.Track(ctx, plan, pos, date)
		if err != nil {
			res.Failed++
			t.log.WithFields(logrus.Fields{
				"plan_id": plan.ID,
				"week":    pos.Week,
				"day":     pos.Day,
			}).WithError(err).Error("daily sweep: record shortfall")
			continue
		}
		if created {
			res.Created++
			res.Total = res.Total.Add(ds.Due)
		}
	}

	t.log.WithFields(logrus.Fields{
		"date":     date.Format(cycle.DateLayout),
		"week":     pos.Week,
		"day":      pos.Day,
		"examined": res.Examined,
		"created":  res.Created,
		"failed":   res.Failed,
	}).Info("daily sweep finished")
	return res, nil
}
