package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/esusu/internal/cycle"
	"github.com/theirongolddev/esusu/internal/model"
)

// ProgressFunc receives a completion percentage (0-100) and a status line.
type ProgressFunc func(percent float64, message string)

// BackfillInput bounds a historical backfill.
type BackfillInput struct {
	StartWeek int `validate:"gte=1"`
	EndWeek   int `validate:"gtefield=StartWeek"`
}

// BackfillResult summarizes a backfill run.
type BackfillResult struct {
	RunID           string
	StartWeek       int
	EndWeek         int
	Examined        int
	Created         int
	Existing        int
	Failed          int
	WeeksConverted  int
	RecordsCreated  int
	BalancesCreated int
	BalancesUpdated int
}

// Backfill reconstructs shortfalls, weekly records and balances for a range
// of past weeks from the collection log.
type Backfill struct {
	plans      PlanRegistry
	shortfalls ShortfallStore
	balances   BalanceStore
	tracker    *Tracker
	rollover   *Rollover
	cal        cycle.Calendar
	clock      cycle.Clock
	log        logrus.FieldLogger
}

// NewBackfill returns a backfill job that records shortfalls through tracker
// and freezes weeks through rollover.
func NewBackfill(plans PlanRegistry, shortfalls ShortfallStore, balances BalanceStore, tracker *Tracker, rollover *Rollover, cal cycle.Calendar, clock cycle.Clock, log logrus.FieldLogger) *Backfill {
	return &Backfill{
		plans:      plans,
		shortfalls: shortfalls,
		balances:   balances,
		tracker:    tracker,
		rollover:   rollover,
		cal:        cal,
		clock:      clock,
		log:        log,
	}
}

// Run walks weeks, then days, then plans. Failures on a single plan are
// logged and counted; the job carries on with the next one.
func (bf *Backfill) Run(ctx context.Context, in BackfillInput, progress ProgressFunc) (BackfillResult, error) {
	const op = "historical backfill"
	res := BackfillResult{RunID: uuid.NewString(), StartWeek: in.StartWeek, EndWeek: in.EndWeek}
	if progress == nil {
		progress = func(float64, string) {}
	}

	if err := validateInput(op, in); err != nil {
		return res, err
	}
	for _, w := range []int{in.StartWeek, in.EndWeek} {
		if err := bf.cal.CheckWeek(w); err != nil {
			return res, invalid(op, "%v", err)
		}
	}
	now, err := currentTime(bf.cal, bf.clock)
	if err != nil {
		return res, invalid(op, "%v", err)
	}
	if now.isFuture(in.StartWeek) {
		return res, invalid(op, "week %d has not started", in.StartWeek)
	}
	end := in.EndWeek
	if now.isFuture(end) {
		end = now.pos.Week
	}
	res.EndWeek = end

	log := bf.log.WithFields(logrus.Fields{"run_id": res.RunID, "start_week": in.StartWeek, "end_week": end})
	log.Info("backfill started")

	all, err := bf.plans.ListActivePlans(ctx)
	if err != nil {
		return res, wrap(op, "list plans", err)
	}
	var plans []model.Plan
	for _, p := range all {
		if !p.IsTrust() {
			plans = append(plans, p)
		}
	}

	// One step per day plus the final balance pass.
	steps := float64((end-in.StartWeek+1)*cycle.DaysPerWeek + 1)
	step := 0
	progress(0, fmt.Sprintf("backfilling weeks %d-%d for %d plans", in.StartWeek, end, len(plans)))

	for week := in.StartWeek; week <= end; week++ {
		for day := 1; day <= cycle.DaysPerWeek; day++ {
			step++
			date := bf.cal.Date(week, day)
			if date.After(now.date) {
				progress(float64(step)/steps*100, fmt.Sprintf("week %d day %d: future, skipped", week, day))
				continue
			}
			pos := cycle.Position{Week: week, Day: day}
			for _, plan := range plans {
				if !plan.AccruesOn(date, day) {
					continue
				}
				res.Examined++
				_, created, err := bf.tracker.Track(ctx, plan, pos, date)
				switch {
				case err != nil:
					res.Failed++
					log.WithFields(logrus.Fields{"plan_id": plan.ID, "week": week, "day": day}).
						WithError(err).Error("backfill: record shortfall")
				case created:
					res.Created++
				default:
					res.Existing++
				}
			}
			progress(float64(step)/steps*100, fmt.Sprintf("week %d day %d", week, day))
		}

		finished := now.ended || week < now.pos.Week
		if !finished {
			// The current week counts once its close-out has run.
			if finished, err = bf.rollover.AlreadyRolled(ctx, week); err != nil {
				res.Failed++
				log.WithField("week", week).WithError(err).Error("backfill: check rollover state")
				continue
			}
		}
		if finished {
			n, err := bf.rollover.ConvertWeek(ctx, week)
			if err != nil {
				res.Failed++
				log.WithField("week", week).WithError(err).Error("backfill: convert week")
				continue
			}
			res.WeeksConverted++
			res.RecordsCreated += n
		}
	}

	progress(float64(step)/steps*100, "rebuilding balances")
	currentWeek := now.pos.Week
	if now.ended {
		currentWeek = bf.cal.Weeks + 1
	}
	for _, plan := range plans {
		created, updated, err := bf.rebuildBalance(ctx, plan.ID, currentWeek)
		if err != nil {
			res.Failed++
			log.WithField("plan_id", plan.ID).WithError(err).Error("backfill: rebuild balance")
			continue
		}
		if created {
			res.BalancesCreated++
		}
		if updated {
			res.BalancesUpdated++
		}
	}
	progress(100, "backfill complete")

	log.WithFields(logrus.Fields{
		"examined":         res.Examined,
		"created":          res.Created,
		"failed":           res.Failed,
		"balances_created": res.BalancesCreated,
		"balances_updated": res.BalancesUpdated,
	}).Info("backfill finished")
	return res, nil
}

// rebuildBalance derives a plan's balance from its weekly records below
// currentWeek, or below the week the balance already points at when that is
// later. Existing rows keep their paid counter and never move backwards.
func (bf *Backfill) rebuildBalance(ctx context.Context, planID int64, currentWeek int) (created, updated bool, err error) {
	b, ok, err := bf.balances.GetBalance(ctx, planID)
	if err != nil {
		return false, false, err
	}
	limit := currentWeek
	if ok && b.LastWeekNumber > limit {
		limit = b.LastWeekNumber
	}

	records, err := bf.shortfalls.ListWeeklyShortfalls(ctx, planID)
	if err != nil {
		return false, false, err
	}
	total, paid := decimal.Zero, decimal.Zero
	maxWeek := 0
	for _, r := range records {
		if r.Week >= limit {
			continue
		}
		total = total.Add(r.Total)
		paid = paid.Add(r.Paid)
		maxWeek = max(maxWeek, r.Week)
	}
	if maxWeek == 0 {
		return false, false, nil
	}
	at := bf.clock.Now()

	if !ok {
		b = model.NewAccumulatedBalance(planID, maxWeek+1, at)
		if err := b.Apply(model.BalanceDelta{Total: total, Paid: paid}, at); err != nil {
			return false, false, err
		}
		return true, false, bf.balances.SaveBalance(ctx, &b)
	}

	archived, err := bf.balances.TotalArchivedPaid(ctx, planID)
	if err != nil {
		return false, false, err
	}
	target := decimal.Max(total.Sub(archived), b.PaidAmount)
	if err := b.Apply(model.BalanceDelta{Total: target.Sub(b.TotalArrears)}, at); err != nil {
		return false, false, err
	}
	b.LastWeekNumber = max(b.LastWeekNumber, maxWeek+1)
	return false, true, bf.balances.SaveBalance(ctx, &b)
}
