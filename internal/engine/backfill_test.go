package engine

import (
	"context"
	"testing"

	"github.com/theirongolddev/esusu/internal/model"
)

func TestBackfillRebuildsHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(3, 2)
	p := h.plan(t, 50)
	for week := 1; week <= 2; week++ {
		for day := 1; day <= 7; day++ {
			switch {
			case week == 1 && day == 2:
				// missed entirely
			case week == 1 && day == 3:
				h.collect(t, p.ID, week, day, 20)
			case week == 2 && day == 1:
				// missed entirely
			default:
				h.collect(t, p.ID, week, day, 50)
			}
		}
	}
	h.collect(t, p.ID, 3, 1, 50)
	h.collect(t, p.ID, 3, 2, 50)

	var calls []float64
	res, err := h.eng.RunHistoricalBackfill(ctx, 1, 3, func(pct float64, _ string) {
		calls = append(calls, pct)
	})
	if err != nil {
		t.Fatalf("RunHistoricalBackfill: %v", err)
	}
	if res.RunID == "" {
		t.Fatal("missing run id")
	}
	if res.Created != 3 || res.Failed != 0 {
		t.Fatalf("created=%d failed=%d, want 3 and 0", res.Created, res.Failed)
	}
	if res.WeeksConverted != 2 || res.RecordsCreated != 2 {
		t.Fatalf("weeks converted=%d records=%d, want 2 and 2", res.WeeksConverted, res.RecordsCreated)
	}
	for i := 1; i < len(calls); i++ {
		if calls[i] < calls[i-1] {
			t.Fatalf("progress went backwards: %v", calls)
		}
	}
	if len(calls) == 0 || calls[len(calls)-1] != 100 {
		t.Fatalf("progress did not finish at 100: %v", calls)
	}

	b := h.balance(t, p.ID)
	wantDec(t, "total", b.TotalArrears, 130)
	wantDec(t, "paid", b.PaidAmount, 0)
	if b.LastWeekNumber != 3 {
		t.Fatalf("LastWeekNumber = %d, want 3", b.LastWeekNumber)
	}

	again, err := h.eng.RunHistoricalBackfill(ctx, 1, 3, nil)
	if err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if again.Created != 0 {
		t.Fatalf("second backfill created %d shortfalls", again.Created)
	}
	wantDec(t, "total after re-run", h.balance(t, p.ID).TotalArrears, 130)
}

func TestBackfillKeepsPaidAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(3, 2)
	p := h.plan(t, 50, func(p *model.Plan) { p.Schedule = []int{1} })

	if _, err := h.eng.RunHistoricalBackfill(ctx, 1, 3, nil); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	wantDec(t, "rebuilt total", h.balance(t, p.ID).TotalArrears, 100)

	if _, err := h.eng.AllocatePayment(ctx, p.ID, dec(30), ModeBalance); err != nil {
		t.Fatalf("balance payment: %v", err)
	}
	if _, err := h.eng.Rollover.ApplyWeekPayments(ctx, 3); err != nil {
		t.Fatalf("ApplyWeekPayments: %v", err)
	}
	wantDec(t, "paid", h.balance(t, p.ID).PaidAmount, 30)

	if _, err := h.eng.RunHistoricalBackfill(ctx, 1, 3, nil); err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	b := h.balance(t, p.ID)
	wantDec(t, "paid after re-run", b.PaidAmount, 30)
	wantDec(t, "remaining after re-run", b.RemainingAmount, 70)
}

func TestBackfillAfterCarryForwardSubtractsArchive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(1, 7)
	p := h.plan(t, 50, func(p *model.Plan) { p.Schedule = []int{1} })
	h.sweep(t, 1, 1)
	if _, err := h.eng.RunWeeklyRollover(ctx, 1); err != nil {
		t.Fatalf("rollover 1: %v", err)
	}
	h.at(2, 7)
	if _, err := h.eng.AllocatePayment(ctx, p.ID, dec(20), ModeBalance); err != nil {
		t.Fatalf("balance payment: %v", err)
	}
	h.sweep(t, 2, 1)
	if _, err := h.eng.RunWeeklyRollover(ctx, 2); err != nil {
		t.Fatalf("rollover 2: %v", err)
	}
	wantDec(t, "remaining before backfill", h.balance(t, p.ID).RemainingAmount, 80)

	h.at(3, 1)
	if _, err := h.eng.RunHistoricalBackfill(ctx, 1, 2, nil); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	b := h.balance(t, p.ID)
	wantDec(t, "remaining after backfill", b.RemainingAmount, 80)
	if b.LastWeekNumber != 3 {
		t.Fatalf("LastWeekNumber = %d, want 3", b.LastWeekNumber)
	}
}

func TestBackfillRejectsBadRange(t *testing.T) {
	h := newHarness(t)
	h.at(2, 1)
	ctx := context.Background()
	for _, r := range [][2]int{{0, 1}, {2, 1}, {3, 4}, {1, 60}} {
		if _, err := h.eng.RunHistoricalBackfill(ctx, r[0], r[1], nil); CodeOf(err) != CodeValidation {
			t.Fatalf("range %v: err = %v, want validation", r, err)
		}
	}
}

func TestBackfillContinuesPastPlanFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(3, 1)
	weekly := func(p *model.Plan) { p.Schedule = []int{1} }
	noLog := h.plan(t, 50, weekly)
	noBalance := h.plan(t, 50, weekly)
	good := h.plan(t, 50, weekly)

	tracker := NewTracker(h.st, flakyCollections{Store: h.st, failPlan: noLog.ID}, h.st, h.cal, h.log)
	bf := NewBackfill(h.st, h.st, flakyBalances{Store: h.st, failPlan: noBalance.ID},
		tracker, h.eng.Rollover, h.cal, h.clock, h.log)

	res, err := bf.Run(ctx, BackfillInput{StartWeek: 1, EndWeek: 3}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Three days of failed lookups for one plan, one failed rebuild for the other.
	if res.Failed != 4 {
		t.Fatalf("failed = %d, want 4", res.Failed)
	}
	if res.Created != 6 || res.BalancesCreated != 1 {
		t.Fatalf("created=%d balances=%d, want 6 and 1", res.Created, res.BalancesCreated)
	}

	rows, err := h.st.ListDailyShortfalls(ctx, good.ID)
	if err != nil {
		t.Fatalf("ListDailyShortfalls: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("healthy plan shortfalls = %d, want 3", len(rows))
	}
	b := h.balance(t, good.ID)
	wantDec(t, "healthy plan total", b.TotalArrears, 100)
	if b.LastWeekNumber != 3 {
		t.Fatalf("LastWeekNumber = %d, want 3", b.LastWeekNumber)
	}

	if _, ok, _ := h.st.GetBalance(ctx, noBalance.ID); ok {
		t.Fatal("plan with a failing balance store got a balance")
	}
	if rows, _ := h.st.ListDailyShortfalls(ctx, noLog.ID); len(rows) != 0 {
		t.Fatalf("plan with a failing collection log has %d shortfalls", len(rows))
	}
}
