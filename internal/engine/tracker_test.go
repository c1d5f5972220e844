package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/theirongolddev/esusu/internal/model"
	"github.com/theirongolddev/esusu/internal/store"
)

func TestSweepRecordsFullAndPartialShortfalls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(1, 3)
	p := h.plan(t, 50)
	h.collect(t, p.ID, 1, 2, 20)
	h.collect(t, p.ID, 1, 3, 50)

	h.sweep(t, 1, 1, 2, 3)

	rows, err := h.st.ListDailyShortfalls(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListDailyShortfalls: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("shortfalls = %d, want 2", len(rows))
	}
	wantDec(t, "day 1 remaining", rows[0].Remaining, 50)
	wantDec(t, "day 2 remaining", rows[1].Remaining, 30)
	wantDec(t, "day 2 due", rows[1].Due, 30)
}

func TestSweepIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.at(1, 1)
	h.plan(t, 50)

	first, err := h.eng.RunDailySweep(context.Background(), h.cal.Date(1, 1))
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	second, err := h.eng.RunDailySweep(context.Background(), h.cal.Date(1, 1))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if first.Created != 1 || second.Created != 0 {
		t.Fatalf("created = %d then %d, want 1 then 0", first.Created, second.Created)
	}
}

func TestSweepSkipsOffScheduleDays(t *testing.T) {
	h := newHarness(t)
	h.at(1, 7)
	p := h.plan(t, 50, func(p *model.Plan) { p.Schedule = []int{1, 3, 5} })

	h.sweep(t, 1, 1, 2, 3, 4, 5, 6, 7)

	rows, err := h.st.ListDailyShortfalls(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListDailyShortfalls: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("shortfalls = %d, want 3", len(rows))
	}
}

func TestSweepRejectsDateOutsideCycle(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.RunDailySweep(context.Background(), cycleStart.AddDate(0, 0, -1))
	if CodeOf(err) != CodeValidation {
		t.Fatalf("err = %v, want validation", err)
	}
}

// flakyCollections fails collection lookups for one plan.
type flakyCollections struct {
	*store.Store
	failPlan int64
}

func (f flakyCollections) GetPayment(ctx context.Context, planID int64, week, day int) (model.Payment, bool, error) {
	if planID == f.failPlan {
		return model.Payment{}, false, errors.New("collection log unavailable")
	}
	return f.Store.GetPayment(ctx, planID, week, day)
}

func TestSweepContinuesPastPlanFailure(t *testing.T) {
	h := newHarness(t)
	h.at(1, 1)
	bad := h.plan(t, 50)
	good := h.plan(t, 50)

	tr := NewTracker(h.st, flakyCollections{Store: h.st, failPlan: bad.ID}, h.st, h.cal, h.log)
	res, err := tr.Sweep(context.Background(), h.cal.Date(1, 1))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Failed != 1 || res.Created != 1 {
		t.Fatalf("failed=%d created=%d, want 1 and 1", res.Failed, res.Created)
	}
	if _, ok, _ := h.st.GetDailyShortfall(context.Background(), good.ID, 1, 1); !ok {
		t.Fatal("healthy plan got no shortfall")
	}
}

func TestTrustMembersNeverAccrue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(3, 2)
	p := h.plan(t, 50, trust)

	h.sweep(t, 1, 1, 2, 3)
	if _, err := h.eng.RunHistoricalBackfill(ctx, 1, 3, nil); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if _, err := h.eng.RunWeeklyRollover(ctx, 2); err != nil {
		t.Fatalf("rollover: %v", err)
	}

	rows, err := h.st.ListDailyShortfalls(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListDailyShortfalls: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("trust member has %d shortfalls", len(rows))
	}
	if _, ok, _ := h.st.GetBalance(ctx, p.ID); ok {
		t.Fatal("trust member has a balance")
	}
}
