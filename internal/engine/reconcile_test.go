package engine

import (
	"context"
	"testing"

	"github.com/theirongolddev/esusu/internal/model"
)

func TestReconcileCarriesPreviousActual(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(1, 7)
	p := h.plan(t, 100, func(p *model.Plan) { p.Schedule = []int{1} })
	h.collect(t, p.ID, 1, 1, 1000)

	preview, err := h.eng.PreviewReconciliation(ctx, 1)
	if err != nil {
		t.Fatalf("PreviewReconciliation: %v", err)
	}
	wantDec(t, "week 1 expected", preview.Total(), 1000)

	res, err := h.eng.SubmitReconciliation(ctx, ReconcileInput{Week: 1, Actual: dec(950), Notes: "till short", Operator: "ops"})
	if err != nil {
		t.Fatalf("SubmitReconciliation: %v", err)
	}
	wantDec(t, "difference", res.Reconciliation.Difference, -50)
	if !res.NoteRequired {
		t.Fatal("5% variance did not require a note")
	}

	h.at(2, 7)
	preview, err = h.eng.PreviewReconciliation(ctx, 2)
	if err != nil {
		t.Fatalf("PreviewReconciliation(2): %v", err)
	}
	wantDec(t, "previous actual", preview.PreviousActual, 950)
	if preview.PreviousMissing {
		t.Fatal("previous week flagged missing")
	}
}

func TestReconcileExpectedBreakdown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(1, 7)
	p := h.plan(t, 50)
	tp := h.plan(t, 0, trust)
	h.collect(t, p.ID, 1, 1, 50)
	h.sweep(t, 1, 2, 3)
	if _, err := h.eng.AllocatePayment(ctx, p.ID, dec(30), ModeCurrentWeek); err != nil {
		t.Fatalf("AllocatePayment: %v", err)
	}
	if err := h.st.RecordTrustDeposit(ctx, &model.TrustDeposit{PlanID: tp.ID, Week: 1, Date: h.cal.Date(1, 4), Amount: dec(200)}); err != nil {
		t.Fatalf("RecordTrustDeposit: %v", err)
	}
	out := &model.Outflow{Week: 1, Date: h.cal.Date(1, 5), Amount: dec(40), Category: model.OutflowExpense, Description: "ledger books"}
	if err := h.st.RecordOutflow(ctx, out); err != nil {
		t.Fatalf("RecordOutflow: %v", err)
	}

	b, err := h.eng.PreviewReconciliation(ctx, 1)
	if err != nil {
		t.Fatalf("PreviewReconciliation: %v", err)
	}
	wantDec(t, "collections", b.Collections, 50)
	wantDec(t, "shortfall paid", b.ShortfallPaid, 30)
	wantDec(t, "trust deposits", b.TrustDeposits, 200)
	wantDec(t, "outflows", b.Outflows, 40)
	wantDec(t, "total", b.Total(), 240)
}

func TestReconcileOncePerWeek(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(1, 7)
	p := h.plan(t, 50, func(p *model.Plan) { p.Schedule = []int{1} })
	h.sweep(t, 1, 1)

	first, err := h.eng.SubmitReconciliation(ctx, ReconcileInput{Week: 1, Actual: dec(0), Operator: "ops"})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if !first.RolledOver {
		t.Fatal("first submit did not roll the week")
	}
	before := h.balance(t, p.ID)

	_, err = h.eng.SubmitReconciliation(ctx, ReconcileInput{Week: 1, Actual: dec(500), Notes: "recount", Operator: "ops"})
	if CodeOf(err) != CodeConflict {
		t.Fatalf("second submit err = %v, want conflict", err)
	}

	after := h.balance(t, p.ID)
	if !before.RemainingAmount.Equal(after.RemainingAmount) || before.LastWeekNumber != after.LastWeekNumber {
		t.Fatalf("balance changed: %+v -> %+v", before, after)
	}
	vault, err := h.st.ListVaultTransactions(ctx)
	if err != nil {
		t.Fatalf("ListVaultTransactions: %v", err)
	}
	if len(vault) != 1 {
		t.Fatalf("vault rows = %d, want 1", len(vault))
	}
}

func TestReconcileSkipsRolloverWhenAlreadyRolled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(1, 7)
	p := h.plan(t, 50, func(p *model.Plan) { p.Schedule = []int{1} })
	h.sweep(t, 1, 1)
	if _, err := h.eng.RunWeeklyRollover(ctx, 1); err != nil {
		t.Fatalf("rollover: %v", err)
	}

	res, err := h.eng.SubmitReconciliation(ctx, ReconcileInput{Week: 1, Actual: dec(0), Operator: "ops"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.RolledOver {
		t.Fatal("submit rolled an already rolled week")
	}
	wantDec(t, "remaining", h.balance(t, p.ID).RemainingAmount, 50)
}

func TestReconcileRequiresNoteOverThreshold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(1, 7)
	p := h.plan(t, 100, func(p *model.Plan) { p.Schedule = []int{1} })
	h.collect(t, p.ID, 1, 1, 1000)

	_, err := h.eng.SubmitReconciliation(ctx, ReconcileInput{Week: 1, Actual: dec(980), Operator: "ops"})
	if CodeOf(err) != CodeValidation {
		t.Fatalf("err = %v, want validation", err)
	}
	if _, ok, _ := h.st.GetReconciliation(ctx, 1); ok {
		t.Fatal("rejected reconciliation was stored")
	}

	// 0.5% is inside the default threshold.
	if _, err := h.eng.SubmitReconciliation(ctx, ReconcileInput{Week: 1, Actual: dec(995), Operator: "ops"}); err != nil {
		t.Fatalf("small variance submit: %v", err)
	}
}

func TestReconcileTiming(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(2, 3)

	cases := []struct {
		name string
		in   ReconcileInput
	}{
		{"future week", ReconcileInput{Week: 3, Actual: dec(0), Operator: "ops"}},
		{"current week before closing day", ReconcileInput{Week: 2, Actual: dec(0), Operator: "ops"}},
		{"missing operator", ReconcileInput{Week: 1, Actual: dec(0)}},
		{"negative actual", ReconcileInput{Week: 1, Actual: dec(-1), Operator: "ops"}},
	}
	for _, tc := range cases {
		if _, err := h.eng.SubmitReconciliation(ctx, tc.in); CodeOf(err) != CodeValidation {
			t.Fatalf("%s: err = %v, want validation", tc.name, err)
		}
	}

	if _, err := h.eng.SubmitReconciliation(ctx, ReconcileInput{Week: 1, Actual: dec(0), Operator: "ops"}); err != nil {
		t.Fatalf("past week submit: %v", err)
	}
}

func TestReconcileOnClosingDayKeepsThatDaysShortfall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(1, 7)
	p := h.plan(t, 50)
	for day := 2; day <= 6; day++ {
		h.collect(t, p.ID, 1, day, 50)
	}
	h.sweep(t, 1, 1, 2, 3, 4, 5, 6)

	// Day 7 is still unpaid when the cash is counted.
	res, err := h.eng.SubmitReconciliation(ctx, ReconcileInput{Week: 1, Actual: dec(250), Operator: "ops"})
	if err != nil {
		t.Fatalf("SubmitReconciliation: %v", err)
	}
	if res.ClosingSweep == nil || res.ClosingSweep.Created != 1 {
		t.Fatalf("closing sweep = %+v, want one shortfall", res.ClosingSweep)
	}
	if !res.RolledOver {
		t.Fatal("reconciliation did not roll the week")
	}

	// The scheduled sweep and close-out still run afterwards.
	h.sweep(t, 1, 7)
	if _, err := h.eng.RunWeeklyRollover(ctx, 1); err != nil {
		t.Fatalf("RunWeeklyRollover: %v", err)
	}

	h.at(2, 1)
	o, err := h.eng.Outstanding(ctx, p.ID)
	if err != nil {
		t.Fatalf("Outstanding: %v", err)
	}
	wantDec(t, "current week", o.CurrentWeek, 0)
	wantDec(t, "balance", o.Balance, 100)

	if _, err := h.eng.RunHistoricalBackfill(ctx, 1, 2, nil); err != nil {
		t.Fatalf("RunHistoricalBackfill: %v", err)
	}
	b := h.balance(t, p.ID)
	wantDec(t, "total after backfill", b.TotalArrears, 100)
	wantDec(t, "remaining after backfill", b.RemainingAmount, 100)
}
