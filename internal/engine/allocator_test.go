package engine

import (
	"context"
	"testing"

	"github.com/theirongolddev/esusu/internal/model"
)

func TestAllocateCurrentWeekOldestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(1, 3)
	p := h.plan(t, 10)
	h.sweep(t, 1, 1, 2, 3)

	res, err := h.eng.AllocatePayment(ctx, p.ID, dec(15), ModeCurrentWeek)
	if err != nil {
		t.Fatalf("AllocatePayment: %v", err)
	}
	wantDec(t, "applied", res.Applied, 15)
	wantDec(t, "unapplied", res.Unapplied, 0)
	if len(res.Allocations) != 2 {
		t.Fatalf("allocations = %d, want 2", len(res.Allocations))
	}

	rows, err := h.st.ListDailyShortfalls(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListDailyShortfalls: %v", err)
	}
	want := []int64{0, 5, 10}
	for i, r := range rows {
		wantDec(t, "remaining", r.Remaining, want[i])
		if !r.Remaining.Equal(r.Due.Sub(r.Paid)) {
			t.Fatalf("day %d: remaining %s != due %s - paid %s", r.Day, r.Remaining, r.Due, r.Paid)
		}
		if r.IsPaid != r.Remaining.IsZero() {
			t.Fatalf("day %d: paid flag %v with remaining %s", r.Day, r.IsPaid, r.Remaining)
		}
	}
	if rows[0].PaidDate == nil {
		t.Fatal("fully paid shortfall has no paid date")
	}
}

func TestAllocateCurrentWeekReportsUnapplied(t *testing.T) {
	h := newHarness(t)
	h.at(1, 1)
	p := h.plan(t, 10)
	h.sweep(t, 1, 1)

	res, err := h.eng.AllocatePayment(context.Background(), p.ID, dec(25), ModeCurrentWeek)
	if err != nil {
		t.Fatalf("AllocatePayment: %v", err)
	}
	wantDec(t, "applied", res.Applied, 10)
	wantDec(t, "unapplied", res.Unapplied, 15)
}

func TestAllocateRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	h.at(1, 1)
	p := h.plan(t, 10)
	tp := h.plan(t, 10, trust)
	ctx := context.Background()

	cases := []struct {
		name   string
		planID int64
		amount int64
		mode   Mode
	}{
		{"zero amount", p.ID, 0, ModeCurrentWeek},
		{"negative amount", p.ID, -5, ModeCurrentWeek},
		{"unknown mode", p.ID, 5, Mode("weekly")},
		{"trust plan", tp.ID, 5, ModeCurrentWeek},
		{"no balance", p.ID, 5, ModeBalance},
	}
	for _, tc := range cases {
		_, err := h.eng.AllocatePayment(ctx, tc.planID, dec(tc.amount), tc.mode)
		if CodeOf(err) != CodeValidation {
			t.Fatalf("%s: err = %v, want validation", tc.name, err)
		}
	}
}

func TestBalancePaymentWaitsForRollover(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(1, 7)
	p := h.plan(t, 50)
	h.sweep(t, 1, 1, 2, 3)
	// Days 4-7 were paid.
	for d := 4; d <= 7; d++ {
		h.collect(t, p.ID, 1, d, 50)
	}
	h.sweep(t, 1, 4, 5, 6, 7)
	if _, err := h.eng.RunWeeklyRollover(ctx, 1); err != nil {
		t.Fatalf("rollover 1: %v", err)
	}

	h.at(2, 3)
	res, err := h.eng.AllocatePayment(ctx, p.ID, dec(50), ModeBalance)
	if err != nil {
		t.Fatalf("AllocatePayment: %v", err)
	}
	if res.PaymentID == 0 {
		t.Fatal("no payment record id")
	}
	wantDec(t, "pending balance", res.PendingBalance, 100)

	b := h.balance(t, p.ID)
	wantDec(t, "total before apply", b.TotalArrears, 150)
	wantDec(t, "paid before apply", b.PaidAmount, 0)

	applied, err := h.eng.Rollover.ApplyWeekPayments(ctx, 2)
	if err != nil {
		t.Fatalf("ApplyWeekPayments: %v", err)
	}
	if applied.Payments != 1 {
		t.Fatalf("payments applied = %d, want 1", applied.Payments)
	}
	b = h.balance(t, p.ID)
	wantDec(t, "paid after apply", b.PaidAmount, 50)
	wantDec(t, "remaining after apply", b.RemainingAmount, 100)

	// Applying again must not double count.
	if _, err := h.eng.Rollover.ApplyWeekPayments(ctx, 2); err != nil {
		t.Fatalf("ApplyWeekPayments again: %v", err)
	}
	wantDec(t, "paid after re-apply", h.balance(t, p.ID).PaidAmount, 50)

	ws, ok, err := h.st.GetWeeklyShortfall(ctx, p.ID, 1)
	if err != nil || !ok {
		t.Fatalf("GetWeeklyShortfall ok=%v err=%v", ok, err)
	}
	wantDec(t, "weekly record paid", ws.Paid, 50)
	wantDec(t, "weekly record remaining", ws.Remaining, 100)
}

func TestBalancePaymentCannotExceedOutstanding(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.at(1, 7)
	p := h.plan(t, 50, func(p *model.Plan) { p.Schedule = []int{1, 2, 3} })
	h.sweep(t, 1, 1, 2, 3)
	if _, err := h.eng.RunWeeklyRollover(ctx, 1); err != nil {
		t.Fatalf("rollover: %v", err)
	}
	h.at(2, 2)

	if _, err := h.eng.AllocatePayment(ctx, p.ID, dec(100), ModeBalance); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	_, err := h.eng.AllocatePayment(ctx, p.ID, dec(60), ModeBalance)
	if CodeOf(err) != CodeValidation {
		t.Fatalf("over-payment err = %v, want validation", err)
	}
	if _, err := h.eng.AllocatePayment(ctx, p.ID, dec(50), ModeBalance); err != nil {
		t.Fatalf("exact payment: %v", err)
	}

	o, err := h.eng.Outstanding(ctx, p.ID)
	if err != nil {
		t.Fatalf("Outstanding: %v", err)
	}
	wantDec(t, "payable", o.Payable(), 0)

	h.at(2, 7)
	if _, err := h.eng.RunWeeklyRollover(ctx, 2); err != nil {
		t.Fatalf("rollover 2: %v", err)
	}
	b := h.balance(t, p.ID)
	wantDec(t, "remaining", b.RemainingAmount, 0)
	if !b.IsPaid {
		t.Fatal("cleared balance not flagged paid")
	}
}
