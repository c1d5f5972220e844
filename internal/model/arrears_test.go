package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestDailyShortfallPay(t *testing.T) {
	at := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
	s := NewDailyShortfall(1, 1, 2, at, d(50), d(20))

	if !s.Remaining.Equal(d(30)) {
		t.Fatalf("Remaining = %s, want 30", s.Remaining)
	}

	if got := s.Pay(d(10), at); !got.Equal(d(10)) {
		t.Fatalf("applied = %s, want 10", got)
	}
	if s.IsPaid {
		t.Fatal("partially paid shortfall flagged as paid")
	}

	if got := s.Pay(d(100), at); !got.Equal(d(20)) {
		t.Fatalf("applied = %s, want 20 (capped at remaining)", got)
	}
	if !s.Remaining.IsZero() || !s.IsPaid || s.PaidDate == nil {
		t.Fatalf("after full payment remaining=%s paid=%v date=%v", s.Remaining, s.IsPaid, s.PaidDate)
	}
	if !s.Remaining.Equal(s.Due.Sub(s.Paid)) {
		t.Fatalf("remaining %s != due %s - paid %s", s.Remaining, s.Due, s.Paid)
	}

	if got := s.Pay(d(5), at); !got.IsZero() {
		t.Fatalf("paying a settled shortfall applied %s", got)
	}
}

func TestBalanceApply(t *testing.T) {
	now := time.Now()
	b := NewAccumulatedBalance(7, 1, now)

	if err := b.Apply(BalanceDelta{Total: d(150)}, now); err != nil {
		t.Fatal(err)
	}
	if err := b.Apply(PaymentDelta(d(50)), now); err != nil {
		t.Fatal(err)
	}
	if !b.RemainingAmount.Equal(d(100)) || b.IsPaid {
		t.Fatalf("remaining = %s paid=%v, want 100 unpaid", b.RemainingAmount, b.IsPaid)
	}

	if err := b.Apply(b.CarryForwardDelta(d(30)), now); err != nil {
		t.Fatal(err)
	}
	if !b.TotalArrears.Equal(d(130)) || !b.PaidAmount.IsZero() || !b.RemainingAmount.Equal(d(130)) {
		t.Fatalf("after carry forward total=%s paid=%s remaining=%s, want 130/0/130",
			b.TotalArrears, b.PaidAmount, b.RemainingAmount)
	}
	if err := b.Check(); err != nil {
		t.Fatal(err)
	}
}

func TestBalanceApply_RejectsOverpayment(t *testing.T) {
	now := time.Now()
	b := NewAccumulatedBalance(7, 1, now)
	_ = b.Apply(BalanceDelta{Total: d(40)}, now)

	err := b.Apply(PaymentDelta(d(41)), now)
	if !errors.Is(err, ErrBalanceInvariant) {
		t.Fatalf("err = %v, want ErrBalanceInvariant", err)
	}
	if !b.PaidAmount.IsZero() || !b.RemainingAmount.Equal(d(40)) {
		t.Fatalf("rejected delta mutated balance: paid=%s remaining=%s", b.PaidAmount, b.RemainingAmount)
	}
}

func TestBalanceCheck(t *testing.T) {
	b := AccumulatedBalance{TotalArrears: d(100), PaidAmount: d(20), RemainingAmount: d(70)}
	if err := b.Check(); !errors.Is(err, ErrBalanceInvariant) {
		t.Fatalf("Check() = %v, want ErrBalanceInvariant", err)
	}
}

func TestPlanAccruesOn(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	p := Plan{Status: PlanActive, Classification: ClassRegular, Schedule: []int{1, 2, 3, 4, 5, 6}, StartDate: start}

	if !p.AccruesOn(start, 1) {
		t.Error("regular plan should accrue on a scheduled day")
	}
	if p.AccruesOn(start, 7) {
		t.Error("plan should not accrue off schedule")
	}
	if p.AccruesOn(start.AddDate(0, 0, -1), 7) {
		t.Error("plan should not accrue before its start date")
	}

	p.Classification = ClassTrust
	if p.AccruesOn(start, 1) {
		t.Error("trust-deposit plan must never accrue")
	}
}
