package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/esusu/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "esusu.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addPlan(t *testing.T, s *Store) model.Plan {
	t.Helper()
	p := model.Plan{
		MemberID:    "M-001",
		MemberName:  "Ada",
		DailyAmount: decimal.NewFromInt(50),
		Schedule:    []int{1, 2, 3, 4, 5},
		StartDate:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	if err := s.CreatePlan(context.Background(), &p); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	return p
}

func TestPlanRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p := addPlan(t, s)

	got, err := s.GetPlan(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if !got.DailyAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("DailyAmount = %s, want 50", got.DailyAmount)
	}
	if len(got.Schedule) != 5 || got.Schedule[4] != 5 {
		t.Fatalf("Schedule = %v, want [1 2 3 4 5]", got.Schedule)
	}
	if got.Status != model.PlanActive || got.Classification != model.ClassRegular {
		t.Fatalf("defaults = %s/%s", got.Status, got.Classification)
	}

	if _, err := s.GetPlan(ctx, 999); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetPlan(999) err = %v, want ErrNotFound", err)
	}
}

func TestDailyShortfallUnique(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p := addPlan(t, s)
	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	first := model.NewDailyShortfall(p.ID, 1, 1, date, decimal.NewFromInt(50), decimal.Zero)
	if err := s.CreateDailyShortfall(ctx, &first); err != nil {
		t.Fatalf("CreateDailyShortfall: %v", err)
	}
	dup := model.NewDailyShortfall(p.ID, 1, 1, date, decimal.NewFromInt(50), decimal.NewFromInt(20))
	if err := s.CreateDailyShortfall(ctx, &dup); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("duplicate err = %v, want ErrDuplicate", err)
	}

	got, ok, err := s.GetDailyShortfall(ctx, p.ID, 1, 1)
	if err != nil || !ok {
		t.Fatalf("GetDailyShortfall ok=%v err=%v", ok, err)
	}
	if !got.Remaining.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("Remaining = %s, want 50", got.Remaining)
	}
}

func TestApplyShortfallPaymentLogsPayment(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p := addPlan(t, s)
	date := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)

	ds := model.NewDailyShortfall(p.ID, 1, 2, date, decimal.NewFromInt(50), decimal.Zero)
	if err := s.CreateDailyShortfall(ctx, &ds); err != nil {
		t.Fatalf("CreateDailyShortfall: %v", err)
	}
	applied := ds.Pay(decimal.NewFromInt(50), date)
	pay := &model.ShortfallPayment{PlanID: p.ID, ShortfallID: ds.ID, Week: 1, Day: 2, Amount: applied, PaidDate: date}
	if err := s.ApplyShortfallPayment(ctx, &ds, pay); err != nil {
		t.Fatalf("ApplyShortfallPayment: %v", err)
	}

	open, err := s.ListUnpaidDailyShortfalls(ctx, p.ID, 1)
	if err != nil {
		t.Fatalf("ListUnpaidDailyShortfalls: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("open shortfalls = %d, want 0", len(open))
	}
	total, err := s.TotalShortfallPaymentsBetween(ctx, date, date)
	if err != nil {
		t.Fatalf("TotalShortfallPaymentsBetween: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("logged payments = %s, want 50", total)
	}
}

func TestSaveBalanceRefusesBrokenRow(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p := addPlan(t, s)

	b := model.NewAccumulatedBalance(p.ID, 2, time.Now())
	b.TotalArrears = decimal.NewFromInt(100)
	b.RemainingAmount = decimal.NewFromInt(90)
	if err := s.SaveBalance(ctx, &b); !errors.Is(err, model.ErrBalanceInvariant) {
		t.Fatalf("SaveBalance err = %v, want ErrBalanceInvariant", err)
	}
	if _, ok, _ := s.GetBalance(ctx, p.ID); ok {
		t.Fatal("broken balance was persisted")
	}
}

func TestRecordReconciliationOnce(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 11, 18, 0, 0, 0, time.UTC)

	rec := func() *model.WeeklyReconciliation {
		return &model.WeeklyReconciliation{
			Week:        1,
			WeekStart:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			Expected:    decimal.NewFromInt(1000),
			Actual:      decimal.NewFromInt(995),
			Difference:  decimal.NewFromInt(-5),
			Status:      model.ReconciliationCompleted,
			PerformedBy: "ops",
			PerformedAt: now,
		}
	}
	deposit := func() *model.VaultTransaction {
		return &model.VaultTransaction{Kind: model.VaultDeposit, Amount: decimal.NewFromInt(995), Date: now}
	}

	first, dep := rec(), deposit()
	if err := s.RecordReconciliation(ctx, first, dep); err != nil {
		t.Fatalf("RecordReconciliation: %v", err)
	}
	if dep.ID == "" || dep.ReconciliationID != first.ID {
		t.Fatalf("deposit not linked: %+v", dep)
	}
	if err := s.RecordReconciliation(ctx, rec(), deposit()); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("second RecordReconciliation err = %v, want ErrDuplicate", err)
	}

	vault, err := s.ListVaultTransactions(ctx)
	if err != nil {
		t.Fatalf("ListVaultTransactions: %v", err)
	}
	if len(vault) != 1 {
		t.Fatalf("vault rows = %d, want 1", len(vault))
	}
	got, ok, err := s.GetReconciliation(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("GetReconciliation ok=%v err=%v", ok, err)
	}
	if !got.Difference.Equal(decimal.NewFromInt(-5)) {
		t.Fatalf("Difference = %s, want -5", got.Difference)
	}
}

func TestTriggerMarkers(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if _, ok, err := s.TriggerLastRun(ctx, "daily-sweep"); err != nil || ok {
		t.Fatalf("fresh marker ok=%v err=%v", ok, err)
	}
	day := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	if err := s.MarkTriggerRun(ctx, "daily-sweep", day); err != nil {
		t.Fatalf("MarkTriggerRun: %v", err)
	}
	if err := s.MarkTriggerRun(ctx, "daily-sweep", day.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("MarkTriggerRun again: %v", err)
	}
	last, ok, err := s.TriggerLastRun(ctx, "daily-sweep")
	if err != nil || !ok {
		t.Fatalf("TriggerLastRun ok=%v err=%v", ok, err)
	}
	if !last.Equal(day.AddDate(0, 0, 1)) {
		t.Fatalf("last run = %s, want 2026-01-08", last)
	}
}

func TestSaveLateShortfall(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p := addPlan(t, s)
	now := time.Now()

	ws := model.WeeklyShortfall{PlanID: p.ID, Week: 1, Total: decimal.Zero, Paid: decimal.Zero, Remaining: decimal.Zero}
	ws.Grow(decimal.NewFromInt(50), now)
	if err := s.SaveLateShortfall(ctx, &ws, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if ws.ID == 0 {
		t.Fatal("inserted record has no id")
	}

	// A broken balance rolls the record update back with it.
	ws.Grow(decimal.NewFromInt(30), now)
	broken := model.NewAccumulatedBalance(p.ID, 2, now)
	broken.TotalArrears = decimal.NewFromInt(80)
	if err := s.SaveLateShortfall(ctx, &ws, &broken); !errors.Is(err, model.ErrBalanceInvariant) {
		t.Fatalf("broken balance err = %v, want ErrBalanceInvariant", err)
	}
	got, _, err := s.GetWeeklyShortfall(ctx, p.ID, 1)
	if err != nil {
		t.Fatalf("GetWeeklyShortfall: %v", err)
	}
	if !got.Total.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("total after rollback = %s, want 50", got.Total)
	}

	b := model.NewAccumulatedBalance(p.ID, 2, now)
	if err := b.Apply(model.BalanceDelta{Total: decimal.NewFromInt(80)}, now); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := s.SaveLateShortfall(ctx, &ws, &b); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _, _ = s.GetWeeklyShortfall(ctx, p.ID, 1)
	if !got.Total.Equal(decimal.NewFromInt(80)) || !got.Remaining.Equal(decimal.NewFromInt(80)) || got.IsPaid {
		t.Fatalf("record = %+v, want total and remaining 80", got)
	}
	saved, ok, err := s.GetBalance(ctx, p.ID)
	if err != nil || !ok || !saved.RemainingAmount.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("balance = %+v ok=%v err=%v", saved, ok, err)
	}
}
