package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/esusu/internal/model"
)

// PlanRegistry supplies savings plans.
type PlanRegistry interface {
	ListActivePlans(ctx context.Context) ([]model.Plan, error)
	// GetPlan returns model.ErrNotFound for unknown ids.
	GetPlan(ctx context.Context, id int64) (model.Plan, error)
}

// CollectionLog exposes recorded daily collections.
type CollectionLog interface {
	GetPayment(ctx context.Context, planID int64, week, day int) (model.Payment, bool, error)
	TotalPaid(ctx context.Context, planID int64) (decimal.Decimal, error)
	TotalCollectedForWeek(ctx context.Context, week int) (decimal.Decimal, error)
}

// TrustDepositLedger exposes trust-deposit inflows.
type TrustDepositLedger interface {
	TotalDepositsForWeek(ctx context.Context, week int) (decimal.Decimal, error)
}

// OutflowLog exposes manual outflows.
type OutflowLog interface {
	TotalOutflowsForWeek(ctx context.Context, week int) (decimal.Decimal, error)
}

// ShortfallStore persists daily and weekly shortfalls. Create calls must
// return model.ErrDuplicate on a (plan, week, day) or (plan, week) clash.
type ShortfallStore interface {
	GetDailyShortfall(ctx context.Context, planID int64, week, day int) (model.DailyShortfall, bool, error)
	CreateDailyShortfall(ctx context.Context, ds *model.DailyShortfall) error
	ListUnpaidDailyShortfalls(ctx context.Context, planID int64, fromWeek int) ([]model.DailyShortfall, error)
	ListUnpaidDailyShortfallsForWeek(ctx context.Context, week int) ([]model.DailyShortfall, error)
	ApplyShortfallPayment(ctx context.Context, ds *model.DailyShortfall, p *model.ShortfallPayment) error
	TotalShortfallPaymentsBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)

	GetWeeklyShortfall(ctx context.Context, planID int64, week int) (model.WeeklyShortfall, bool, error)
	CreateWeeklyShortfall(ctx context.Context, ws *model.WeeklyShortfall) error
	UpdateWeeklyShortfall(ctx context.Context, ws *model.WeeklyShortfall) error
	// SaveLateShortfall upserts ws and, when b is non-nil, saves b in the same transaction.
	SaveLateShortfall(ctx context.Context, ws *model.WeeklyShortfall, b *model.AccumulatedBalance) error
	ListUnpaidWeeklyShortfalls(ctx context.Context, planID int64) ([]model.WeeklyShortfall, error)
	ListWeeklyShortfalls(ctx context.Context, planID int64) ([]model.WeeklyShortfall, error)
}

// BalanceStore persists accumulated balances and their logs. SaveBalance
// must refuse rows that fail model.AccumulatedBalance.Check.
type BalanceStore interface {
	GetBalance(ctx context.Context, planID int64) (model.AccumulatedBalance, bool, error)
	ListBalances(ctx context.Context) ([]model.AccumulatedBalance, error)
	AnyBalanceRolledPast(ctx context.Context, week int) (bool, error)
	SaveBalance(ctx context.Context, b *model.AccumulatedBalance) error
	SaveBalanceWithHistory(ctx context.Context, b *model.AccumulatedBalance, h *model.BalanceHistoryEntry) error

	RecordAccumulatedPayment(ctx context.Context, p *model.AccumulatedPayment) error
	ListAccumulatedPayments(ctx context.Context, planID, afterID int64, throughWeek int) ([]model.AccumulatedPayment, error)
	PendingAccumulatedPayments(ctx context.Context, planID, afterID int64) (decimal.Decimal, error)
	TotalAccumulatedPaymentsForWeek(ctx context.Context, week int) (decimal.Decimal, error)
	TotalArchivedPaid(ctx context.Context, planID int64) (decimal.Decimal, error)
}

// ReconciliationStore persists weekly reconciliations together with their
// vault deposit. RecordReconciliation must write both or neither and return
// model.ErrDuplicate when the week is already reconciled.
type ReconciliationStore interface {
	GetReconciliation(ctx context.Context, week int) (model.WeeklyReconciliation, bool, error)
	RecordReconciliation(ctx context.Context, r *model.WeeklyReconciliation, deposit *model.VaultTransaction) error
}

// Store is the full set of ports, as implemented by internal/store.
type Store interface {
	PlanRegistry
	CollectionLog
	TrustDepositLedger
	OutflowLog
	ShortfallStore
	BalanceStore
	ReconciliationStore
}
