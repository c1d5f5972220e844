package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a daily collection entry from the collection log.
type Payment struct {
	ID        int64
	PlanID    int64
	Week      int
	Day       int
	Date      time.Time
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// TrustDeposit is money received from a trust-deposit member.
type TrustDeposit struct {
	ID        int64
	PlanID    int64
	Week      int
	Date      time.Time
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// OutflowCategory classifies manual outflows.
type OutflowCategory string

const (
	OutflowExpense OutflowCategory = "expense"
	OutflowLoss    OutflowCategory = "loss"
)

// Outflow is a manually logged operational expense or loss.
type Outflow struct {
	ID          int64
	Week        int
	Date        time.Time
	Amount      decimal.Decimal
	Category    OutflowCategory
	Description string
	CreatedAt   time.Time
}

// VaultKind is the direction of a vault transaction.
type VaultKind string

const (
	VaultDeposit    VaultKind = "deposit"
	VaultWithdrawal VaultKind = "withdrawal"
)

// VaultTransaction is an append-only cash ledger row.
type VaultTransaction struct {
	ID               string
	Kind             VaultKind
	Amount           decimal.Decimal
	Date             time.Time
	Description      string
	ReconciliationID int64
	CreatedAt        time.Time
}

// ReconciliationStatus is the weekly reconciliation state.
type ReconciliationStatus string

const (
	ReconciliationPending   ReconciliationStatus = "pending"
	ReconciliationCompleted ReconciliationStatus = "completed"
)

// ExpectedBreakdown itemizes the expected cash for a week.
type ExpectedBreakdown struct {
	Week            int
	PreviousActual  decimal.Decimal
	PreviousMissing bool
	Collections     decimal.Decimal
	ShortfallPaid   decimal.Decimal
	BalancePaid     decimal.Decimal
	TrustDeposits   decimal.Decimal
	Outflows        decimal.Decimal
}

// Total is the expected amount in hand.
func (b ExpectedBreakdown) Total() decimal.Decimal {
	return b.PreviousActual.
		Add(b.Collections).
		Add(b.ShortfallPaid).
		Add(b.BalancePaid).
		Add(b.TrustDeposits).
		Sub(b.Outflows)
}

// WeeklyReconciliation compares counted cash against the expected figure.
type WeeklyReconciliation struct {
	ID          int64
	Week        int
	WeekStart   time.Time
	Expected    decimal.Decimal
	Actual      decimal.Decimal
	Difference  decimal.Decimal
	Breakdown   ExpectedBreakdown
	Notes       string
	Status      ReconciliationStatus
	PerformedBy string
	PerformedAt time.Time
}
