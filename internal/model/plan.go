// Package model defines domain types for savings plans, arrears and cash.
package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Storage-level sentinel errors shared by every persistence implementation.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// PlanStatus is the lifecycle state of a savings plan.
type PlanStatus string

const (
	PlanActive   PlanStatus = "active"
	PlanComplete PlanStatus = "complete"
	PlanArchived PlanStatus = "archived"
)

// Classification separates regular contributors from trust-deposit members.
type Classification string

const (
	ClassRegular Classification = "regular"
	// ClassTrust members deposit behind the association and never accrue arrears.
	ClassTrust Classification = "trust"
)

// Plan is a member's enrollment with a fixed daily contribution.
type Plan struct {
	ID             int64
	MemberID       string
	MemberName     string
	DailyAmount    decimal.Decimal
	Status         PlanStatus
	Classification Classification
	// Schedule lists the collection day numbers (1-7). Empty means every day.
	Schedule  []int
	StartDate time.Time
	CreatedAt time.Time
}

// IsTrust reports whether the plan belongs to a trust-deposit member.
func (p Plan) IsTrust() bool {
	return p.Classification == ClassTrust
}

// IsActive reports whether the plan is still collecting.
func (p Plan) IsActive() bool {
	return p.Status == PlanActive
}

// CollectsOn reports whether day (1-7) is a collection day for the plan.
func (p Plan) CollectsOn(day int) bool {
	if len(p.Schedule) == 0 {
		return true
	}
	for _, d := range p.Schedule {
		if d == day {
			return true
		}
	}
	return false
}

// AccruesOn reports whether the plan can owe a contribution on date.
func (p Plan) AccruesOn(date time.Time, day int) bool {
	if p.IsTrust() || !p.IsActive() {
		return false
	}
	if !p.StartDate.IsZero() && date.Before(p.StartDate) {
		return false
	}
	return p.CollectsOn(day)
}
