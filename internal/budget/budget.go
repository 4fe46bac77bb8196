// Package budget computes allocation checks, per-category utilization and
// period rollups for a budget. Everything in this package is pure: callers
// hand in a period, its category allocations and the amounts already spent,
// and receive derived values back. Nothing here reads or writes storage.
package budget

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PeriodKind is the length of one budgeting cycle.
type PeriodKind string

const (
	PeriodDaily     PeriodKind = "daily"
	PeriodWeekly    PeriodKind = "weekly"
	PeriodMonthly   PeriodKind = "monthly"
	PeriodQuarterly PeriodKind = "quarterly"
	PeriodYearly    PeriodKind = "yearly"
)

// Valid reports whether k is one of the known period kinds.
func (k PeriodKind) Valid() bool {
	switch k {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return true
	}
	return false
}

// Status is the qualitative state of a category's spending.
type Status string

const (
	StatusGood    Status = "good"
	StatusWarning Status = "warning"
	StatusOver    Status = "over"
)

// Period is one budgeting cycle.
type Period struct {
	ID              string          `json:"id,omitempty"`
	Name            string          `json:"name"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Kind            PeriodKind      `json:"period"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	IsActive        bool            `json:"is_active"`
	IsTemplate      bool            `json:"is_template"`
	RolloverEnabled bool            `json:"rollover_enabled"`
}

// Validate checks the period's own invariants.
func (p Period) Validate() error {
	if p.TotalAmount.IsNegative() {
		return invalid("total_amount", "must not be negative")
	}
	if err := checkAmount("total_amount", p.TotalAmount); err != nil {
		return err
	}
	if !p.Kind.Valid() {
		return invalid("period", fmt.Sprintf("unknown period kind %q", p.Kind))
	}
	if !p.EndDate.After(p.StartDate) {
		return invalid("end_date", "must be after start_date")
	}
	return nil
}

// CategoryAllocation is one category row within a period. Spent is
// aggregated by the caller; Rollover is carried over from the prior period
// and may be negative when that period was overspent.
type CategoryAllocation struct {
	CategoryID   string              `json:"category_id"`
	CategoryName string              `json:"category_name,omitempty"`
	Allocated    decimal.Decimal     `json:"allocated"`
	Spent        decimal.Decimal     `json:"spent"`
	Rollover     decimal.NullDecimal `json:"rollover"`
}

// CategoryAnalysis is the derived view of one allocation.
type CategoryAnalysis struct {
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name,omitempty"`
	Budgeted     decimal.Decimal `json:"budgeted"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	Utilization  decimal.Decimal `json:"utilization_percentage"`
	Status       Status          `json:"status,omitempty"`
}

// StatusCounts is the number of categories in each status bucket.
type StatusCounts struct {
	Good    int `json:"good"`
	Warning int `json:"warning"`
	Over    int `json:"over"`
}

// Rollup aggregates all categories of a period plus time based projections.
type Rollup struct {
	TotalBudgeted     decimal.Decimal `json:"total_budgeted"`
	TotalSpent        decimal.Decimal `json:"total_spent"`
	TotalRemaining    decimal.Decimal `json:"total_remaining"`
	BudgetUtilization decimal.Decimal `json:"budget_utilization"`
	RolloverApplied   decimal.Decimal `json:"rollover_applied"`
	DaysElapsed       int             `json:"days_elapsed"`
	DaysRemaining     int             `json:"days_remaining"`
	AverageDailySpend decimal.Decimal `json:"average_daily_spend"`
	ProjectedSpend    decimal.Decimal `json:"projected_spend"`
	SavingsRate       decimal.Decimal `json:"savings_rate"`
	StatusCounts      StatusCounts    `json:"status_counts"`
}

// ValidationError reports malformed budget input. It is the only error kind
// this package returns.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

const (
	// maxAmountDigits is the number of integer digits an amount may have,
	// matching the numeric(20,2) money columns.
	maxAmountDigits = 18
	maxAmountScale  = 8
	maxAmountInput  = 64
)

// ParseAmount parses a decimal amount, rejecting anything that is not a
// finite number or is outside the range checkAmount allows.
func ParseAmount(field, s string) (decimal.Decimal, error) {
	if len(s) > maxAmountInput {
		return decimal.Zero, invalid(field, "is too long")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid(field, fmt.Sprintf("%q is not a number", s))
	}
	if err := checkAmount(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// RoundAmount checks d the way ParseAmount does and rounds it to cents.
func RoundAmount(field string, d decimal.Decimal) (decimal.Decimal, error) {
	if err := checkAmount(field, d); err != nil {
		return decimal.Zero, err
	}
	return d.Round(2), nil
}

// checkAmount bounds the magnitude and scale of d. Only the exponent and
// coefficient length are inspected, so huge exponents stay cheap.
func checkAmount(field string, d decimal.Decimal) error {
	if d.Exponent() < -maxAmountScale {
		return invalid(field, fmt.Sprintf("has more than %d decimal places", maxAmountScale))
	}
	if int64(d.NumDigits())+int64(d.Exponent()) > maxAmountDigits {
		return invalid(field, fmt.Sprintf("exceeds %d integer digits", maxAmountDigits))
	}
	return nil
}
