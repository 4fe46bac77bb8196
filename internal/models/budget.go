package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
)

// Budget is one persisted budgeting period. Budgets are never deleted in
// place: they are deactivated, and templates are kept to seed new periods.
type Budget struct {
	Base
	UserID          string            `gorm:"type:uuid;not null;index" json:"user_id"`
	Name            string            `gorm:"not null" json:"name"`
	TotalAmount     decimal.Decimal   `gorm:"type:numeric(20,2);not null" json:"total_amount" swaggertype:"string" example:"1000.00"`
	Period          budget.PeriodKind `gorm:"not null" json:"period" swaggertype:"string" example:"monthly"`
	StartDate       time.Time         `gorm:"not null" json:"start_date"`
	EndDate         time.Time         `gorm:"not null" json:"end_date"`
	IsActive        bool              `gorm:"not null;default:true" json:"is_active"`
	IsTemplate      bool              `gorm:"not null;default:false" json:"is_template"`
	RolloverEnabled bool              `gorm:"not null;default:false" json:"rollover_enabled"`

	Allocations []BudgetAllocation `gorm:"foreignKey:BudgetID" json:"allocations"`
}

// BudgetAllocation is the share of a budget assigned to one category.
// Rollover is carried over from the previous period and is null when the
// budget was not rolled forward.
type BudgetAllocation struct {
	Base
	BudgetID   string              `gorm:"type:uuid;not null;uniqueIndex:idx_alloc_budget_category" json:"budget_id"`
	CategoryID string              `gorm:"type:uuid;not null;uniqueIndex:idx_alloc_budget_category" json:"category_id"`
	Amount     decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"amount" swaggertype:"string" example:"250.00"`
	Rollover   decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"rollover" swaggertype:"string" example:"-20.00"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// ToPeriod converts b into the value the budget package computes over.
func (b *Budget) ToPeriod() budget.Period {
	return budget.Period{
		ID:              b.ID,
		Name:            b.Name,
		TotalAmount:     b.TotalAmount,
		Kind:            b.Period,
		StartDate:       b.StartDate,
		EndDate:         b.EndDate,
		IsActive:        b.IsActive,
		IsTemplate:      b.IsTemplate,
		RolloverEnabled: b.RolloverEnabled,
	}
}

// ToAllocations converts the loaded allocations, looking up spend per
// category in spent. Categories absent from spent have spent nothing.
func (b *Budget) ToAllocations(spent map[string]decimal.Decimal) []budget.CategoryAllocation {
	out := make([]budget.CategoryAllocation, 0, len(b.Allocations))
	for _, a := range b.Allocations {
		ca := budget.CategoryAllocation{
			CategoryID: a.CategoryID,
			Allocated:  a.Amount,
			Spent:      decimal.Zero,
			Rollover:   a.Rollover,
		}
		if s, ok := spent[a.CategoryID]; ok {
			ca.Spent = s
		}
		if a.Category != nil {
			ca.CategoryName = a.Category.Name
		}
		out = append(out, ca)
	}
	return out
}

// CategoryIDs returns the allocated category ids in allocation order.
func (b *Budget) CategoryIDs() []string {
	ids := make([]string, 0, len(b.Allocations))
	for _, a := range b.Allocations {
		ids = append(ids, a.CategoryID)
	}
	return ids
}
