package budget

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Aggregate turns allocations into analysis rows, one per allocation and in
// the same order. Status is left empty; see Summarize.
func Aggregate(allocs []CategoryAllocation) ([]CategoryAnalysis, error) {
	rows := make([]CategoryAnalysis, 0, len(allocs))
	for i, a := range allocs {
		if err := checkAllocation(i, a); err != nil {
			return nil, err
		}
		if a.Spent.IsNegative() {
			return nil, invalid(fmt.Sprintf("allocations[%d].spent", i), "must not be negative")
		}

		rows = append(rows, CategoryAnalysis{
			CategoryID:   a.CategoryID,
			CategoryName: a.CategoryName,
			Budgeted:     a.Allocated,
			Spent:        a.Spent,
			Remaining:    a.Allocated.Sub(a.Spent),
			Utilization:  percentOf(a.Spent, a.Allocated),
		})
	}
	return rows, nil
}

// percentOf returns part/whole*100, or zero when whole is not positive.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole)
}
