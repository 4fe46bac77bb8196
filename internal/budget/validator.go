package budget

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AllocationCheck is the result of comparing category allocations against
// the period total. A mismatch is advisory: Valid is false and Warnings
// explains it, but no error is returned.
type AllocationCheck struct {
	Valid          bool            `json:"valid"`
	Total          decimal.Decimal `json:"total"`
	AllocatedTotal decimal.Decimal `json:"allocated_total"`
	Difference     decimal.Decimal `json:"difference"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// ValidateAllocations checks that allocs are well formed and reports how far
// their exact sum is from total.
func ValidateAllocations(total decimal.Decimal, allocs []CategoryAllocation) (AllocationCheck, error) {
	if total.IsNegative() {
		return AllocationCheck{}, invalid("total_amount", "must not be negative")
	}
	if err := checkAmount("total_amount", total); err != nil {
		return AllocationCheck{}, err
	}

	sum := decimal.Zero
	for i, a := range allocs {
		if err := checkAllocation(i, a); err != nil {
			return AllocationCheck{}, err
		}
		sum = sum.Add(a.Allocated)
	}

	diff := sum.Sub(total).Abs()
	check := AllocationCheck{
		Valid:          diff.IsZero(),
		Total:          total,
		AllocatedTotal: sum,
		Difference:     diff,
	}

	switch {
	case sum.LessThan(total):
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("allocations total %s, %s short of the budget total %s", sum, diff, total))
	case sum.GreaterThan(total):
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("allocations total %s, %s over the budget total %s", sum, diff, total))
	}

	return check, nil
}

func checkAllocation(i int, a CategoryAllocation) error {
	if strings.TrimSpace(a.CategoryID) == "" {
		return invalid(fmt.Sprintf("allocations[%d].category_id", i), "is required")
	}
	if a.Allocated.IsNegative() {
		return invalid(fmt.Sprintf("allocations[%d].allocated", i), "must not be negative")
	}
	if err := checkAmount(fmt.Sprintf("allocations[%d].allocated", i), a.Allocated); err != nil {
		return err
	}
	if a.Rollover.Valid {
		return checkAmount(fmt.Sprintf("allocations[%d].rollover", i), a.Rollover.Decimal)
	}
	return nil
}
