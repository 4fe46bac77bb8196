package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

var warningThreshold = decimal.NewFromInt(80)

// Classify maps a utilization percentage to a status. Over requires strictly
// more than 100; warning starts at exactly 80.
func Classify(utilization decimal.Decimal) Status {
	switch {
	case utilization.GreaterThan(hundred):
		return StatusOver
	case utilization.GreaterThanOrEqual(warningThreshold):
		return StatusWarning
	default:
		return StatusGood
	}
}

// Summarize classifies every category of p and computes the period rollup
// as of now. When p has rollover enabled, each allocation's rollover is
// folded into its budgeted amount first, floored at zero.
func Summarize(p Period, allocs []CategoryAllocation, now time.Time) ([]CategoryAnalysis, Rollup, error) {
	if err := p.Validate(); err != nil {
		return nil, Rollup{}, err
	}

	effective, applied, err := applyRollover(p, allocs)
	if err != nil {
		return nil, Rollup{}, err
	}

	rows, err := Aggregate(effective)
	if err != nil {
		return nil, Rollup{}, err
	}

	r := Rollup{
		TotalBudgeted:   decimal.Zero,
		TotalSpent:      decimal.Zero,
		RolloverApplied: applied,
	}
	for i := range rows {
		rows[i].Status = Classify(rows[i].Utilization)
		switch rows[i].Status {
		case StatusOver:
			r.StatusCounts.Over++
		case StatusWarning:
			r.StatusCounts.Warning++
		default:
			r.StatusCounts.Good++
		}
		r.TotalBudgeted = r.TotalBudgeted.Add(rows[i].Budgeted)
		r.TotalSpent = r.TotalSpent.Add(rows[i].Spent)
	}
	r.TotalRemaining = r.TotalBudgeted.Sub(r.TotalSpent)
	r.BudgetUtilization = percentOf(r.TotalSpent, r.TotalBudgeted)
	r.SavingsRate = percentOf(r.TotalRemaining, r.TotalBudgeted)

	total := p.TotalDays()
	r.DaysElapsed = p.DaysElapsed(now)
	r.DaysRemaining = max(0, total-r.DaysElapsed)

	// Linear projection at the average daily pace so far.
	r.AverageDailySpend = decimal.Zero
	if r.DaysElapsed > 0 {
		r.AverageDailySpend = r.TotalSpent.Div(decimal.NewFromInt(int64(r.DaysElapsed)))
	}
	r.ProjectedSpend = r.TotalSpent.Add(r.AverageDailySpend.Mul(decimal.NewFromInt(int64(r.DaysRemaining))))

	return rows, r, nil
}

// applyRollover returns a copy of allocs with rollover folded into Allocated
// and the total amount actually added (or removed).
func applyRollover(p Period, allocs []CategoryAllocation) ([]CategoryAllocation, decimal.Decimal, error) {
	out := make([]CategoryAllocation, len(allocs))
	applied := decimal.Zero
	for i, a := range allocs {
		if err := checkAllocation(i, a); err != nil {
			return nil, decimal.Zero, err
		}
		out[i] = a
		if !p.RolloverEnabled || !a.Rollover.Valid {
			continue
		}
		eff := decimal.Max(decimal.Zero, a.Allocated.Add(a.Rollover.Decimal))
		applied = applied.Add(eff.Sub(a.Allocated))
		out[i].Allocated = eff
	}
	return out, applied, nil
}

// Report is the full analysis of one period.
type Report struct {
	Period     Period             `json:"period"`
	AsOf       time.Time          `json:"as_of"`
	Check      AllocationCheck    `json:"allocation_check"`
	Categories []CategoryAnalysis `json:"categories"`
	Rollup     Rollup             `json:"rollup"`
}

// Analyze runs the allocation check, the aggregation and the classification
// in order and collects their results.
func Analyze(p Period, allocs []CategoryAllocation, now time.Time) (*Report, error) {
	check, err := ValidateAllocations(p.TotalAmount, allocs)
	if err != nil {
		return nil, err
	}

	rows, rollup, err := Summarize(p, allocs, now)
	if err != nil {
		return nil, err
	}

	return &Report{
		Period:     p,
		AsOf:       now,
		Check:      check,
		Categories: rows,
		Rollup:     rollup,
	}, nil
}
