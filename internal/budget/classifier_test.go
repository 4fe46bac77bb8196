package budget

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func january(rollover bool, total string) Period {
	return Period{
		ID:              "p1",
		Name:            "January",
		TotalAmount:     d(total),
		Kind:            PeriodMonthly,
		StartDate:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, time.January, 31, 23, 59, 59, 0, time.UTC),
		IsActive:        true,
		RolloverEnabled: rollover,
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		utilization string
		want        Status
	}{
		{"0", StatusGood},
		{"79.9999", StatusGood},
		{"80", StatusWarning},
		{"99.5", StatusWarning},
		{"100", StatusWarning},
		{"100.0001", StatusOver},
		{"125", StatusOver},
	}
	for _, tc := range cases {
		t.Run(tc.utilization, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(d(tc.utilization)))
		})
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC)

	t.Run("threshold boundaries", func(t *testing.T) {
		rows, _, err := Summarize(january(false, "300"), []CategoryAllocation{
			alloc("zero", "0", "0"),
			alloc("eighty", "100", "80"),
			alloc("hundred", "100", "100"),
			alloc("over", "200", "250"),
		}, now)
		require.NoError(t, err)

		assert.Equal(t, StatusGood, rows[0].Status)
		assert.True(t, rows[0].Utilization.IsZero())
		assert.Equal(t, StatusWarning, rows[1].Status)
		assert.Equal(t, StatusWarning, rows[2].Status)
		assert.Equal(t, StatusOver, rows[3].Status)
		assert.True(t, rows[3].Remaining.Equal(d("-50")))
		assert.True(t, rows[3].Utilization.Equal(d("125")))
	})

	t.Run("projection over a 31 day month", func(t *testing.T) {
		_, r, err := Summarize(january(false, "1000"), []CategoryAllocation{
			alloc("rent", "600", "300"),
			alloc("food", "400", "150"),
		}, now)
		require.NoError(t, err)

		assert.Equal(t, 15, r.DaysElapsed)
		assert.Equal(t, 16, r.DaysRemaining)
		assert.True(t, r.TotalSpent.Equal(d("450")))
		assert.True(t, r.AverageDailySpend.Equal(d("30")), "avg = %s", r.AverageDailySpend)
		assert.True(t, r.ProjectedSpend.Equal(d("930")), "projected = %s", r.ProjectedSpend)
		assert.True(t, r.TotalRemaining.Equal(d("550")))
		assert.True(t, r.SavingsRate.Equal(d("55")))
		assert.True(t, r.BudgetUtilization.Equal(d("45")))
		assert.Equal(t, StatusCounts{Good: 2}, r.StatusCounts)
	})

	t.Run("rollover reduces effective budget", func(t *testing.T) {
		a := alloc("food", "100", "85")
		a.Rollover = decimal.NewNullDecimal(d("-20"))

		rows, r, err := Summarize(january(true, "100"), []CategoryAllocation{a}, now)
		require.NoError(t, err)

		assert.True(t, rows[0].Budgeted.Equal(d("80")))
		assert.True(t, rows[0].Utilization.Equal(d("106.25")), "utilization = %s", rows[0].Utilization)
		assert.Equal(t, StatusOver, rows[0].Status)
		assert.True(t, r.RolloverApplied.Equal(d("-20")))
	})

	t.Run("rollover ignored when disabled", func(t *testing.T) {
		a := alloc("food", "100", "85")
		a.Rollover = decimal.NewNullDecimal(d("-20"))

		rows, r, err := Summarize(january(false, "100"), []CategoryAllocation{a}, now)
		require.NoError(t, err)

		assert.True(t, rows[0].Budgeted.Equal(d("100")))
		assert.Equal(t, StatusWarning, rows[0].Status)
		assert.True(t, r.RolloverApplied.IsZero())
	})

	t.Run("effective budget floors at zero", func(t *testing.T) {
		a := alloc("food", "50", "10")
		a.Rollover = decimal.NewNullDecimal(d("-80"))

		rows, r, err := Summarize(january(true, "50"), []CategoryAllocation{a}, now)
		require.NoError(t, err)

		assert.True(t, rows[0].Budgeted.IsZero())
		assert.True(t, rows[0].Remaining.Equal(d("-10")))
		assert.True(t, r.RolloverApplied.Equal(d("-50")))
	})

	t.Run("positive rollover raises budget", func(t *testing.T) {
		a := alloc("food", "100", "100")
		a.Rollover = decimal.NewNullDecimal(d("25"))

		rows, _, err := Summarize(january(true, "100"), []CategoryAllocation{a}, now)
		require.NoError(t, err)
		assert.True(t, rows[0].Utilization.Equal(d("80")))
		assert.Equal(t, StatusWarning, rows[0].Status)
	})

	t.Run("sum closure", func(t *testing.T) {
		rows, r, err := Summarize(january(false, "100"), []CategoryAllocation{
			alloc("a", "33.33", "10.01"),
			alloc("b", "33.33", "40.10"),
			alloc("c", "33.34", "0.07"),
		}, now)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, row := range rows {
			sum = sum.Add(row.Remaining)
		}
		assert.True(t, sum.Equal(r.TotalBudgeted.Sub(r.TotalSpent)), "sum = %s", sum)
		assert.True(t, sum.Equal(r.TotalRemaining))
	})

	t.Run("before the period starts", func(t *testing.T) {
		before := time.Date(2023, time.December, 20, 0, 0, 0, 0, time.UTC)
		_, r, err := Summarize(january(false, "100"), []CategoryAllocation{alloc("a", "100", "10")}, before)
		require.NoError(t, err)

		assert.Equal(t, 0, r.DaysElapsed)
		assert.Equal(t, 31, r.DaysRemaining)
		assert.True(t, r.AverageDailySpend.IsZero())
		assert.True(t, r.ProjectedSpend.Equal(d("10")))
	})

	t.Run("after the period ends", func(t *testing.T) {
		after := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
		_, r, err := Summarize(january(false, "310"), []CategoryAllocation{alloc("a", "310", "310")}, after)
		require.NoError(t, err)

		assert.Equal(t, 31, r.DaysElapsed)
		assert.Equal(t, 0, r.DaysRemaining)
		assert.True(t, r.AverageDailySpend.Equal(d("10")))
		assert.True(t, r.ProjectedSpend.Equal(d("310")))
	})

	t.Run("empty allocations", func(t *testing.T) {
		rows, r, err := Summarize(january(false, "0"), nil, now)
		require.NoError(t, err)

		assert.Empty(t, rows)
		assert.True(t, r.SavingsRate.IsZero())
		assert.True(t, r.BudgetUtilization.IsZero())
	})

	t.Run("end date not after start date", func(t *testing.T) {
		p := january(false, "100")
		p.EndDate = p.StartDate

		_, _, err := Summarize(p, nil, now)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "end_date", verr.Field)
	})

	t.Run("negative allocation with rollover still fails", func(t *testing.T) {
		a := alloc("food", "-10", "0")
		a.Rollover = decimal.NewNullDecimal(d("50"))

		_, _, err := Summarize(january(true, "40"), []CategoryAllocation{a}, now)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
	})
}

func TestAnalyze(t *testing.T) {
	now := time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC)
	allocs := []CategoryAllocation{
		alloc("rent", "500", "500"),
		alloc("food", "300", "260"),
	}

	t.Run("collects all stages", func(t *testing.T) {
		report, err := Analyze(january(false, "1000"), allocs, now)
		require.NoError(t, err)

		assert.False(t, report.Check.Valid)
		assert.True(t, report.Check.Difference.Equal(d("200")))
		require.Len(t, report.Categories, 2)
		assert.Equal(t, StatusWarning, report.Categories[0].Status)
		assert.Equal(t, StatusWarning, report.Categories[1].Status)
		assert.Equal(t, 2, report.Rollup.StatusCounts.Warning)
		assert.Equal(t, now, report.AsOf)
	})

	t.Run("is idempotent", func(t *testing.T) {
		first, err := Analyze(january(true, "800"), allocs, now)
		require.NoError(t, err)
		second, err := Analyze(january(true, "800"), allocs, now)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		a := alloc("food", "100", "10")
		a.Rollover = decimal.NewNullDecimal(d("-30"))
		in := []CategoryAllocation{a}

		_, err := Analyze(january(true, "100"), in, now)
		require.NoError(t, err)
		assert.True(t, in[0].Allocated.Equal(d("100")))
	})

	t.Run("propagates validation errors", func(t *testing.T) {
		_, err := Analyze(january(false, "100"), []CategoryAllocation{alloc("", "100", "0")}, now)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}
