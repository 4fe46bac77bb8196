package budget

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	t.Run("computes remaining and utilization in input order", func(t *testing.T) {
		rows, err := Aggregate([]CategoryAllocation{
			alloc("b", "200", "250"),
			alloc("a", "400", "100"),
		})
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, "b", rows[0].CategoryID)
		assert.True(t, rows[0].Remaining.Equal(d("-50")), "remaining = %s", rows[0].Remaining)
		assert.True(t, rows[0].Utilization.Equal(d("125")), "utilization = %s", rows[0].Utilization)

		assert.Equal(t, "a", rows[1].CategoryID)
		assert.True(t, rows[1].Remaining.Equal(d("300")))
		assert.True(t, rows[1].Utilization.Equal(d("25")))
	})

	t.Run("zero allocation yields zero utilization", func(t *testing.T) {
		rows, err := Aggregate([]CategoryAllocation{alloc("gifts", "0", "0")})
		require.NoError(t, err)
		assert.True(t, rows[0].Utilization.IsZero())
	})

	t.Run("leaves status to the classifier", func(t *testing.T) {
		rows, err := Aggregate([]CategoryAllocation{alloc("x", "10", "20")})
		require.NoError(t, err)
		assert.Empty(t, rows[0].Status)
	})

	t.Run("ignores rollover", func(t *testing.T) {
		a := alloc("x", "100", "50")
		a.Rollover = decimal.NewNullDecimal(d("-20"))
		rows, err := Aggregate([]CategoryAllocation{a})
		require.NoError(t, err)
		assert.True(t, rows[0].Budgeted.Equal(d("100")))
	})

	t.Run("copies category name through", func(t *testing.T) {
		a := alloc("x", "10", "1")
		a.CategoryName = "Groceries"
		rows, err := Aggregate([]CategoryAllocation{a})
		require.NoError(t, err)
		assert.Equal(t, "Groceries", rows[0].CategoryName)
	})

	t.Run("rejects negative spent", func(t *testing.T) {
		_, err := Aggregate([]CategoryAllocation{alloc("x", "10", "-1")})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "allocations[0].spent", verr.Field)
	})

	t.Run("rejects negative allocated", func(t *testing.T) {
		_, err := Aggregate([]CategoryAllocation{alloc("x", "-10", "1")})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
	})

	t.Run("utilization is never negative", func(t *testing.T) {
		rows, err := Aggregate([]CategoryAllocation{
			alloc("a", "0", "5"),
			alloc("b", "3", "0"),
			alloc("c", "7", "9"),
		})
		require.NoError(t, err)
		for _, r := range rows {
			assert.False(t, r.Utilization.IsNegative(), "%s utilization = %s", r.CategoryID, r.Utilization)
		}
	})
}
