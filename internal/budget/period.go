package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

const secondsPerDay = 24 * 60 * 60

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// PeriodEnd returns the last instant of a period of the given kind that
// begins on start's day.
func PeriodEnd(kind PeriodKind, start time.Time) (time.Time, error) {
	s := StartOfDay(start)
	var next time.Time
	switch kind {
	case PeriodDaily:
		next = s.AddDate(0, 0, 1)
	case PeriodWeekly:
		next = s.AddDate(0, 0, 7)
	case PeriodMonthly:
		next = s.AddDate(0, 1, 0)
	case PeriodQuarterly:
		next = s.AddDate(0, 3, 0)
	case PeriodYearly:
		next = s.AddDate(1, 0, 0)
	default:
		return time.Time{}, invalid("period", "unknown period kind "+string(kind))
	}
	return next.Add(-time.Nanosecond), nil
}

// NextStart returns the first day after the period ends.
func (p Period) NextStart() time.Time {
	return StartOfDay(p.EndDate).AddDate(0, 0, 1)
}

// TotalDays counts the calendar days from the start date to the end date,
// both inclusive.
func (p Period) TotalDays() int {
	return civilDays(p.StartDate, p.EndDate) + 1
}

// DaysElapsed is the number of started days between the period start and
// now, clamped to [0, TotalDays].
func (p Period) DaysElapsed(now time.Time) int {
	// Unix seconds instead of Sub, which saturates past ~292 years.
	secs := now.Unix() - p.StartDate.Unix()
	nanos := now.Nanosecond() - p.StartDate.Nanosecond()
	if secs < 0 || (secs == 0 && nanos <= 0) {
		return 0
	}
	n := secs / secondsPerDay
	if secs%secondsPerDay != 0 || nanos > 0 {
		n++
	}
	return int(min(n, int64(p.TotalDays())))
}

// civilDays counts calendar date changes from a to b, ignoring clock time
// and DST shifts.
func civilDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int((db.Unix() - da.Unix()) / secondsPerDay)
}

// CarryForward maps each category to the amount it should roll into the
// next period: its remaining balance, negative when overspent.
func CarryForward(rows []CategoryAnalysis) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[r.CategoryID] = r.Remaining
	}
	return out
}
