package core

import (
	"fmt"
	"time"
)

// TimestampPrecision is the resolution every stored timestamp is truncated
// to, so that boundary comparisons behave the same in every store.
const TimestampPrecision = time.Microsecond

// PeriodStart returns the exclusive lower bound of the open period, or nil
// when the user has never closed one and every transaction counts.
func PeriodStart(last *MonthClosure) *time.Time {
	if last == nil {
		return nil
	}
	t := last.ClosureDate
	return &t
}

// InPeriod reports whether a transaction created at createdAt belongs to the
// period opened by last.
func InPeriod(last *MonthClosure, createdAt time.Time) bool {
	start := PeriodStart(last)
	return start == nil || createdAt.After(*start)
}

// NetBalance is income plus the configured monthly income minus expenses.
func NetBalance(totals PeriodTotals, monthly Money) Money {
	return totals.Income.Add(monthly).Sub(totals.Expenses)
}

// ComputeClosure builds the closure record that ends the open period at the
// given instant. The accumulated balance chains from the last stored
// closure and is never recomputed from history.
func ComputeClosure(userID string, last *MonthClosure, totals PeriodTotals, monthly Money, at time.Time) MonthClosure {
	at = at.UTC().Truncate(TimestampPrecision)
	var prevAccumulated Money
	if last != nil {
		prevAccumulated = last.AccumulatedBalance
		if !at.After(last.ClosureDate) {
			at = last.ClosureDate.Add(TimestampPrecision)
		}
	}

	net := NetBalance(totals, monthly)
	return MonthClosure{
		UserID:             userID,
		MonthYear:          MonthYear(at),
		ClosureDate:        at,
		TotalIncome:        totals.Income.Add(monthly),
		TotalExpenses:      totals.Expenses,
		NetBalance:         net,
		AccumulatedBalance: prevAccumulated.Add(net),
		CurrencyCode:       BaseCurrency,
		Notes:              ClosureNote(at),
	}
}

// MonthYear formats the first day of t's month as YYYY-MM-01.
func MonthYear(t time.Time) string {
	return t.Format("2006-01") + "-01"
}

// ClosureNote is the human readable note stored with each closure, using
// the day/month/year order of the es-AR locale.
func ClosureNote(t time.Time) string {
	return fmt.Sprintf("Cierre de balance - %d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

// StampInPeriod returns the creation time for a new entry so that it always
// lands in the period opened by last, even if the wall clock stepped back.
func StampInPeriod(last *MonthClosure, now time.Time) time.Time {
	now = now.UTC().Truncate(TimestampPrecision)
	if last != nil && !now.After(last.ClosureDate) {
		return last.ClosureDate.Add(TimestampPrecision)
	}
	return now
}
