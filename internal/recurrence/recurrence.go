// Package recurrence computes next-occurrence dates for repeating events.
package recurrence

import (
	"time"

	"github.com/okhomyn/eventbot/internal/domain"
)

// Next returns the date of the occurrence that follows date for the given
// repeat kind. ok is false for non-repeating events.
func Next(kind domain.Repeat, date time.Time) (time.Time, bool) {
	switch kind {
	case domain.RepeatDaily:
		return date.AddDate(0, 0, 1), true
	case domain.RepeatWeekly:
		return date.AddDate(0, 0, 7), true
	case domain.RepeatMonthly:
		return NextMonthly(date), true
	case domain.RepeatYearly:
		return NextYearly(date), true
	}
	return time.Time{}, false
}

// NextMonthly advances one month keeping the day of month. When the target
// month has no such day (the 31st in a 30-day month), the occurrence falls
// to the first day of the month after next: 31.01 becomes 01.03, never
// 28.02. Callers relying on end-of-month semantics must account for this.
func NextMonthly(date time.Time) time.Time {
	y, m, d := date.Date()
	next := time.Date(y, m+1, d, 0, 0, 0, 0, date.Location())
	if next.Day() == d {
		return next
	}
	return time.Date(y, m+2, 1, 0, 0, 0, 0, date.Location())
}

// NextYearly advances one year keeping month and day. When the target date
// does not exist (Feb 29 in a non-leap year), the occurrence is 365 days
// after the source date instead.
func NextYearly(date time.Time) time.Time {
	y, m, d := date.Date()
	next := time.Date(y+1, m, d, 0, 0, 0, 0, date.Location())
	if next.Month() == m && next.Day() == d {
		return next
	}
	return date.AddDate(0, 0, 365)
}
