package recurrence

import (
	"testing"
	"time"

	"github.com/okhomyn/eventbot/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNext(t *testing.T) {
	tests := []struct {
		name string
		kind domain.Repeat
		date time.Time
		want time.Time
		ok   bool
	}{
		{"none has no next", domain.RepeatNone, date(2025, 1, 15), time.Time{}, false},
		{"daily", domain.RepeatDaily, date(2025, 1, 15), date(2025, 1, 16), true},
		{"daily across month end", domain.RepeatDaily, date(2025, 1, 31), date(2025, 2, 1), true},
		{"weekly", domain.RepeatWeekly, date(2025, 1, 15), date(2025, 1, 22), true},
		{"weekly across year end", domain.RepeatWeekly, date(2024, 12, 30), date(2025, 1, 6), true},
		{"monthly simple", domain.RepeatMonthly, date(2025, 1, 15), date(2025, 2, 15), true},
		{"monthly december wraps year", domain.RepeatMonthly, date(2025, 12, 15), date(2026, 1, 15), true},
		{"monthly 31st skips short month", domain.RepeatMonthly, date(2025, 1, 31), date(2025, 3, 1), true},
		{"monthly 30th skips february", domain.RepeatMonthly, date(2025, 1, 30), date(2025, 3, 1), true},
		{"monthly 31st of march skips april", domain.RepeatMonthly, date(2025, 3, 31), date(2025, 5, 1), true},
		{"monthly 29th into leap february", domain.RepeatMonthly, date(2024, 1, 29), date(2024, 2, 29), true},
		{"yearly simple", domain.RepeatYearly, date(2025, 6, 10), date(2026, 6, 10), true},
		{"yearly leap day falls back 365 days", domain.RepeatYearly, date(2024, 2, 29), date(2025, 2, 28), true},
		{"yearly into leap year keeps date", domain.RepeatYearly, date(2023, 2, 28), date(2024, 2, 28), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Next(tt.kind, tt.date)
			if ok != tt.ok {
				t.Fatalf("Next(%s, %s) ok = %v, want %v", tt.kind, tt.date.Format("2006-01-02"), ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("Next(%s, %s) = %s, want %s", tt.kind, tt.date.Format("2006-01-02"),
					got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

// The monthly fallback must not clamp to the last valid day of the month.
func TestNextMonthlyNeverClamps(t *testing.T) {
	got := NextMonthly(date(2025, 1, 31))
	if got.Equal(date(2025, 2, 28)) {
		t.Fatalf("NextMonthly clamped to end of February; want skip to 01.03")
	}
	if !got.Equal(date(2025, 3, 1)) {
		t.Fatalf("NextMonthly(31.01.2025) = %s, want 01.03.2025", got.Format("02.01.2006"))
	}
}
