package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okhomyn/eventbot/internal/domain"
	"github.com/okhomyn/eventbot/internal/storage"
)

type StatsPeriod string

const (
	PeriodWeek  StatsPeriod = "week"
	PeriodMonth StatsPeriod = "month"
	PeriodYear  StatsPeriod = "year"
	PeriodAll   StatsPeriod = "all"
)

type StatsReport struct {
	Total      int
	Done       int
	Upcoming   int
	Expired    int
	ByCategory map[string]int
	ByRepeat   map[domain.Repeat]int
}

// StatsService builds per-period event statistics for a user.
type StatsService struct {
	storage  *storage.Storage
	timezone *time.Location
}

func NewStatsService(s *storage.Storage, tz *time.Location) *StatsService {
	if tz == nil {
		tz = time.UTC
	}
	return &StatsService{storage: s, timezone: tz}
}

// periodStart returns the inclusive lower date bound for the period, or a
// zero time for the all-time report. Weeks start on Monday.
func (s *StatsService) periodStart(period StatsPeriod, now time.Time) time.Time {
	now = now.In(s.timezone)
	switch period {
	case PeriodWeek:
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		return now.AddDate(0, 0, -daysSinceMonday)
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.timezone)
	case PeriodYear:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, s.timezone)
	}
	return time.Time{}
}

func (s *StatsService) Report(userID int64, period StatsPeriod, now time.Time) (*StatsReport, error) {
	events, err := s.storage.ListEventsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	from := s.periodStart(period, now)
	fromDay := from.Format("2006-01-02")

	report := &StatsReport{
		ByCategory: make(map[string]int),
		ByRepeat:   make(map[domain.Repeat]int),
	}

	for _, e := range events {
		if !from.IsZero() && e.Date.Format("2006-01-02") < fromDay {
			continue
		}

		report.Total++
		switch {
		case e.IsDone:
			report.Done++
		case s.startsNoEarlierThan(e, now):
			report.Upcoming++
		default:
			report.Expired++
		}

		if e.Category != "" {
			report.ByCategory[e.Category]++
		}
		if e.Repeat != domain.RepeatNone {
			report.ByRepeat[e.Repeat]++
		}
	}

	return report, nil
}

// startsNoEarlierThan reports whether the event still lies in the future.
// Events without a time of day are compared at the current clock time, so a
// dateless-hour event today still counts as upcoming.
func (s *StatsService) startsNoEarlierThan(e *domain.Event, now time.Time) bool {
	now = now.In(s.timezone)
	start, ok := e.StartAt(s.timezone)
	if !ok {
		start = time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(),
			now.Hour(), now.Minute(), now.Second(), 0, s.timezone)
	}
	return !start.Before(now)
}

// FormatReport renders the report for chat display.
func (s *StatsService) FormatReport(r *StatsReport, period StatsPeriod) string {
	if r.Total == 0 {
		return "Нет событий за выбранный период"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 <b>Статистика (%s)</b>\n\n", period))
	sb.WriteString(fmt.Sprintf("Всего: %d\n✅ Выполнено: %d\n🔜 Предстоит: %d\n⌛ Просрочено: %d\n", r.Total, r.Done, r.Upcoming, r.Expired))

	if len(r.ByCategory) > 0 {
		sb.WriteString("\n<b>По категориям:</b>\n")
		categories := make([]string, 0, len(r.ByCategory))
		for c := range r.ByCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			sb.WriteString(fmt.Sprintf("🏷 %s: %d\n", c, r.ByCategory[c]))
		}
	}

	if len(r.ByRepeat) > 0 {
		sb.WriteString("\n<b>Повторяющиеся:</b>\n")
		for _, kind := range []domain.Repeat{domain.RepeatDaily, domain.RepeatWeekly, domain.RepeatMonthly, domain.RepeatYearly} {
			if n := r.ByRepeat[kind]; n > 0 {
				sb.WriteString(fmt.Sprintf("🔁 %s: %d\n", kind, n))
			}
		}
	}

	return sb.String()
}
