package domain

import "time"

type Repeat string

const (
	RepeatNone    Repeat = "none"
	RepeatDaily   Repeat = "daily"
	RepeatWeekly  Repeat = "weekly"
	RepeatMonthly Repeat = "monthly"
	RepeatYearly  Repeat = "yearly"
)

// ParseRepeat validates a user-supplied repeat kind.
func ParseRepeat(s string) (Repeat, bool) {
	switch Repeat(s) {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return Repeat(s), true
	}
	return "", false
}

// Event is a single calendar entry owned by one user.
//
// Date holds the calendar day (midnight, location is irrelevant). TimeOfDay
// is "HH:MM" and nil when the event has no exact time; events without a time
// are never reminded. RemindBefore is minutes before start, 0 disables the
// reminder. Notified and IsDone only ever go false -> true.
type Event struct {
	ID           int64
	UserID       int64
	Title        string
	Description  string
	Date         time.Time
	TimeOfDay    *string
	Category     string
	Tag          string
	RemindBefore int
	Repeat       Repeat
	IsDone       bool
	Notified     bool
	CreatedAt    time.Time
}

// StartAt combines Date and TimeOfDay in the given location.
// ok is false when the event has no time of day.
func (e *Event) StartAt(loc *time.Location) (time.Time, bool) {
	if e.TimeOfDay == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("15:04", *e.TimeOfDay, loc)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(),
		t.Hour(), t.Minute(), 0, 0, loc), true
}

// NotifyAt is the moment the reminder for this event becomes due.
// ok is false when the event has no time or reminding is disabled.
func (e *Event) NotifyAt(loc *time.Location) (time.Time, bool) {
	start, ok := e.StartAt(loc)
	if !ok || e.RemindBefore <= 0 {
		return time.Time{}, false
	}
	return start.Add(-time.Duration(e.RemindBefore) * time.Minute), true
}

// CloneFor builds the next occurrence of a repeating event. The clone is a
// fresh row: same title, time, reminder, classifiers and repeat kind, with
// IsDone and Notified reset.
func (e *Event) CloneFor(date time.Time) *Event {
	clone := &Event{
		UserID:       e.UserID,
		Title:        e.Title,
		Description:  e.Description,
		Date:         date,
		Category:     e.Category,
		Tag:          e.Tag,
		RemindBefore: e.RemindBefore,
		Repeat:       e.Repeat,
	}
	if e.TimeOfDay != nil {
		t := *e.TimeOfDay
		clone.TimeOfDay = &t
	}
	return clone
}

// FormatDate returns the date for display.
func (e *Event) FormatDate() string {
	return e.Date.Format("02.01.2006")
}

// FormatTime returns the time of day for display, or a dash for dateless events.
func (e *Event) FormatTime() string {
	if e.TimeOfDay == nil {
		return "—"
	}
	return *e.TimeOfDay
}
