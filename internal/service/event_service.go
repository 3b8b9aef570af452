package service

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/okhomyn/eventbot/internal/clients/caldav"
	"github.com/okhomyn/eventbot/internal/domain"
	"github.com/okhomyn/eventbot/internal/storage"
)

// conflictWindow is the symmetric window around a candidate event inside
// which another timed event counts as a conflict.
const conflictWindow = 15 * time.Minute

// busyDayThreshold is the number of same-day events (candidate included)
// that triggers the busy-day advisory.
const busyDayThreshold = 5

type EventService struct {
	storage  *storage.Storage
	sync     *caldav.Client
	timezone *time.Location
}

func NewEventService(s *storage.Storage, tz *time.Location) *EventService {
	if tz == nil {
		tz = time.UTC
	}
	return &EventService{storage: s, timezone: tz}
}

// SetSync attaches an optional CalDAV client; newly created events are then
// pushed to the external calendar best-effort.
func (s *EventService) SetSync(client *caldav.Client) {
	s.sync = client
}

// ConflictReport is the result of the pre-creation schedule check.
// Conflicting events block nothing by themselves; the caller decides whether
// to ask for confirmation. Advisory flags are informational only.
type ConflictReport struct {
	Conflicting        []*domain.Event
	BusyDay            bool
	DuplicateRecurring bool
}

func (r *ConflictReport) HasConflict() bool {
	return len(r.Conflicting) > 0
}

// CheckConflicts inspects the candidate's day for scheduling problems.
// Two timed events conflict when their start times differ by less than 15
// minutes; a zero difference is deliberately not a conflict (the lower bound
// of the window is exclusive).
func (s *EventService) CheckConflicts(userID int64, candidate *domain.Event) (*ConflictReport, error) {
	sameDay, err := s.storage.ListEventsOnDate(userID, candidate.Date)
	if err != nil {
		return nil, fmt.Errorf("list events on date: %w", err)
	}

	report := &ConflictReport{}

	if len(sameDay)+1 >= busyDayThreshold {
		report.BusyDay = true
	}

	candidateStart, candidateTimed := candidate.StartAt(s.timezone)
	for _, other := range sameDay {
		if other.ID == candidate.ID {
			continue
		}
		if candidateTimed {
			if otherStart, ok := other.StartAt(s.timezone); ok {
				delta := candidateStart.Sub(otherStart)
				if delta < 0 {
					delta = -delta
				}
				if delta > 0 && delta < conflictWindow {
					report.Conflicting = append(report.Conflicting, other)
				}
			}
		}
		if candidate.Repeat != domain.RepeatNone &&
			other.Repeat == candidate.Repeat &&
			equalTimeOfDay(other.TimeOfDay, candidate.TimeOfDay) {
			report.DuplicateRecurring = true
		}
	}

	return report, nil
}

func equalTimeOfDay(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Create validates and stores a new event for the user.
func (s *EventService) Create(userID int64, e *domain.Event) (*domain.Event, error) {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return nil, fmt.Errorf("event title cannot be empty")
	}
	if e.RemindBefore < 0 {
		return nil, fmt.Errorf("remind_before cannot be negative")
	}
	if e.Repeat == "" {
		e.Repeat = domain.RepeatNone
	}
	if _, ok := domain.ParseRepeat(string(e.Repeat)); !ok {
		return nil, fmt.Errorf("unknown repeat kind: %s", e.Repeat)
	}

	e.UserID = userID
	e.IsDone = false
	e.Notified = false

	if err := s.storage.CreateEvent(e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	if s.sync != nil && s.sync.IsConfigured() {
		if err := s.sync.PushEvent(e, s.timezone); err != nil {
			log.Printf("CalDAV push for event %d failed: %v", e.ID, err)
		}
	}

	return e, nil
}

// Get returns the event if it exists and belongs to the user.
func (s *EventService) Get(eventID, userID int64) (*domain.Event, error) {
	e, err := s.storage.GetEvent(eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if e == nil {
		return nil, domain.ErrNotFound
	}
	if e.UserID != userID {
		return nil, domain.ErrNotOwned
	}
	return e, nil
}

func (s *EventService) List(userID int64) ([]*domain.Event, error) {
	return s.storage.ListEventsByUser(userID)
}

// ListUpcoming returns the user's events from today through daysAhead days.
func (s *EventService) ListUpcoming(userID int64, now time.Time, daysAhead int) ([]*domain.Event, error) {
	today := now.In(s.timezone)
	return s.storage.ListEventsInRange(userID, today, today.AddDate(0, 0, daysAhead))
}

func (s *EventService) MarkDone(eventID, userID int64) error {
	if _, err := s.Get(eventID, userID); err != nil {
		return err
	}
	return s.storage.MarkEventDone(eventID)
}

func (s *EventService) Delete(eventID, userID int64) error {
	if _, err := s.Get(eventID, userID); err != nil {
		return err
	}
	return s.storage.DeleteEvent(eventID)
}

// Edit applies one or more field edits to an owned event and saves it.
func (s *EventService) Edit(eventID, userID int64, edits ...domain.EventEdit) (*domain.Event, error) {
	e, err := s.Get(eventID, userID)
	if err != nil {
		return nil, err
	}
	for _, ed := range edits {
		ed.Apply(e)
	}
	if err := s.storage.UpdateEvent(e); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return e, nil
}

// FormatEventList renders events for chat display.
func (s *EventService) FormatEventList(events []*domain.Event) string {
	if len(events) == 0 {
		return "Нет событий"
	}

	var sb strings.Builder
	for _, e := range events {
		status := "•"
		if e.IsDone {
			status = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s #%d <b>%s</b> — %s %s", status, e.ID, e.Title, e.FormatDate(), e.FormatTime()))
		if e.Category != "" {
			sb.WriteString(" 🏷 " + e.Category)
		}
		if e.Repeat != domain.RepeatNone {
			sb.WriteString(" 🔁 " + string(e.Repeat))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
