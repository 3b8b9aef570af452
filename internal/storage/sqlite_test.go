package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/okhomyn/eventbot/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("init storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *Storage, telegramID int64) *domain.User {
	t.Helper()
	u := &domain.User{TelegramID: telegramID, FirstName: "Test"}
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func strPtr(s string) *string { return &s }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	u := newTestUser(t, s, 42)
	if u.ID == 0 {
		t.Fatal("expected assigned user ID")
	}

	got, err := s.GetUserByTelegramID(42)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got == nil || got.ID != u.ID || got.FirstName != "Test" {
		t.Fatalf("got %+v, want user %d", got, u.ID)
	}

	missing, err := s.GetUserByTelegramID(777)
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown telegram id, got %+v", missing)
	}
}

func TestEventRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s, 1)

	e := &domain.Event{
		UserID:       u.ID,
		Title:        "Dentist",
		Date:         day(2025, 4, 10),
		TimeOfDay:    strPtr("14:30"),
		Category:     "health",
		RemindBefore: 15,
		Repeat:       domain.RepeatMonthly,
	}
	if err := s.CreateEvent(e); err != nil {
		t.Fatalf("create event: %v", err)
	}

	got, err := s.GetEvent(e.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.Title != "Dentist" || !got.Date.Equal(day(2025, 4, 10)) {
		t.Fatalf("got %+v", got)
	}
	if got.TimeOfDay == nil || *got.TimeOfDay != "14:30" {
		t.Fatalf("time of day = %v, want 14:30", got.TimeOfDay)
	}
	if got.Repeat != domain.RepeatMonthly || got.RemindBefore != 15 {
		t.Fatalf("got %+v", got)
	}
	if got.IsDone || got.Notified {
		t.Fatalf("new event must start not-done and not-notified: %+v", got)
	}

	got.Title = "Dentist visit"
	got.TimeOfDay = nil
	if err := s.UpdateEvent(got); err != nil {
		t.Fatalf("update event: %v", err)
	}
	got2, err := s.GetEvent(e.ID)
	if err != nil {
		t.Fatalf("re-get event: %v", err)
	}
	if got2.Title != "Dentist visit" || got2.TimeOfDay != nil {
		t.Fatalf("update not applied: %+v", got2)
	}

	if err := s.DeleteEvent(e.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	gone, err := s.GetEvent(e.ID)
	if err != nil {
		t.Fatalf("get deleted event: %v", err)
	}
	if gone != nil {
		t.Fatalf("expected nil after delete, got %+v", gone)
	}
}

func TestListPendingRemindersFilters(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s, 1)

	add := func(title string, timeOfDay *string, remind int, done, notified bool) {
		e := &domain.Event{
			UserID: u.ID, Title: title, Date: day(2025, 4, 10),
			TimeOfDay: timeOfDay, RemindBefore: remind,
			Repeat: domain.RepeatNone, IsDone: done, Notified: notified,
		}
		if err := s.CreateEvent(e); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}

	add("eligible", strPtr("10:00"), 10, false, false)
	add("no time", nil, 10, false, false)
	add("no reminder", strPtr("10:00"), 0, false, false)
	add("done", strPtr("10:00"), 10, true, false)
	add("already notified", strPtr("10:00"), 10, false, true)

	pending, err := s.ListPendingReminders()
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Title != "eligible" {
		t.Fatalf("pending = %+v, want only 'eligible'", pending)
	}
}

func TestListEventsInRangeOrdered(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s, 1)

	for _, spec := range []struct {
		title string
		d     time.Time
		tod   *string
	}{
		{"c", day(2025, 4, 12), strPtr("09:00")},
		{"a", day(2025, 4, 10), strPtr("18:00")},
		{"b", day(2025, 4, 10), strPtr("19:00")},
		{"outside", day(2025, 4, 20), nil},
	} {
		e := &domain.Event{UserID: u.ID, Title: spec.title, Date: spec.d, TimeOfDay: spec.tod, Repeat: domain.RepeatNone}
		if err := s.CreateEvent(e); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	events, err := s.ListEventsInRange(u.ID, day(2025, 4, 10), day(2025, 4, 15))
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	var titles []string
	for _, e := range events {
		titles = append(titles, e.Title)
	}
	want := []string{"a", "b", "c"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("titles = %v, want %v", titles, want)
		}
	}
}

func TestMarkNotifiedAndClone(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s, 1)

	e := &domain.Event{
		UserID: u.ID, Title: "Standup", Date: day(2025, 4, 10),
		TimeOfDay: strPtr("09:00"), RemindBefore: 10, Repeat: domain.RepeatDaily,
	}
	if err := s.CreateEvent(e); err != nil {
		t.Fatalf("create: %v", err)
	}

	clone := e.CloneFor(day(2025, 4, 11))
	committed, err := s.MarkNotifiedAndClone(e.ID, clone)
	if err != nil {
		t.Fatalf("mark and clone: %v", err)
	}
	if !committed {
		t.Fatal("expected commit on live event")
	}

	src, _ := s.GetEvent(e.ID)
	if !src.Notified {
		t.Fatal("source event not marked notified")
	}

	exists, err := s.EventExists(u.ID, "Standup", day(2025, 4, 11))
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("clone was not inserted")
	}
	inserted, _ := s.GetEvent(clone.ID)
	if inserted == nil || inserted.Notified || inserted.IsDone {
		t.Fatalf("clone must start fresh, got %+v", inserted)
	}
}

// A second commit for the same event is a no-op: notified is already set, so
// no duplicate clone appears.
func TestMarkNotifiedAndCloneIdempotent(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s, 1)

	e := &domain.Event{
		UserID: u.ID, Title: "Standup", Date: day(2025, 4, 10),
		TimeOfDay: strPtr("09:00"), RemindBefore: 10, Repeat: domain.RepeatDaily,
	}
	if err := s.CreateEvent(e); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.MarkNotifiedAndClone(e.ID, e.CloneFor(day(2025, 4, 11))); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	committed, err := s.MarkNotifiedAndClone(e.ID, e.CloneFor(day(2025, 4, 11)))
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if committed {
		t.Fatal("second commit should report no-op")
	}

	events, err := s.ListEventsOnDate(u.ID, day(2025, 4, 11))
	if err != nil {
		t.Fatalf("list clones: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one clone, got %d", len(events))
	}
}

func TestMarkNotifiedAndCloneVanishedEvent(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s, 1)

	e := &domain.Event{
		UserID: u.ID, Title: "Gone", Date: day(2025, 4, 10),
		TimeOfDay: strPtr("09:00"), RemindBefore: 10, Repeat: domain.RepeatDaily,
	}
	if err := s.CreateEvent(e); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteEvent(e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	committed, err := s.MarkNotifiedAndClone(e.ID, e.CloneFor(day(2025, 4, 11)))
	if err != nil {
		t.Fatalf("commit on vanished event: %v", err)
	}
	if committed {
		t.Fatal("expected no-op for vanished event")
	}

	exists, _ := s.EventExists(u.ID, "Gone", day(2025, 4, 11))
	if exists {
		t.Fatal("no clone may be created for a vanished event")
	}
}
