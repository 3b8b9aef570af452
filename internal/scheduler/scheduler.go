package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okhomyn/eventbot/config"
	"github.com/okhomyn/eventbot/internal/domain"
	"github.com/okhomyn/eventbot/internal/recurrence"
	"github.com/okhomyn/eventbot/internal/storage"
)

// staleAfter is how long past its start an unfinished event is kept before
// the sweeper marks it done.
const staleAfter = time.Hour

type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// Scheduler drives the periodic reminder tick: auto-complete stale events,
// send due reminders, clone the next occurrence of repeating events.
// A failure in one event never stops the rest of the tick, and a failed
// tick never stops the loop.
type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.Config
	storage  *storage.Storage
	sender   MessageSender
	timezone *time.Location
	now      func() time.Time
}

func New(cfg *config.Config, storage *storage.Storage) *Scheduler {
	tz := cfg.Timezone

	c := cron.New(
		cron.WithLocation(tz),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)

	return &Scheduler{
		cron:     c,
		cfg:      cfg,
		storage:  storage,
		timezone: tz,
		now:      func() time.Time { return time.Now().In(tz) },
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.cfg.TickInterval)
	if _, err := s.cron.AddFunc(spec, s.Tick); err != nil {
		return fmt.Errorf("add reminder tick: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, tick: %s)", s.timezone, s.cfg.TickInterval)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

// Tick runs one full unit of work: sweep, then evaluate and dispatch.
func (s *Scheduler) Tick() {
	if s.sender == nil {
		return
	}

	now := s.now()
	s.completeStale(now)
	s.processReminders(now)
}

// completeStale marks unfinished timed events as done once they are more
// than an hour past their start, so they stop showing up as pending. Runs
// before reminder evaluation so a just-expired event is not also reminded.
func (s *Scheduler) completeStale(now time.Time) {
	events, err := s.storage.ListSweepCandidates(now)
	if err != nil {
		log.Printf("Error listing sweep candidates: %v", err)
		return
	}

	for _, e := range events {
		start, ok := e.StartAt(s.timezone)
		if !ok {
			continue
		}
		if now.Sub(start) > staleAfter {
			if err := s.storage.MarkEventDone(e.ID); err != nil {
				log.Printf("Error completing stale event %d: %v", e.ID, err)
			}
		}
	}
}

func (s *Scheduler) processReminders(now time.Time) {
	events, err := s.storage.ListPendingReminders()
	if err != nil {
		log.Printf("Error listing pending reminders: %v", err)
		return
	}

	for _, e := range events {
		if err := s.remind(e, now); err != nil {
			log.Printf("Error processing reminder for event %d: %v", e.ID, err)
		}
	}
}

// remind sends one due reminder and commits the outcome. When the send
// fails, nothing is written and the event is retried on a later tick. After
// a successful send the notified flag and the recurrence clone (if any)
// commit in a single transaction.
func (s *Scheduler) remind(e *domain.Event, now time.Time) error {
	notifyAt, ok := e.NotifyAt(s.timezone)
	if !ok || notifyAt.After(now) {
		return nil
	}

	user, err := s.storage.GetUserByID(e.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil
	}

	text := fmt.Sprintf("🔔 <b>Напоминание!</b>\n%s\n🕒 %s %s", e.Title, e.FormatTime(), e.FormatDate())
	if err := s.sender.SendMessage(user.TelegramID, text); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}

	var clone *domain.Event
	if next, ok := recurrence.Next(e.Repeat, e.Date); ok {
		clone = e.CloneFor(next)
	}

	committed, err := s.storage.MarkNotifiedAndClone(e.ID, clone)
	if err != nil {
		return fmt.Errorf("commit reminder: %w", err)
	}
	if !committed {
		// The event was deleted or handled concurrently mid-dispatch.
		log.Printf("Event %d vanished during dispatch, skipping", e.ID)
	}
	return nil
}
