package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okhomyn/eventbot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

const dateLayout = "2006-01-02"

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER UNIQUE NOT NULL,
			username TEXT DEFAULT '',
			first_name TEXT DEFAULT '',
			last_name TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			date TEXT NOT NULL,
			time TEXT,
			category TEXT DEFAULT '',
			tag TEXT DEFAULT '',
			remind_before INTEGER DEFAULT 10,
			repeat TEXT DEFAULT 'none',
			is_done INTEGER DEFAULT 0,
			notified INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_id ON events(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_date ON events(date)`,
		`CREATE INDEX IF NOT EXISTS idx_events_pending ON events(is_done, notified)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// === Users ===

func (s *Storage) CreateUser(u *domain.User) error {
	res, err := s.db.Exec(
		`INSERT INTO users (telegram_id, username, first_name, last_name) VALUES (?, ?, ?, ?)`,
		u.TelegramID, u.Username, u.FirstName, u.LastName,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	u.ID = id
	u.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetUserByTelegramID(telegramID int64) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(
		`SELECT id, telegram_id, username, first_name, last_name, created_at FROM users WHERE telegram_id = ?`,
		telegramID,
	).Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Storage) GetUserByID(id int64) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(
		`SELECT id, telegram_id, username, first_name, last_name, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// === Events ===

const eventColumns = `id, user_id, title, description, date, time, category, tag, remind_before, repeat, is_done, notified, created_at`

func scanEvent(row interface{ Scan(...any) error }) (*domain.Event, error) {
	e := &domain.Event{}
	var date string
	var timeOfDay sql.NullString
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &date, &timeOfDay,
		&e.Category, &e.Tag, &e.RemindBefore, &e.Repeat, &e.IsDone, &e.Notified, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse event date %q: %w", date, err)
	}
	if timeOfDay.Valid {
		e.TimeOfDay = &timeOfDay.String
	}
	return e, nil
}

func (s *Storage) queryEvents(query string, args ...any) ([]*domain.Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Storage) CreateEvent(e *domain.Event) error {
	var timeOfDay any
	if e.TimeOfDay != nil {
		timeOfDay = *e.TimeOfDay
	}
	res, err := s.db.Exec(
		`INSERT INTO events (user_id, title, description, date, time, category, tag, remind_before, repeat, is_done, notified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Title, e.Description, e.Date.Format(dateLayout), timeOfDay,
		e.Category, e.Tag, e.RemindBefore, e.Repeat, e.IsDone, e.Notified,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	e.ID = id
	e.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetEvent(id int64) (*domain.Event, error) {
	e, err := scanEvent(s.db.QueryRow(
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *Storage) UpdateEvent(e *domain.Event) error {
	var timeOfDay any
	if e.TimeOfDay != nil {
		timeOfDay = *e.TimeOfDay
	}
	_, err := s.db.Exec(
		`UPDATE events SET title = ?, description = ?, date = ?, time = ?, category = ?, tag = ?,
		 remind_before = ?, repeat = ?, is_done = ?, notified = ? WHERE id = ?`,
		e.Title, e.Description, e.Date.Format(dateLayout), timeOfDay, e.Category, e.Tag,
		e.RemindBefore, e.Repeat, e.IsDone, e.Notified, e.ID,
	)
	return err
}

func (s *Storage) DeleteEvent(id int64) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id)
	return err
}

func (s *Storage) ListEventsByUser(userID int64) ([]*domain.Event, error) {
	return s.queryEvents(
		`SELECT `+eventColumns+` FROM events WHERE user_id = ? ORDER BY date, time, id`,
		userID,
	)
}

func (s *Storage) ListEventsInRange(userID int64, from, to time.Time) ([]*domain.Event, error) {
	return s.queryEvents(
		`SELECT `+eventColumns+` FROM events WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date, time, id`,
		userID, from.Format(dateLayout), to.Format(dateLayout),
	)
}

func (s *Storage) ListEventsOnDate(userID int64, date time.Time) ([]*domain.Event, error) {
	return s.queryEvents(
		`SELECT `+eventColumns+` FROM events WHERE user_id = ? AND date = ? ORDER BY time, id`,
		userID, date.Format(dateLayout),
	)
}

// ListSweepCandidates returns unfinished timed events dated today or earlier.
func (s *Storage) ListSweepCandidates(today time.Time) ([]*domain.Event, error) {
	return s.queryEvents(
		`SELECT `+eventColumns+` FROM events
		 WHERE is_done = 0 AND time IS NOT NULL AND date <= ?
		 ORDER BY date, time, id`,
		today.Format(dateLayout),
	)
}

// ListPendingReminders returns events that may still need a reminder sent.
// Enumeration order is deterministic.
func (s *Storage) ListPendingReminders() ([]*domain.Event, error) {
	return s.queryEvents(
		`SELECT ` + eventColumns + ` FROM events
		 WHERE is_done = 0 AND notified = 0 AND time IS NOT NULL AND remind_before > 0
		 ORDER BY date, time, id`,
	)
}

func (s *Storage) MarkEventDone(id int64) error {
	_, err := s.db.Exec(`UPDATE events SET is_done = 1 WHERE id = ?`, id)
	return err
}

// EventExists reports whether the user already has an event with this title
// on this date. Used to keep recurrence cloning idempotent.
func (s *Storage) EventExists(userID int64, title string, date time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE user_id = ? AND title = ? AND date = ?`,
		userID, title, date.Format(dateLayout),
	).Scan(&n)
	return n > 0, err
}

// MarkNotifiedAndClone commits one reminder delivery: it flips notified on
// the source event and, when clone is non-nil, inserts the next occurrence —
// all in a single transaction. The returned bool is false when the source
// event was deleted or already handled concurrently; the call is then a
// no-op and no clone is inserted.
func (s *Storage) MarkNotifiedAndClone(eventID int64, clone *domain.Event) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE events SET notified = 1 WHERE id = ? AND is_done = 0 AND notified = 0`,
		eventID,
	)
	if err != nil {
		return false, fmt.Errorf("mark notified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	if clone != nil {
		var n int
		err = tx.QueryRow(
			`SELECT COUNT(*) FROM events WHERE user_id = ? AND title = ? AND date = ?`,
			clone.UserID, clone.Title, clone.Date.Format(dateLayout),
		).Scan(&n)
		if err != nil {
			return false, fmt.Errorf("check clone exists: %w", err)
		}
		if n == 0 {
			var timeOfDay any
			if clone.TimeOfDay != nil {
				timeOfDay = *clone.TimeOfDay
			}
			res, err := tx.Exec(
				`INSERT INTO events (user_id, title, description, date, time, category, tag, remind_before, repeat, is_done, notified)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`,
				clone.UserID, clone.Title, clone.Description, clone.Date.Format(dateLayout), timeOfDay,
				clone.Category, clone.Tag, clone.RemindBefore, clone.Repeat,
			)
			if err != nil {
				return false, fmt.Errorf("insert clone: %w", err)
			}
			id, _ := res.LastInsertId()
			clone.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}
