package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/okhomyn/eventbot/internal/domain"
	"github.com/okhomyn/eventbot/internal/storage"
)

// ExportService renders a user's events into downloadable files and imports
// them back from iCalendar data.
type ExportService struct {
	storage  *storage.Storage
	timezone *time.Location
}

func NewExportService(s *storage.Storage, tz *time.Location) *ExportService {
	if tz == nil {
		tz = time.UTC
	}
	return &ExportService{storage: s, timezone: tz}
}

// ExportCSV returns all of the user's events as a CSV file.
func (s *ExportService) ExportCSV(userID int64) ([]byte, error) {
	events, err := s.storage.ListEventsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Title", "Date", "Time", "Category", "Tags", "Reminder", "Repeat", "Done"}); err != nil {
		return nil, err
	}

	for _, e := range events {
		timeStr := ""
		if e.TimeOfDay != nil {
			timeStr = *e.TimeOfDay
		}
		done := "no"
		if e.IsDone {
			done = "yes"
		}
		row := []string{
			e.Title,
			e.FormatDate(),
			timeStr,
			e.Category,
			e.Tag,
			fmt.Sprintf("%d", e.RemindBefore),
			string(e.Repeat),
			done,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportICS returns all of the user's events as an iCalendar file.
func (s *ExportService) ExportICS(userID int64) ([]byte, error) {
	events, err := s.storage.ListEventsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//EventBot//Export//EN")

	for _, e := range events {
		vevent := ical.NewEvent()
		vevent.Props.SetText(ical.PropUID, fmt.Sprintf("event-%d@eventbot", e.ID))
		vevent.Props.SetText(ical.PropSummary, e.Title)
		if e.Description != "" {
			vevent.Props.SetText(ical.PropDescription, e.Description)
		}
		if e.Category != "" {
			vevent.Props.SetText(ical.PropCategories, e.Category)
		}
		if start, ok := e.StartAt(s.timezone); ok {
			vevent.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
		} else {
			vevent.Props.SetDate(ical.PropDateTimeStart, e.Date)
		}
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
		cal.Children = append(cal.Children, vevent.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportICS parses iCalendar data and stores its events for the user.
// Events the user already has (same title and date) are skipped.
// Returns the number of events imported.
func (s *ExportService) ImportICS(userID int64, data []byte, defaultRemindBefore int) (int, error) {
	dec := ical.NewDecoder(bytes.NewReader(data))

	imported := 0
	for {
		cal, err := dec.Decode()
		if err != nil {
			break
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}

			e := &domain.Event{
				UserID:       userID,
				Repeat:       domain.RepeatNone,
				RemindBefore: defaultRemindBefore,
			}

			if prop := comp.Props.Get(ical.PropSummary); prop != nil {
				e.Title = prop.Value
			}
			if e.Title == "" {
				continue
			}
			if prop := comp.Props.Get(ical.PropDescription); prop != nil {
				e.Description = prop.Value
			}
			if prop := comp.Props.Get(ical.PropCategories); prop != nil {
				e.Category = prop.Value
			}

			prop := comp.Props.Get(ical.PropDateTimeStart)
			if prop == nil {
				continue
			}
			start, err := prop.DateTime(s.timezone)
			if err != nil {
				continue
			}
			start = start.In(s.timezone)
			e.Date = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
			if prop.Params.Get(ical.ParamValue) != string(ical.ValueDate) {
				t := start.Format("15:04")
				e.TimeOfDay = &t
			}

			exists, err := s.storage.EventExists(userID, e.Title, e.Date)
			if err != nil {
				return imported, fmt.Errorf("check existing: %w", err)
			}
			if exists {
				continue
			}

			if err := s.storage.CreateEvent(e); err != nil {
				return imported, fmt.Errorf("create event: %w", err)
			}
			imported++
		}
	}

	return imported, nil
}
