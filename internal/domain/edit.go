package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventEdit is a single validated change to one editable field of an event.
// Each field has its own variant with its own parser, so invalid input is
// rejected before anything touches the event.
type EventEdit interface {
	Apply(e *Event)
}

type TitleEdit struct{ Title string }

func ParseTitleEdit(text string) (TitleEdit, error) {
	title := strings.TrimSpace(text)
	if title == "" {
		return TitleEdit{}, fmt.Errorf("title cannot be empty")
	}
	return TitleEdit{Title: title}, nil
}

func (ed TitleEdit) Apply(e *Event) { e.Title = ed.Title }

type DateEdit struct{ Date time.Time }

func ParseDateEdit(text string) (DateEdit, error) {
	d, err := time.Parse("02.01.2006", strings.TrimSpace(text))
	if err != nil {
		return DateEdit{}, fmt.Errorf("invalid date, expected DD.MM.YYYY: %w", err)
	}
	return DateEdit{Date: d}, nil
}

func (ed DateEdit) Apply(e *Event) { e.Date = ed.Date }

// TimeEdit sets or clears the time of day. "-" clears it.
type TimeEdit struct{ TimeOfDay *string }

func ParseTimeEdit(text string) (TimeEdit, error) {
	text = strings.TrimSpace(text)
	if text == "-" {
		return TimeEdit{}, nil
	}
	t, err := time.Parse("15:04", text)
	if err != nil {
		return TimeEdit{}, fmt.Errorf("invalid time, expected HH:MM: %w", err)
	}
	s := t.Format("15:04")
	return TimeEdit{TimeOfDay: &s}, nil
}

func (ed TimeEdit) Apply(e *Event) { e.TimeOfDay = ed.TimeOfDay }

type RemindEdit struct{ Minutes int }

func ParseRemindEdit(text string) (RemindEdit, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 {
		return RemindEdit{}, fmt.Errorf("reminder must be a non-negative number of minutes")
	}
	return RemindEdit{Minutes: n}, nil
}

func (ed RemindEdit) Apply(e *Event) { e.RemindBefore = ed.Minutes }

// CategoryEdit sets or clears the category. "-" clears it.
type CategoryEdit struct{ Category string }

func ParseCategoryEdit(text string) (CategoryEdit, error) {
	text = strings.TrimSpace(text)
	if text == "-" {
		text = ""
	}
	return CategoryEdit{Category: text}, nil
}

func (ed CategoryEdit) Apply(e *Event) { e.Category = ed.Category }

// TagEdit sets or clears the tags. "-" clears them.
type TagEdit struct{ Tag string }

func ParseTagEdit(text string) (TagEdit, error) {
	text = strings.TrimSpace(text)
	if text == "-" {
		text = ""
	}
	return TagEdit{Tag: text}, nil
}

func (ed TagEdit) Apply(e *Event) { e.Tag = ed.Tag }

type RepeatEdit struct{ Repeat Repeat }

func ParseRepeatEdit(text string) (RepeatEdit, error) {
	r, ok := ParseRepeat(strings.TrimSpace(text))
	if !ok {
		return RepeatEdit{}, fmt.Errorf("repeat must be one of: none, daily, weekly, monthly, yearly")
	}
	return RepeatEdit{Repeat: r}, nil
}

func (ed RepeatEdit) Apply(e *Event) { e.Repeat = ed.Repeat }
