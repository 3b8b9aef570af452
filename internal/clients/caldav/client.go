// Package caldav pushes and pulls events against an external CalDAV
// calendar. This is the third-party calendar sync boundary; everything here
// is best-effort and never drives core reminder behavior.
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"github.com/okhomyn/eventbot/internal/domain"
)

// Calendar is one calendar collection on the remote server.
type Calendar struct {
	ID          string
	DisplayName string
	URL         string
}

// Client is a CalDAV client for an external calendar server.
type Client struct {
	baseURL    string
	username   string
	password   string
	calendarID string
	client     *caldav.Client
}

func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
	}
}

// IsConfigured returns true if the client has an endpoint and credentials.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != "" && c.password != ""
}

// SetCalendarID sets the calendar collection to use.
func (c *Client) SetCalendarID(id string) {
	c.calendarID = id
}

func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns all calendars available to the user.
func (c *Client) DiscoverCalendars() ([]Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	var result []Calendar
	for _, cal := range cals {
		result = append(result, Calendar{
			ID:          cal.Path,
			DisplayName: cal.Name,
			URL:         cal.Path,
		})
	}

	return result, nil
}

// PushEvent uploads one local event to the remote calendar.
// PUT replaces, so pushing an edited event updates it in place.
func (c *Client) PushEvent(e *domain.Event, loc *time.Location) error {
	client, err := c.connect()
	if err != nil {
		return err
	}

	if c.calendarID == "" {
		return fmt.Errorf("calendar path not specified")
	}

	cal := eventToICS(e, loc)

	eventPath := c.calendarID
	if !strings.HasSuffix(eventPath, "/") {
		eventPath += "/"
	}
	eventPath += eventUID(e) + ".ics"

	if _, err := client.PutCalendarObject(context.Background(), eventPath, cal); err != nil {
		return fmt.Errorf("put event: %w", err)
	}

	return nil
}

// FetchEvents pulls remote events in the given range as event drafts: only
// title, date and time of day are filled in; the caller owns the rest.
func (c *Client) FetchEvents(from, to time.Time, loc *time.Location) ([]*domain.Event, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	if c.calendarID == "" {
		return nil, fmt.Errorf("calendar path not specified")
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: from,
					End:   to,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(context.Background(), c.calendarID, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var events []*domain.Event
	for _, obj := range objects {
		e, err := parseCalendarObject(&obj, loc)
		if err != nil {
			continue // skip objects we cannot represent
		}
		events = append(events, e)
	}

	return events, nil
}

func parseCalendarObject(obj *caldav.CalendarObject, loc *time.Location) (*domain.Event, error) {
	if obj.Data == nil {
		return nil, fmt.Errorf("no data in calendar object")
	}

	for _, comp := range obj.Data.Children {
		if comp.Name != ical.CompEvent {
			continue
		}

		e := &domain.Event{Repeat: domain.RepeatNone}

		if prop := comp.Props.Get(ical.PropSummary); prop != nil {
			e.Title = prop.Value
		}
		if e.Title == "" {
			return nil, fmt.Errorf("event without summary")
		}

		if prop := comp.Props.Get(ical.PropDescription); prop != nil {
			e.Description = prop.Value
		}

		prop := comp.Props.Get(ical.PropDateTimeStart)
		if prop == nil {
			return nil, fmt.Errorf("event without start")
		}
		start, err := prop.DateTime(loc)
		if err != nil {
			return nil, fmt.Errorf("parse start: %w", err)
		}
		start = start.In(loc)
		e.Date = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		if prop.Params.Get(ical.ParamValue) != string(ical.ValueDate) {
			t := start.Format("15:04")
			e.TimeOfDay = &t
		}

		return e, nil
	}

	return nil, fmt.Errorf("no VEVENT in calendar object")
}

func eventToICS(e *domain.Event, loc *time.Location) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//EventBot//CalDAV//EN")

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, eventUID(e))
	vevent.Props.SetText(ical.PropSummary, e.Title)
	if e.Description != "" {
		vevent.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Category != "" {
		vevent.Props.SetText(ical.PropCategories, e.Category)
	}

	if start, ok := e.StartAt(loc); ok {
		vevent.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	} else {
		vevent.Props.SetDate(ical.PropDateTimeStart, e.Date)
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}

// eventUID derives a stable UID from the event row so that repeated pushes
// of the same event replace rather than duplicate it.
func eventUID(e *domain.Event) string {
	return fmt.Sprintf("event-%d@eventbot", e.ID)
}
