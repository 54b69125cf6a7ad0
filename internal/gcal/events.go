package gcal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/omriShneor/alfred_scheduler/internal/timeutil"
)

// Reminder is a single reminder override on an event.
type Reminder struct {
	Method  string
	Minutes int64
}

// DefaultReminders is the reminder policy attached to every created event:
// a popup 30 minutes before and an email one day before.
var DefaultReminders = []Reminder{
	{Method: "popup", Minutes: 30},
	{Method: "email", Minutes: 24 * 60},
}

// EventInput represents the input for creating a calendar event
type EventInput struct {
	Summary     string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	TimeZone    string
	Reminders   []Reminder
}

// CreatedEvent is what the provider returns for an inserted event.
type CreatedEvent struct {
	ID       string
	HTMLLink string
}

// EventDetails represents an existing event in the queried window.
type EventDetails struct {
	ID        string
	Summary   string
	StartTime time.Time
	EndTime   time.Time
	AllDay    bool
}

// APIError returns the provider error wrapped in err, if any.
func APIError(err error) (*googleapi.Error, bool) {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr, true
	}
	return nil, false
}

func buildEvent(input EventInput) *calendar.Event {
	overrides := make([]*calendar.EventReminder, 0, len(input.Reminders))
	for _, r := range input.Reminders {
		overrides = append(overrides, &calendar.EventReminder{
			Method:  r.Method,
			Minutes: r.Minutes,
		})
	}

	return &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: timeutil.FormatISO(input.StartTime),
			TimeZone: input.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: timeutil.FormatISO(input.EndTime),
			TimeZone: input.TimeZone,
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides:  overrides,
			// UseDefault=false must be sent explicitly or the API applies defaults.
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

// InsertEvent creates a new event in the target calendar.
func (c *Client) InsertEvent(ctx context.Context, input EventInput) (*CreatedEvent, error) {
	if input.TimeZone == "" {
		input.TimeZone = c.loc.String()
	}

	created, err := c.service.Events.Insert(c.calendarID, buildEvent(input)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return &CreatedEvent{
		ID:       created.Id,
		HTMLLink: created.HtmlLink,
	}, nil
}

// ListEventsInRange returns the events overlapping [timeMin, timeMax).
// Query bounds are sent in UTC.
func (c *Client) ListEventsInRange(ctx context.Context, timeMin, timeMax time.Time) ([]EventDetails, error) {
	if timeMax.Before(timeMin) {
		return nil, fmt.Errorf("invalid range: time_max is before time_min")
	}

	var result []EventDetails
	pageToken := ""

	for {
		call := c.service.Events.List(c.calendarID).
			TimeMin(timeutil.ToUTC(timeMin)).
			TimeMax(timeutil.ToUTC(timeMax)).
			SingleEvents(true).
			ShowDeleted(false).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		events, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list events in range: %w", err)
		}

		for _, item := range events.Items {
			if item == nil || item.Status == "cancelled" {
				continue
			}

			details, err := parseEventDetails(item, c.loc)
			if err != nil {
				return nil, fmt.Errorf("failed to parse event %s: %w", item.Id, err)
			}
			result = append(result, details)
		}

		if events.NextPageToken == "" {
			break
		}
		pageToken = events.NextPageToken
	}

	return result, nil
}

func parseEventDetails(item *calendar.Event, loc *time.Location) (EventDetails, error) {
	if item.Start == nil || item.End == nil {
		return EventDetails{}, fmt.Errorf("event is missing start or end")
	}

	start, err := timeutil.ParseProviderInstant(boundaryValue(item.Start), loc)
	if err != nil {
		return EventDetails{}, fmt.Errorf("start: %w", err)
	}
	end, err := timeutil.ParseProviderInstant(boundaryValue(item.End), loc)
	if err != nil {
		return EventDetails{}, fmt.Errorf("end: %w", err)
	}

	return EventDetails{
		ID:        item.Id,
		Summary:   item.Summary,
		StartTime: start.Time,
		EndTime:   end.Time,
		AllDay:    start.AllDay,
	}, nil
}

// All-day events use Date instead of DateTime.
func boundaryValue(dt *calendar.EventDateTime) string {
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}
