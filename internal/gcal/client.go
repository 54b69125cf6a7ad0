package gcal

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const defaultCalendarID = "primary"

// Calendar is the provider contract the scheduler depends on.
type Calendar interface {
	InsertEvent(ctx context.Context, input EventInput) (*CreatedEvent, error)
	ListEventsInRange(ctx context.Context, timeMin, timeMax time.Time) ([]EventDetails, error)
}

// Client wraps the Google Calendar API for a single target calendar.
type Client struct {
	service    *calendar.Service
	calendarID string
	loc        *time.Location
}

// ClientConfig configures a Client.
type ClientConfig struct {
	CalendarID  string
	Location    *time.Location
	Credentials CredentialsConfig
}

// NewClient authenticates with service-account credentials and builds a Client.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	ts, err := TokenSource(ctx, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	return NewClientWithOptions(ctx, cfg.CalendarID, cfg.Location, option.WithTokenSource(ts))
}

// NewClientWithOptions builds a Client from raw API options. Tests use it
// to point the service at an httptest server.
func NewClientWithOptions(ctx context.Context, calendarID string, loc *time.Location, opts ...option.ClientOption) (*Client, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	if calendarID == "" {
		calendarID = defaultCalendarID
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Client{
		service:    service,
		calendarID: calendarID,
		loc:        loc,
	}, nil
}

// CalendarID returns the target calendar identifier.
func (c *Client) CalendarID() string {
	return c.calendarID
}

// Location returns the working timezone of the client.
func (c *Client) Location() *time.Location {
	return c.loc
}

// CalendarInfo describes the target calendar.
type CalendarInfo struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	TimeZone string `json:"time_zone"`
}

// Describe fetches metadata for the target calendar. It doubles as an
// access check for the service account.
func (c *Client) Describe(ctx context.Context) (*CalendarInfo, error) {
	cal, err := c.service.Calendars.Get(c.calendarID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar %s: %w", c.calendarID, err)
	}

	return &CalendarInfo{
		ID:       cal.Id,
		Summary:  cal.Summary,
		TimeZone: cal.TimeZone,
	}, nil
}
