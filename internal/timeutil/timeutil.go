package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout    = "2006-01-02"
	ClockLayout   = "15:04"
	DisplayLayout = "2006-01-02 15:04"
)

var defaultLocation = time.UTC

// ErrInvalidDateTime is returned when a date or clock value cannot be parsed.
var ErrInvalidDateTime = errors.New("invalid date/time")

// IsInvalidDateTime reports whether err is (or wraps) ErrInvalidDateTime.
func IsInvalidDateTime(err error) bool {
	return errors.Is(err, ErrInvalidDateTime)
}

// ResolveLocation returns the named location with UTC fallback.
// The second return value is true when the fallback was used.
func ResolveLocation(timezone string) (*time.Location, bool) {
	if timezone == "" {
		return defaultLocation, true
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return defaultLocation, true
	}
	return loc, false
}

// ToWorkingInstant combines a YYYY-MM-DD date and a 24-hour HH:MM clock in loc.
func ToWorkingInstant(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = defaultLocation
	}

	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, fmt.Errorf("%w: date and time are required (got %q %q)", ErrInvalidDateTime, date, clock)
	}

	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q: %v", ErrInvalidDateTime, date, clock, err)
	}
	return t, nil
}

// Instant is a parsed provider boundary. AllDay is set for date-only values.
type Instant struct {
	Time   time.Time
	AllDay bool
}

// ParseProviderInstant parses a calendar boundary. Values carrying a zone or
// offset keep it; offset-less datetimes and bare dates are read in loc.
func ParseProviderInstant(value string, loc *time.Location) (Instant, error) {
	if loc == nil {
		loc = defaultLocation
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return Instant{}, fmt.Errorf("%w: empty value", ErrInvalidDateTime)
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return Instant{Time: t}, nil
	}

	if t, err := time.ParseInLocation(DateLayout, value, loc); err == nil {
		return Instant{Time: t, AllDay: true}, nil
	}

	layouts := []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return Instant{Time: t}, nil
		}
	}

	return Instant{}, fmt.Errorf("%w: unable to parse %q", ErrInvalidDateTime, value)
}

// FormatISO renders t as RFC 3339 with an explicit offset.
func FormatISO(t time.Time) string {
	return t.Format(time.RFC3339)
}

// ToUTC converts t for provider query boundaries.
func ToUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatLocal renders t in loc for user-facing text.
func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = defaultLocation
	}
	return t.In(loc).Format(DisplayLayout)
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = defaultLocation
	}
	return now.In(loc).Format(DateLayout)
}
