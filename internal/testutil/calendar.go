package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/omriShneor/alfred_scheduler/internal/gcal"
)

// FakeCalendar is an in-memory gcal.Calendar. It is safe for concurrent use.
type FakeCalendar struct {
	mu        sync.Mutex
	events    []FakeEvent
	inserts   int
	lists     int
	nextID    int
	listErr   error
	insertErr error
}

// FakeEvent is an event stored in the fake calendar.
type FakeEvent struct {
	ID          string
	Summary     string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	TimeZone    string
	Reminders   []gcal.Reminder
}

// NewFakeCalendar creates an empty fake calendar.
func NewFakeCalendar() *FakeCalendar {
	return &FakeCalendar{}
}

// AddEvent seeds an existing event and returns its ID.
func (f *FakeCalendar) AddEvent(summary string, start, end time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(FakeEvent{Summary: summary, StartTime: start, EndTime: end})
}

// AddAllDayEvent seeds an all-day event spanning [day, day+days) in loc.
func (f *FakeCalendar) AddAllDayEvent(summary string, day time.Time, days int, loc *time.Location) string {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, days)

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(FakeEvent{Summary: summary, StartTime: start, EndTime: end, AllDay: true})
}

func (f *FakeCalendar) addLocked(ev FakeEvent) string {
	f.nextID++
	ev.ID = fmt.Sprintf("fake-%d", f.nextID)
	f.events = append(f.events, ev)
	return ev.ID
}

// FailList makes subsequent ListEventsInRange calls return err (nil clears it).
func (f *FakeCalendar) FailList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// FailInsert makes subsequent InsertEvent calls return err (nil clears it).
func (f *FakeCalendar) FailInsert(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertErr = err
}

// InsertEvent implements gcal.Calendar.
func (f *FakeCalendar) InsertEvent(ctx context.Context, input gcal.EventInput) (*gcal.CreatedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}

	id := f.addLocked(FakeEvent{
		Summary:     input.Summary,
		Description: input.Description,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		TimeZone:    input.TimeZone,
		Reminders:   input.Reminders,
	})
	return &gcal.CreatedEvent{
		ID:       id,
		HTMLLink: "https://calendar.google.com/calendar/event?eid=" + id,
	}, nil
}

// ListEventsInRange implements gcal.Calendar.
func (f *FakeCalendar) ListEventsInRange(ctx context.Context, timeMin, timeMax time.Time) ([]gcal.EventDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []gcal.EventDetails
	for _, ev := range f.events {
		if ev.StartTime.Before(timeMax) && ev.EndTime.After(timeMin) {
			out = append(out, gcal.EventDetails{
				ID:        ev.ID,
				Summary:   ev.Summary,
				StartTime: ev.StartTime,
				EndTime:   ev.EndTime,
				AllDay:    ev.AllDay,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// Events returns a copy of all stored events.
func (f *FakeCalendar) Events() []FakeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeEvent, len(f.events))
	copy(out, f.events)
	return out
}

// InsertCalls returns how many times InsertEvent was called.
func (f *FakeCalendar) InsertCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}

// ListCalls returns how many times ListEventsInRange was called.
func (f *FakeCalendar) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

// Reset removes all events, counters and injected failures.
func (f *FakeCalendar) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
	f.inserts = 0
	f.lists = 0
	f.listErr = nil
	f.insertErr = nil
}
