package mocks

import (
	"context"
	"time"

	"github.com/omriShneor/alfred_scheduler/internal/gcal"
	"github.com/stretchr/testify/mock"
)

// MockCalendar is a mock implementation of gcal.Calendar
type MockCalendar struct {
	mock.Mock
}

func (m *MockCalendar) InsertEvent(ctx context.Context, input gcal.EventInput) (*gcal.CreatedEvent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gcal.CreatedEvent), args.Error(1)
}

func (m *MockCalendar) ListEventsInRange(ctx context.Context, timeMin, timeMax time.Time) ([]gcal.EventDetails, error) {
	args := m.Called(ctx, timeMin, timeMax)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gcal.EventDetails), args.Error(1)
}
