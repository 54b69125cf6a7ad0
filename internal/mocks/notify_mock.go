package mocks

import (
	"context"

	"github.com/omriShneor/alfred_scheduler/internal/database"
	"github.com/omriShneor/alfred_scheduler/internal/notify"
	"github.com/stretchr/testify/mock"
)

// MockNotifyService is a mock implementation of the notification service
type MockNotifyService struct {
	mock.Mock
}

func (m *MockNotifyService) NotifyBooking(ctx context.Context, booking notify.Booking) {
	m.Called(ctx, booking)
}

// MockNotifier is a mock implementation of the Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, booking notify.Booking, recipient string) error {
	args := m.Called(ctx, booking, recipient)
	return args.Error(0)
}

func (m *MockNotifier) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockNotifier) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockTraceRecorder is a mock implementation of the request trace store
type MockTraceRecorder struct {
	mock.Mock
}

func (m *MockTraceRecorder) CreateRequestTrace(ctx context.Context, trace database.RequestTrace) error {
	args := m.Called(ctx, trace)
	return args.Error(0)
}
