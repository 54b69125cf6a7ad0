package notify

import (
	"context"
	"time"
)

// Booking is a calendar event the assistant just created.
type Booking struct {
	EventID   string
	EventLink string
	Title     string
	Notes     string
	Start     time.Time
	End       time.Time
	SenderID  string
	Language  string
}

// Notifier sends booking notifications to a specific recipient
type Notifier interface {
	// Send delivers a notification for booking to recipient
	Send(ctx context.Context, booking Booking, recipient string) error
	// Name returns the notifier type name (for logging)
	Name() string
	// IsConfigured returns true if the notifier has server-side config
	IsConfigured() bool
}
