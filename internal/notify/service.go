package notify

import (
	"context"
	"log/slog"
)

// Service sends booking notifications to the calendar owner. Errors are
// logged and never returned: a failed notification must not change the reply.
type Service struct {
	emailNotifier Notifier
	ownerEmail    string
	logger        *slog.Logger
}

// NewService creates a notification service
func NewService(emailNotifier Notifier, ownerEmail string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		emailNotifier: emailNotifier,
		ownerEmail:    ownerEmail,
		logger:        logger.With("component", "notify"),
	}
}

// NotifyBooking emails the owner about a new booking when email is available.
func (s *Service) NotifyBooking(ctx context.Context, booking Booking) {
	if !s.IsEmailAvailable() {
		s.logger.Debug("email notification skipped", "event_id", booking.EventID)
		return
	}

	if err := s.emailNotifier.Send(ctx, booking, s.ownerEmail); err != nil {
		s.logger.Error("booking notification failed",
			"notifier", s.emailNotifier.Name(), "event_id", booking.EventID, "error", err)
		return
	}
	s.logger.Info("booking notification sent",
		"notifier", s.emailNotifier.Name(), "event_id", booking.EventID)
}

// IsEmailAvailable returns true if email notifications can be used
func (s *Service) IsEmailAvailable() bool {
	return s != nil && s.emailNotifier != nil && s.emailNotifier.IsConfigured() && s.ownerEmail != ""
}
