package scheduler

import "errors"

// Outcome conditions carried in Result.Err. ErrConflict is a business
// outcome rather than a failure; the rest are recovered failures.
var (
	ErrConflict           = errors.New("requested slot is already booked")
	ErrCalendarQuery      = errors.New("calendar availability query failed")
	ErrCalendarAPI        = errors.New("google calendar api error")
	ErrCalendarUnexpected = errors.New("unexpected calendar error")
)

// IsConflict returns true when err reports an occupied slot.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
