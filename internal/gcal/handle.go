package gcal

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrServiceUnavailable is returned when the calendar client could not be built.
var ErrServiceUnavailable = errors.New("google calendar service not configured")

// IsServiceUnavailable returns true when the calendar handle failed to initialize.
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// Factory builds the calendar client.
type Factory func(ctx context.Context) (Calendar, error)

// Handle constructs a Calendar at most once, on first use, and shares it
// across concurrent requests. A failed construction is remembered; every
// later call reports the same ErrServiceUnavailable.
type Handle struct {
	once    sync.Once
	factory Factory
	cal     Calendar
	err     error
}

// NewHandle returns a lazy handle around factory.
func NewHandle(factory Factory) *Handle {
	return &Handle{factory: factory}
}

// NewStaticHandle wraps an already-built Calendar. A nil cal yields a
// handle that always reports ErrServiceUnavailable.
func NewStaticHandle(cal Calendar) *Handle {
	return NewHandle(func(context.Context) (Calendar, error) {
		if cal == nil {
			return nil, fmt.Errorf("no calendar configured")
		}
		return cal, nil
	})
}

// Calendar returns the shared client, building it on first call.
func (h *Handle) Calendar(ctx context.Context) (Calendar, error) {
	h.once.Do(func() {
		if h.factory == nil {
			h.err = ErrServiceUnavailable
			return
		}
		// The client outlives the request that happened to build it.
		cal, err := h.factory(context.WithoutCancel(ctx))
		if err != nil {
			h.err = fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
			return
		}
		if cal == nil {
			h.err = ErrServiceUnavailable
			return
		}
		h.cal = cal
	})
	return h.cal, h.err
}

// Ready reports whether the handle holds a usable client, building it if needed.
func (h *Handle) Ready(ctx context.Context) bool {
	_, err := h.Calendar(ctx)
	return err == nil
}
