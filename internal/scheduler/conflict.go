package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omriShneor/alfred_scheduler/internal/gcal"
	"github.com/omriShneor/alfred_scheduler/internal/metrics"
)

// FailurePolicy decides what a failed availability query means.
type FailurePolicy int

const (
	// FailOpen treats an unreachable calendar as free: the booking proceeds.
	FailOpen FailurePolicy = iota
	// FailClosed refuses the booking when availability cannot be verified.
	FailClosed
)

// DefaultFailurePolicy favors availability over strict conflict prevention.
const DefaultFailurePolicy = FailOpen

func (p FailurePolicy) String() string {
	if p == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}

// ParseFailurePolicy maps a config value to a policy, defaulting to FailOpen.
func ParseFailurePolicy(value string) FailurePolicy {
	if value == FailClosed.String() {
		return FailClosed
	}
	return DefaultFailurePolicy
}

// CalendarSource yields the shared calendar client. *gcal.Handle implements it.
type CalendarSource interface {
	Calendar(ctx context.Context) (gcal.Calendar, error)
}

// Conflict describes the existing event occupying a requested slot.
// Start and End are in the working timezone.
type Conflict struct {
	Title  string
	Start  time.Time
	End    time.Time
	AllDay bool
}

// ConflictResult is the outcome of an availability check. Conflict is nil
// when the slot is free. Unknown is set only under FailClosed when the
// query failed; Err then holds the cause.
type ConflictResult struct {
	Conflict *Conflict
	Unknown  bool
	Err      error
}

// HasConflict reports whether an existing event overlaps the slot.
func (r ConflictResult) HasConflict() bool {
	return r.Conflict != nil
}

// ConflictEngine checks a proposed interval against existing events.
type ConflictEngine struct {
	source  CalendarSource
	loc     *time.Location
	policy  FailurePolicy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// ConflictEngineConfig configures a ConflictEngine.
type ConflictEngineConfig struct {
	Source   CalendarSource
	Location *time.Location
	Policy   FailurePolicy
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

func NewConflictEngine(cfg ConflictEngineConfig) *ConflictEngine {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ConflictEngine{
		source:  cfg.Source,
		loc:     loc,
		policy:  cfg.Policy,
		logger:  logger.With("component", "conflict_engine"),
		metrics: cfg.Metrics,
	}
}

// Policy returns the configured failure policy.
func (e *ConflictEngine) Policy() FailurePolicy {
	return e.policy
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FindConflict returns the first existing event overlapping [start, end).
func (e *ConflictEngine) FindConflict(ctx context.Context, start, end time.Time) ConflictResult {
	events, err := e.listEvents(ctx, start, end)
	if err != nil {
		return e.queryFailed(start, end, err)
	}

	for _, ev := range events {
		if !ev.EndTime.After(ev.StartTime) {
			continue
		}
		if !Overlaps(start, end, ev.StartTime, ev.EndTime) {
			continue
		}

		conflict := &Conflict{
			Title:  ev.Summary,
			Start:  ev.StartTime.In(e.loc),
			End:    ev.EndTime.In(e.loc),
			AllDay: ev.AllDay,
		}
		e.logger.Info("slot conflict",
			"start", start, "end", end,
			"existing_title", conflict.Title,
			"existing_start", conflict.Start,
			"existing_end", conflict.End,
		)
		e.metrics.RecordConflictCheck("conflict")
		return ConflictResult{Conflict: conflict}
	}

	e.metrics.RecordConflictCheck("free")
	return ConflictResult{}
}

func (e *ConflictEngine) listEvents(ctx context.Context, start, end time.Time) (events []gcal.EventDetails, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic listing events: %v", r)
		}
	}()

	if e.source == nil {
		return nil, gcal.ErrServiceUnavailable
	}
	cal, err := e.source.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	return cal.ListEventsInRange(ctx, start, end)
}

func (e *ConflictEngine) queryFailed(start, end time.Time, err error) ConflictResult {
	wrapped := fmt.Errorf("%w: %v", ErrCalendarQuery, err)

	if e.policy == FailClosed {
		e.logger.Warn("availability check failed, refusing booking",
			"policy", e.policy.String(), "start", start, "end", end, "error", err)
		e.metrics.RecordConflictCheck("fail_closed")
		return ConflictResult{Unknown: true, Err: wrapped}
	}

	e.logger.Warn("availability check failed, proceeding without conflict check",
		"policy", e.policy.String(), "start", start, "end", end, "error", err)
	e.metrics.RecordConflictCheck("fail_open")
	return ConflictResult{Err: wrapped}
}
