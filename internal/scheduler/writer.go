package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/omriShneor/alfred_scheduler/internal/gcal"
	"github.com/omriShneor/alfred_scheduler/internal/i18n"
	"github.com/omriShneor/alfred_scheduler/internal/metrics"
	"github.com/omriShneor/alfred_scheduler/internal/timeutil"
)

const DefaultDurationMinutes = 60

// Request is an appointment to book. Date is YYYY-MM-DD and Time is 24-hour HH:MM,
// both in the working timezone.
type Request struct {
	Title           string
	Date            string
	Time            string
	DurationMinutes int
	Notes           string
	Language        i18n.Language
}

// Result is the outcome of CreateEvent. Message is always set and localized.
// Outcome is the short label also used for the bookings metric.
// Err is one of the scheduler/gcal/timeutil sentinels (possibly wrapped) on
// failure. On success it is nil, or ErrCalendarQuery when the availability
// check failed and the booking went ahead under FailOpen.
type Result struct {
	Success   bool
	Outcome   string
	Message   string
	EventLink string
	EventID   string
	Start     time.Time
	End       time.Time
	Conflict  *Conflict
	Err       error
}

// Writer validates, conflict-checks and inserts appointments.
type Writer struct {
	source          CalendarSource
	engine          *ConflictEngine
	loc             *time.Location
	defaultDuration int
	reminders       []gcal.Reminder
	catalog         *i18n.Catalog
	logger          *slog.Logger
	metrics         *metrics.Metrics
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	Source                 CalendarSource
	Location               *time.Location
	DefaultDurationMinutes int
	Reminders              []gcal.Reminder
	Policy                 FailurePolicy
	Catalog                *i18n.Catalog
	Logger                 *slog.Logger
	Metrics                *metrics.Metrics
}

func NewWriter(cfg WriterConfig) *Writer {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	duration := cfg.DefaultDurationMinutes
	if duration <= 0 {
		duration = DefaultDurationMinutes
	}
	reminders := cfg.Reminders
	if reminders == nil {
		reminders = gcal.DefaultReminders
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = i18n.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		source: cfg.Source,
		engine: NewConflictEngine(ConflictEngineConfig{
			Source:   cfg.Source,
			Location: loc,
			Policy:   cfg.Policy,
			Logger:   logger,
			Metrics:  cfg.Metrics,
		}),
		loc:             loc,
		defaultDuration: duration,
		reminders:       reminders,
		catalog:         catalog,
		logger:          logger.With("component", "event_writer"),
		metrics:         cfg.Metrics,
	}
}

// Engine returns the writer's conflict engine.
func (w *Writer) Engine() *ConflictEngine {
	return w.engine
}

// CreateEvent books req. It never panics and always returns a localized message.
func (w *Writer) CreateEvent(ctx context.Context, req Request) (result Result) {
	lang := req.Language

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: panic: %v", ErrCalendarUnexpected, r)
			w.logger.Error("unexpected panic creating event", "error", err)
			result = w.fail("unexpected_error", i18n.MsgUnexpectedError, lang, err, fmt.Sprint(r))
		}
	}()

	if w.source == nil {
		return w.fail("service_unavailable", i18n.MsgServiceUnavailable, lang, gcal.ErrServiceUnavailable)
	}
	cal, err := w.source.Calendar(ctx)
	if err != nil {
		w.logger.Error("calendar service unavailable", "error", err)
		return w.fail("service_unavailable", i18n.MsgServiceUnavailable, lang, err)
	}

	start, err := timeutil.ToWorkingInstant(req.Date, req.Time, w.loc)
	if err != nil {
		w.logger.Warn("invalid appointment date/time", "date", req.Date, "time", req.Time, "error", err)
		return w.fail("invalid_datetime", i18n.MsgInvalidDateTime, lang, err, req.Date, req.Time)
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = w.defaultDuration
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = w.catalog.Text(i18n.MsgDefaultTitle, lang)
	}
	date := start.Format(timeutil.DateLayout)
	clock := start.Format(timeutil.ClockLayout)

	check := w.engine.FindConflict(ctx, start, end)
	if check.HasConflict() {
		c := check.Conflict
		from, until := w.conflictBounds(c)
		res := w.fail("conflict", i18n.MsgSlotTaken, lang, ErrConflict,
			date, clock, c.Title, from, until)
		res.Conflict = c
		res.Start, res.End = start, end
		return res
	}
	if check.Unknown {
		return w.fail("availability_unknown", i18n.MsgAvailabilityUnknown, lang, check.Err)
	}

	created, err := cal.InsertEvent(ctx, gcal.EventInput{
		Summary:     title,
		Description: req.Notes,
		StartTime:   start,
		EndTime:     end,
		TimeZone:    w.loc.String(),
		Reminders:   w.reminders,
	})
	if err != nil {
		if gErr, ok := gcal.APIError(err); ok {
			w.logger.Error("google calendar api error", "code", gErr.Code, "error", gErr)
			return w.fail("api_error", i18n.MsgCalendarAPIError, lang,
				fmt.Errorf("%w: %v", ErrCalendarAPI, err), gErr.Error())
		}
		w.logger.Error("unexpected error creating calendar event", "error", err)
		return w.fail("unexpected_error", i18n.MsgUnexpectedError, lang,
			fmt.Errorf("%w: %v", ErrCalendarUnexpected, err), err.Error())
	}

	w.logger.Info("event created",
		"event_id", created.ID, "title", title, "start", start, "end", end)
	w.metrics.RecordBooking("created")

	return Result{
		Success:   true,
		Outcome:   "created",
		Message:   w.catalog.Format(i18n.MsgBookingConfirmed, lang, date, clock, duration, title),
		EventLink: created.HTMLLink,
		EventID:   created.ID,
		Start:     start,
		End:       end,
		Err:       check.Err,
	}
}

// conflictBounds renders the existing event's interval. All-day events show
// their first and last calendar day; the provider end date is exclusive.
func (w *Writer) conflictBounds(c *Conflict) (string, string) {
	if !c.AllDay {
		return timeutil.FormatLocal(c.Start, w.loc), timeutil.FormatLocal(c.End, w.loc)
	}
	first := c.Start.In(w.loc)
	last := c.End.In(w.loc).AddDate(0, 0, -1)
	if last.Before(first) {
		last = first
	}
	return first.Format(timeutil.DateLayout), last.Format(timeutil.DateLayout)
}

func (w *Writer) fail(outcome string, key i18n.MessageKey, lang i18n.Language, err error, args ...any) Result {
	w.metrics.RecordBooking(outcome)

	msg := w.catalog.Text(key, lang)
	if len(args) > 0 {
		msg = w.catalog.Format(key, lang, args...)
	}
	if err == nil {
		err = errors.New(outcome)
	}
	return Result{Success: false, Outcome: outcome, Message: msg, Err: err}
}
