package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omriShneor/alfred_scheduler/internal/agent/extractor"
	"github.com/omriShneor/alfred_scheduler/internal/agent/router"
	"github.com/omriShneor/alfred_scheduler/internal/database"
	"github.com/omriShneor/alfred_scheduler/internal/i18n"
	"github.com/omriShneor/alfred_scheduler/internal/metrics"
	"github.com/omriShneor/alfred_scheduler/internal/notify"
	"github.com/omriShneor/alfred_scheduler/internal/scheduler"
)

// Classifier decides the category and reply language of a message.
type Classifier interface {
	Classify(ctx context.Context, message string) (router.Classification, error)
}

// Extractor turns an appointment request into a structured record.
type Extractor interface {
	Extract(ctx context.Context, message string, referenceDate time.Time) (*extractor.Appointment, error)
}

// Answerer replies to general questions about scheduling.
type Answerer interface {
	Answer(ctx context.Context, message string, lang i18n.Language) (string, error)
}

// Writer books an appointment. *scheduler.Writer implements it.
type Writer interface {
	CreateEvent(ctx context.Context, req scheduler.Request) scheduler.Result
}

// TraceRecorder persists one row per request. *database.DB implements it.
type TraceRecorder interface {
	CreateRequestTrace(ctx context.Context, trace database.RequestTrace) error
}

// BookingNotifier is told about every created event. *notify.Service implements it.
type BookingNotifier interface {
	NotifyBooking(ctx context.Context, booking notify.Booking)
}

// Config wires an Orchestrator. A nil stage behaves like a stage that
// always fails.
type Config struct {
	Classifier Classifier
	Extractor  Extractor
	Answerer   Answerer
	Writer     Writer

	Traces   TraceRecorder
	Notifier BookingNotifier
	Metrics  *metrics.Metrics
	Catalog  *i18n.Catalog

	Location *time.Location
	Clock    func() time.Time
	Logger   *slog.Logger
}

// Orchestrator runs each inbound message through the state machine
// Routing -> {AppointmentExtracting -> AppointmentScheduling | GeneralAnswering | Unrelated}
// -> Responding -> Terminal. It keeps no per-request state between calls.
type Orchestrator struct {
	classifier Classifier
	extractor  Extractor
	answerer   Answerer
	writer     Writer
	traces     TraceRecorder
	notifier   BookingNotifier
	metrics    *metrics.Metrics
	catalog    *i18n.Catalog
	loc        *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

func New(cfg Config) *Orchestrator {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = i18n.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		classifier: cfg.Classifier,
		extractor:  cfg.Extractor,
		answerer:   cfg.Answerer,
		writer:     cfg.Writer,
		traces:     cfg.Traces,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		catalog:    catalog,
		loc:        loc,
		now:        now,
		logger:     logger.With("component", "flow"),
	}
}

// Handle returns the reply for message. It never returns an empty string.
func (o *Orchestrator) Handle(ctx context.Context, message, senderID string) string {
	return o.Run(ctx, message, senderID).Response
}

// Run executes the state machine and returns the finished request record.
func (o *Orchestrator) Run(ctx context.Context, message, senderID string) *RequestState {
	st := &RequestState{
		RequestID: uuid.NewString(),
		Message:   message,
		SenderID:  senderID,
		Category:  router.Fallback.Category,
		Language:  router.Fallback.Language,
		StartedAt: o.now(),
	}
	logger := o.logger.With("request_id", st.RequestID, "sender_id", senderID)

	state := StateRouting
	for state != StateTerminal {
		st.Path = append(st.Path, state)
		began := time.Now()
		next := o.safeStep(ctx, logger, st, state)
		if label, ok := stageLabels[state]; ok {
			o.metrics.ObserveStage(label, time.Since(began))
		}
		state = next
	}
	st.Path = append(st.Path, StateTerminal)
	st.Duration = o.now().Sub(st.StartedAt)

	o.metrics.RecordRequest(st.Category.String(), st.Language.String())
	logger.Info("request handled",
		"category", st.Category.String(),
		"language", st.Language.String(),
		"outcome", st.Outcome,
		"event_created", st.EventCreated,
		"path", strings.Join(st.PathNames(), ">"),
		"duration", st.Duration,
	)
	o.recordTrace(ctx, logger, st)
	return st
}

// safeStep runs one state. A panic inside any stage is turned into the
// localized generic error and the machine jumps to Responding.
func (o *Orchestrator) safeStep(ctx context.Context, logger *slog.Logger, st *RequestState, state State) (next State) {
	defer func() {
		if r := recover(); r != nil {
			st.Err = fmt.Errorf("%w: %s: %v", ErrPanic, state, r)
			st.Response = o.catalog.Text(i18n.MsgGenericError, st.Language)
			st.Outcome = OutcomeError
			st.EventCreated = false
			logger.Error("panic in flow state", "state", state.String(), "error", st.Err)
			if state == StateResponding {
				next = StateTerminal
				return
			}
			next = StateResponding
		}
	}()
	return o.step(ctx, logger, st, state)
}

func (o *Orchestrator) step(ctx context.Context, logger *slog.Logger, st *RequestState, state State) State {
	switch state {
	case StateRouting:
		return o.route(ctx, logger, st)
	case StateAppointmentExtracting:
		return o.extract(ctx, logger, st)
	case StateAppointmentScheduling:
		return o.schedule(ctx, logger, st)
	case StateGeneralAnswering:
		return o.answer(ctx, logger, st)
	case StateUnrelated:
		st.Response = o.catalog.Text(i18n.MsgUnrelated, st.Language)
		st.Outcome = OutcomeUnrelated
		return StateResponding
	case StateResponding:
		if strings.TrimSpace(st.Response) == "" {
			logger.Warn("empty response, using generic error")
			st.Response = o.catalog.Text(i18n.MsgGenericError, st.Language)
			if st.Outcome == "" {
				st.Outcome = OutcomeError
			}
		}
		return StateTerminal
	}
	return StateTerminal
}

func (o *Orchestrator) route(ctx context.Context, logger *slog.Logger, st *RequestState) State {
	classification := router.Fallback
	if o.classifier == nil {
		st.Err = fmt.Errorf("%w: no classifier", ErrClassification)
	} else if c, err := o.classifier.Classify(ctx, st.Message); err != nil {
		st.Err = fmt.Errorf("%w: %w", ErrClassification, err)
	} else {
		classification = c
	}
	if st.Err != nil {
		logger.Warn("classification failed, treating as unrelated", "error", st.Err)
	}

	st.Category = classification.Category
	st.Language = classification.Language
	logger.Info("message classified",
		"category", st.Category.String(), "language", st.Language.String())

	switch st.Category {
	case router.Appointment:
		return StateAppointmentExtracting
	case router.General:
		return StateGeneralAnswering
	default:
		return StateUnrelated
	}
}

func (o *Orchestrator) extract(ctx context.Context, logger *slog.Logger, st *RequestState) State {
	var (
		appt *extractor.Appointment
		err  error
	)
	if o.extractor == nil {
		err = fmt.Errorf("%w: no extractor", ErrExtraction)
	} else {
		appt, err = o.extractor.Extract(ctx, st.Message, o.now().In(o.loc))
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrExtraction, err)
		} else if appt == nil {
			err = fmt.Errorf("%w: %w", ErrExtraction, extractor.ErrExtractionUnparsable)
		}
	}
	if err != nil {
		logger.Warn("extraction failed", "error", err)
		st.Err = err
		st.Response = o.catalog.Text(i18n.MsgExtractionFailed, st.Language)
		st.Outcome = OutcomeExtractionFailed
		return StateResponding
	}

	logger.Info("appointment extracted",
		"title", appt.Title, "date", appt.Date, "time", appt.Time,
		"duration_minutes", appt.DurationMinutes)
	st.Appointment = appt
	return StateAppointmentScheduling
}

func (o *Orchestrator) schedule(ctx context.Context, logger *slog.Logger, st *RequestState) State {
	if o.writer == nil {
		st.Response = o.catalog.Text(i18n.MsgServiceUnavailable, st.Language)
		st.Outcome = "service_unavailable"
		return StateResponding
	}

	appt := st.Appointment
	res := o.writer.CreateEvent(ctx, scheduler.Request{
		Title:           appt.Title,
		Date:            appt.Date,
		Time:            appt.Time,
		DurationMinutes: appt.DurationMinutes,
		Notes:           appt.Notes,
		Language:        st.Language,
	})

	st.Response = res.Message
	st.EventCreated = res.Success
	st.EventID = res.EventID
	st.EventLink = res.EventLink
	st.Outcome = res.Outcome
	st.Err = res.Err
	logger.Info("scheduling finished", "outcome", res.Outcome, "event_id", res.EventID, "error", res.Err)

	if res.Success && o.notifier != nil {
		o.notifier.NotifyBooking(ctx, notify.Booking{
			EventID:   res.EventID,
			EventLink: res.EventLink,
			Title:     appt.Title,
			Notes:     appt.Notes,
			Start:     res.Start,
			End:       res.End,
			SenderID:  st.SenderID,
			Language:  st.Language.String(),
		})
	}
	return StateResponding
}

func (o *Orchestrator) answer(ctx context.Context, logger *slog.Logger, st *RequestState) State {
	var (
		text string
		err  error
	)
	if o.answerer == nil {
		err = fmt.Errorf("%w: no answerer", ErrGeneralAnswer)
	} else if text, err = o.answerer.Answer(ctx, st.Message, st.Language); err != nil {
		err = fmt.Errorf("%w: %w", ErrGeneralAnswer, err)
	} else if strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: empty answer", ErrGeneralAnswer)
	}
	if err != nil {
		logger.Warn("general answer failed", "error", err)
		st.Err = err
		st.Response = o.catalog.Text(i18n.MsgGeneralUnavailable, st.Language)
		st.Outcome = OutcomeGeneralUnavailable
		return StateResponding
	}

	st.Response = text
	st.Outcome = OutcomeAnswered
	return StateResponding
}

func (o *Orchestrator) recordTrace(ctx context.Context, logger *slog.Logger, st *RequestState) {
	if o.traces == nil {
		return
	}
	trace := database.RequestTrace{
		RequestID:    st.RequestID,
		SenderID:     st.SenderID,
		Category:     st.Category.String(),
		Language:     st.Language.String(),
		Path:         st.PathNames(),
		EventCreated: st.EventCreated,
		EventID:      st.EventID,
		Outcome:      st.Outcome,
		ErrorKind:    ErrorKind(st.Err),
		Duration:     st.Duration,
	}
	if err := o.traces.CreateRequestTrace(context.WithoutCancel(ctx), trace); err != nil {
		logger.Warn("failed to record request trace", "error", err)
	}
}
