package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/omriShneor/alfred_scheduler/internal/agent"
	"github.com/omriShneor/alfred_scheduler/internal/agent/extractor"
	"github.com/omriShneor/alfred_scheduler/internal/agent/router"
	"github.com/omriShneor/alfred_scheduler/internal/database"
	"github.com/omriShneor/alfred_scheduler/internal/gcal"
	"github.com/omriShneor/alfred_scheduler/internal/i18n"
	"github.com/omriShneor/alfred_scheduler/internal/metrics"
	"github.com/omriShneor/alfred_scheduler/internal/mocks"
	"github.com/omriShneor/alfred_scheduler/internal/notify"
	"github.com/omriShneor/alfred_scheduler/internal/scheduler"
	"github.com/omriShneor/alfred_scheduler/internal/testutil"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) CreateEvent(ctx context.Context, req scheduler.Request) scheduler.Result {
	args := m.Called(ctx, req)
	return args.Get(0).(scheduler.Result)
}

type panickingClassifier struct{}

func (panickingClassifier) Classify(context.Context, string) (router.Classification, error) {
	panic("classifier exploded")
}

var catalog = i18n.Default()

func jerusalem(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	return loc
}

// harness wires an orchestrator with stage mocks and a real writer over a fake calendar.
type harness struct {
	classifier *mocks.MockClassifier
	extractor  *mocks.MockExtractor
	answerer   *mocks.MockAnswerer
	calendar   *testutil.FakeCalendar
	db         *database.DB
	registry   *prometheus.Registry
	loc        *time.Location
	now        time.Time
	orch       *Orchestrator
}

func newHarness(t *testing.T, policy scheduler.FailurePolicy) *harness {
	t.Helper()
	loc := jerusalem(t)
	h := &harness{
		classifier: &mocks.MockClassifier{},
		extractor:  &mocks.MockExtractor{},
		answerer:   &mocks.MockAnswerer{},
		calendar:   testutil.NewFakeCalendar(),
		db:         database.NewTestDB(t),
		registry:   prometheus.NewRegistry(),
		loc:        loc,
		now:        time.Date(2025, 1, 14, 9, 0, 0, 0, loc),
	}
	m := metrics.MustNewMetrics(h.registry)
	writer := scheduler.NewWriter(scheduler.WriterConfig{
		Source:   gcal.NewStaticHandle(h.calendar),
		Location: loc,
		Policy:   policy,
		Metrics:  m,
	})
	h.orch = New(Config{
		Classifier: h.classifier,
		Extractor:  h.extractor,
		Answerer:   h.answerer,
		Writer:     writer,
		Traces:     h.db,
		Metrics:    m,
		Location:   loc,
		Clock:      func() time.Time { return h.now },
	})
	return h
}

func (h *harness) classifyAs(msg string, c router.Category, lang i18n.Language) {
	h.classifier.On("Classify", mock.Anything, msg).
		Return(router.Classification{Category: c, Language: lang}, nil).Once()
}

func (h *harness) extractAs(msg string, appt *extractor.Appointment, err error) {
	h.extractor.On("Extract", mock.Anything, msg, mock.AnythingOfType("time.Time")).
		Return(appt, err).Once()
}

func (h *harness) lastTrace(t *testing.T) database.RequestTrace {
	t.Helper()
	traces, err := h.db.ListRecentRequestTraces(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	return traces[0]
}

func TestRun_AppointmentBooked(t *testing.T) {
	h := newHarness(t, scheduler.FailOpen)
	msg := "תקבע לי פגישה מחר ב-10:30 עם רופא השיניים"
	h.classifyAs(msg, router.Appointment, i18n.Hebrew)
	h.extractAs(msg, &extractor.Appointment{
		Title: "רופא שיניים", Date: "2025-01-15", Time: "10:30", DurationMinutes: 30,
	}, nil)

	st := h.orch.Run(context.Background(), msg, "whatsapp:+972501234567")

	assert.Equal(t, []State{
		StateRouting, StateAppointmentExtracting, StateAppointmentScheduling, StateResponding, StateTerminal,
	}, st.Path)
	assert.True(t, st.EventCreated)
	assert.NotEmpty(t, st.EventID)
	assert.Contains(t, st.Response, "הפגישה נקבעה בהצלחה")
	assert.Equal(t, "created", st.Outcome)
	assert.NoError(t, st.Err)
	assert.NotEmpty(t, st.RequestID)

	require.Equal(t, 1, h.calendar.InsertCalls())
	ev := h.calendar.Events()[0]
	assert.Equal(t, "רופא שיניים", ev.Summary)
	assert.Equal(t, time.Date(2025, 1, 15, 10, 30, 0, 0, h.loc), ev.StartTime.In(h.loc))
	assert.Equal(t, 30*time.Minute, ev.EndTime.Sub(ev.StartTime))

	trace := h.lastTrace(t)
	assert.Equal(t, st.RequestID, trace.RequestID)
	assert.Equal(t, "APPOINTMENT", trace.Category)
	assert.Equal(t, "hebrew", trace.Language)
	assert.True(t, trace.EventCreated)
	assert.Equal(t, st.EventID, trace.EventID)
	assert.Empty(t, trace.ErrorKind)

	n, err := promtest.GatherAndCount(h.registry, "alfred_flow_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	h.classifier.AssertExpectations(t)
	h.extractor.AssertExpectations(t)
	h.answerer.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_ExtractionReceivesLocalToday(t *testing.T) {
	h := newHarness(t, scheduler.FailOpen)
	// 23:30 UTC on the 14th is already the 15th in Jerusalem.
	h.now = time.Date(2025, 1, 14, 23, 30, 0, 0, time.UTC)
	msg := "meeting tomorrow at 9"
	h.classifyAs(msg, router.Appointment, i18n.English)
	h.extractor.On("Extract", mock.Anything, msg, mock.MatchedBy(func(ref time.Time) bool {
		return ref.Location() == h.loc && ref.Format("2006-01-02") == "2025-01-15"
	})).Return(&extractor.Appointment{Date: "2025-01-16", Time: "09:00"}, nil).Once()

	st := h.orch.Run(context.Background(), msg, "")
	assert.True(t, st.EventCreated)
	h.extractor.AssertExpectations(t)
}

func TestRun_Conflict(t *testing.T) {
	h := newHarness(t, scheduler.FailOpen)
	h.calendar.AddEvent("Team sync",
		time.Date(2025, 1, 15, 10, 0, 0, 0, h.loc),
		time.Date(2025, 1, 15, 11, 0, 0, 0, h.loc))

	msg := "book a call on Jan 15 at 10:30"
	h.classifyAs(msg, router.Appointment, i18n.English)
	h.extractAs(msg, &extractor.Appointment{Title: "Call", Date: "2025-01-15", Time: "10:30"}, nil)

	st := h.orch.Run(context.Background(), msg, "sender")

	assert.False(t, st.EventCreated)
	assert.Equal(t, "conflict", st.Outcome)
	assert.True(t, scheduler.IsConflict(st.Err))
	assert.Contains(t, st.Response, "Team sync")
	assert.Equal(t, 0, h.calendar.InsertCalls())
	assert.Empty(t, h.lastTrace(t).ErrorKind)
}

func TestRun_ConflictQueryFailure(t *testing.T) {
	tests := []struct {
		name        string
		policy      scheduler.FailurePolicy
		wantCreated bool
		wantOutcome string
	}{
		{name: "fail open books anyway", policy: scheduler.FailOpen, wantCreated: true, wantOutcome: "created"},
		{name: "fail closed refuses", policy: scheduler.FailClosed, wantCreated: false, wantOutcome: "availability_unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.policy)
			h.calendar.FailList(errors.New("quota exceeded"))
			msg := "dentist 2025-01-15 10:30"
			h.classifyAs(msg, router.Appointment, i18n.English)
			h.extractAs(msg, &extractor.Appointment{Title: "Dentist", Date: "2025-01-15", Time: "10:30"}, nil)

			st := h.orch.Run(context.Background(), msg, "")

			assert.Equal(t, tt.wantCreated, st.EventCreated)
			assert.Equal(t, tt.wantOutcome, st.Outcome)
			assert.NotEmpty(t, st.Response)
			assert.ErrorIs(t, st.Err, scheduler.ErrCalendarQuery)

			trace := h.lastTrace(t)
			assert.Equal(t, tt.wantCreated, trace.EventCreated)
			assert.Equal(t, tt.wantOutcome, trace.Outcome)
			assert.Equal(t, "calendar_query", trace.ErrorKind)
		})
	}
}

func TestRun_ExtractionFailure(t *testing.T) {
	tests := []struct {
		name     string
		appt     *extractor.Appointment
		err      error
		wantKind string
	}{
		{name: "unparsable output", err: extractor.ErrExtractionUnparsable, wantKind: "extraction_unparsable"},
		{name: "llm not configured", err: agent.ErrNotConfigured, wantKind: "llm_not_configured"},
		{name: "nil record without error", wantKind: "extraction_unparsable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, scheduler.FailOpen)
			msg := "תקבע משהו"
			h.classifyAs(msg, router.Appointment, i18n.Hebrew)
			h.extractAs(msg, tt.appt, tt.err)

			st := h.orch.Run(context.Background(), msg, "")

			assert.Equal(t, catalog.Text(i18n.MsgExtractionFailed, i18n.Hebrew), st.Response)
			assert.Equal(t, OutcomeExtractionFailed, st.Outcome)
			assert.False(t, st.Visited(StateAppointmentScheduling))
			assert.True(t, errors.Is(st.Err, ErrExtraction))
			assert.Equal(t, 0, h.calendar.ListCalls())
			assert.Equal(t, tt.wantKind, h.lastTrace(t).ErrorKind)
		})
	}
}

func TestRun_InvalidDateTimeSkipsCalendar(t *testing.T) {
	h := newHarness(t, scheduler.FailOpen)
	msg := "meeting on the 31st of February"
	h.classifyAs(msg, router.Appointment, i18n.English)
	h.extractAs(msg, &extractor.Appointment{Title: "Meeting", Date: "2025-02-31", Time: "10:00"}, nil)

	st := h.orch.Run(context.Background(), msg, "")

	assert.False(t, st.EventCreated)
	assert.Equal(t, "invalid_datetime", st.Outcome)
	assert.Equal(t, 0, h.calendar.ListCalls())
	assert.Equal(t, 0, h.calendar.InsertCalls())
	assert.Equal(t, "invalid_datetime", h.lastTrace(t).ErrorKind)
}

func TestRun_General(t *testing.T) {
	t.Run("answer returned verbatim", func(t *testing.T) {
		h := newHarness(t, scheduler.FailOpen)
		msg := "How long is a typical dentist appointment?"
		h.classifyAs(msg, router.General, i18n.English)
		h.answerer.On("Answer", mock.Anything, msg, i18n.English).Return("Usually 30 to 60 minutes.", nil).Once()

		st := h.orch.Run(context.Background(), msg, "")

		assert.Equal(t, "Usually 30 to 60 minutes.", st.Response)
		assert.Equal(t, OutcomeAnswered, st.Outcome)
		assert.Equal(t, []State{StateRouting, StateGeneralAnswering, StateResponding, StateTerminal}, st.Path)
		assert.Equal(t, 0, h.calendar.ListCalls())
	})

	t.Run("failure falls back to localized message", func(t *testing.T) {
		h := newHarness(t, scheduler.FailOpen)
		msg := "כמה זמן לוקחת פגישה?"
		h.classifyAs(msg, router.General, i18n.Hebrew)
		h.answerer.On("Answer", mock.Anything, msg, i18n.Hebrew).Return("", errors.New("timeout")).Once()

		st := h.orch.Run(context.Background(), msg, "")

		assert.Equal(t, catalog.Text(i18n.MsgGeneralUnavailable, i18n.Hebrew), st.Response)
		assert.Equal(t, OutcomeGeneralUnavailable, st.Outcome)
		assert.Equal(t, "general_answer_error", h.lastTrace(t).ErrorKind)
	})

	t.Run("blank answer is replaced", func(t *testing.T) {
		h := newHarness(t, scheduler.FailOpen)
		msg := "what can you do?"
		h.classifyAs(msg, router.General, i18n.English)
		h.answerer.On("Answer", mock.Anything, msg, i18n.English).Return("   ", nil).Once()

		st := h.orch.Run(context.Background(), msg, "")
		assert.Equal(t, catalog.Text(i18n.MsgGeneralUnavailable, i18n.English), st.Response)
	})
}

func TestRun_Unrelated(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *harness, msg string)
		wantLang i18n.Language
		wantKind string
	}{
		{
			name: "classified unrelated",
			setup: func(h *harness, msg string) {
				h.classifyAs(msg, router.Unrelated, i18n.Hebrew)
			},
			wantLang: i18n.Hebrew,
		},
		{
			name: "classifier output unparsable",
			setup: func(h *harness, msg string) {
				h.classifier.On("Classify", mock.Anything, msg).
					Return(router.Classification{}, router.ErrClassificationUnparsable).Once()
			},
			wantLang: i18n.English,
			wantKind: "classification_unparsable",
		},
		{
			name: "classifier transport error",
			setup: func(h *harness, msg string) {
				h.classifier.On("Classify", mock.Anything, msg).
					Return(router.Classification{Category: router.Appointment}, errors.New("connection reset")).Once()
			},
			wantLang: i18n.English,
			wantKind: "classification_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, scheduler.FailOpen)
			msg := "what's the weather?"
			tt.setup(h, msg)

			st := h.orch.Run(context.Background(), msg, "")

			assert.Equal(t, router.Unrelated, st.Category)
			assert.Equal(t, tt.wantLang, st.Language)
			assert.Equal(t, catalog.Text(i18n.MsgUnrelated, tt.wantLang), st.Response)
			assert.Equal(t, []State{StateRouting, StateUnrelated, StateResponding, StateTerminal}, st.Path)
			h.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, tt.wantKind, h.lastTrace(t).ErrorKind)
		})
	}
}

func TestRun_PanicIsRecovered(t *testing.T) {
	db := database.NewTestDB(t)
	orch := New(Config{Classifier: panickingClassifier{}, Traces: db})

	var st *RequestState
	require.NotPanics(t, func() {
		st = orch.Run(context.Background(), "hello", "")
	})

	assert.Equal(t, catalog.Text(i18n.MsgGenericError, i18n.English), st.Response)
	assert.True(t, errors.Is(st.Err, ErrPanic))
	assert.Equal(t, []State{StateRouting, StateResponding, StateTerminal}, st.Path)

	traces, err := db.ListRecentRequestTraces(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "panic", traces[0].ErrorKind)
	assert.Equal(t, OutcomeError, traces[0].Outcome)
}

func TestRun_NilStages(t *testing.T) {
	orch := New(Config{})
	st := orch.Run(context.Background(), "book me a meeting", "")

	assert.Equal(t, catalog.Text(i18n.MsgUnrelated, i18n.English), st.Response)
	assert.True(t, errors.Is(st.Err, ErrClassification))
}

func TestRun_WriterResultPropagates(t *testing.T) {
	classifier := &mocks.MockClassifier{}
	ext := &mocks.MockExtractor{}
	writer := &mockWriter{}
	notifier := &mocks.MockNotifyService{}

	msg := "book dentist"
	appt := &extractor.Appointment{Title: "Dentist", Date: "2025-01-15", Time: "10:30", Notes: "checkup"}
	classifier.On("Classify", mock.Anything, msg).
		Return(router.Classification{Category: router.Appointment, Language: i18n.English}, nil)
	ext.On("Extract", mock.Anything, msg, mock.Anything).Return(appt, nil)

	start := time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)
	writer.On("CreateEvent", mock.Anything, scheduler.Request{
		Title: "Dentist", Date: "2025-01-15", Time: "10:30", Notes: "checkup", Language: i18n.English,
	}).Return(scheduler.Result{
		Success: true, Outcome: "created", Message: "booked",
		EventID: "evt-9", EventLink: "https://cal/evt-9",
		Start: start, End: start.Add(time.Hour),
	})
	notifier.On("NotifyBooking", mock.Anything, mock.MatchedBy(func(b notify.Booking) bool {
		return b.EventID == "evt-9" && b.Title == "Dentist" && b.SenderID == "s1" && b.Start.Equal(start)
	})).Once()

	orch := New(Config{Classifier: classifier, Extractor: ext, Writer: writer, Notifier: notifier})
	st := orch.Run(context.Background(), msg, "s1")

	assert.Equal(t, "booked", st.Response)
	assert.Equal(t, "https://cal/evt-9", st.EventLink)
	writer.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRun_NoNotificationOnFailure(t *testing.T) {
	classifier := &mocks.MockClassifier{}
	ext := &mocks.MockExtractor{}
	writer := &mockWriter{}
	notifier := &mocks.MockNotifyService{}

	classifier.On("Classify", mock.Anything, mock.Anything).
		Return(router.Classification{Category: router.Appointment}, nil)
	ext.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Return(&extractor.Appointment{Date: "2025-01-15", Time: "10:30"}, nil)
	writer.On("CreateEvent", mock.Anything, mock.Anything).Return(scheduler.Result{
		Outcome: "conflict", Message: "taken", Err: scheduler.ErrConflict,
	})

	orch := New(Config{Classifier: classifier, Extractor: ext, Writer: writer, Notifier: notifier})
	st := orch.Run(context.Background(), "x", "")

	assert.Equal(t, "taken", st.Response)
	notifier.AssertNotCalled(t, "NotifyBooking", mock.Anything, mock.Anything)
}

func TestRun_TraceFailureIgnored(t *testing.T) {
	classifier := &mocks.MockClassifier{}
	traces := &mocks.MockTraceRecorder{}
	classifier.On("Classify", mock.Anything, "hi").Return(router.Fallback, nil)
	traces.On("CreateRequestTrace", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	orch := New(Config{Classifier: classifier, Traces: traces})
	assert.Equal(t, catalog.Text(i18n.MsgUnrelated, i18n.English), orch.Handle(context.Background(), "hi", ""))
	traces.AssertExpectations(t)
}

func TestRun_RequestIDsAreUnique(t *testing.T) {
	orch := New(Config{})
	a := orch.Run(context.Background(), "a", "")
	b := orch.Run(context.Background(), "b", "")
	assert.NotEqual(t, a.RequestID, b.RequestID)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{scheduler.ErrConflict, ""},
		{gcal.ErrServiceUnavailable, "service_unavailable"},
		{scheduler.ErrCalendarAPI, "calendar_api"},
		{scheduler.ErrCalendarUnexpected, "calendar_unexpected"},
		{scheduler.ErrCalendarQuery, "calendar_query"},
		{agent.ErrInsufficientCredits, "llm_insufficient_credits"},
		{ErrGeneralAnswer, "general_answer_error"},
		{errors.New("other"), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "%v", tt.err)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AppointmentScheduling", StateAppointmentScheduling.String())
	assert.Equal(t, "State(42)", State(42).String())
}
