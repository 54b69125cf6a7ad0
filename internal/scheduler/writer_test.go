package scheduler

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
	"google.golang.org/api/googleapi"

	"github.com/omriShneor/alfred_scheduler/internal/gcal"
	"github.com/omriShneor/alfred_scheduler/internal/i18n"
	"github.com/omriShneor/alfred_scheduler/internal/metrics"
	"github.com/omriShneor/alfred_scheduler/internal/mocks"
	"github.com/omriShneor/alfred_scheduler/internal/testutil"
	"github.com/omriShneor/alfred_scheduler/internal/timeutil"
)

func newWriter(t *testing.T, cal gcal.Calendar, policy FailurePolicy) (*Writer, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewWriter(WriterConfig{
		Source:   gcal.NewStaticHandle(cal),
		Location: workingZone(t),
		Policy:   policy,
		Metrics:  metrics.MustNewMetrics(reg),
	}), reg
}

func bookingCount(t *testing.T, reg *prometheus.Registry) int {
	t.Helper()
	n, err := promtest.GatherAndCount(reg, "alfred_scheduler_bookings_total")
	require.NoError(t, err)
	return n
}

func TestCreateEvent_FreeSlot(t *testing.T) {
	loc := workingZone(t)
	cal := testutil.NewFakeCalendar()
	w, reg := newWriter(t, cal, FailOpen)

	res := w.CreateEvent(context.Background(), Request{
		Title:           "Dentist",
		Date:            "2025-01-15",
		Time:            "14:30",
		DurationMinutes: 45,
		Notes:           "bring x-rays",
		Language:        i18n.English,
	})

	require.True(t, res.Success, res.Message)
	assert.NoError(t, res.Err)
	assert.NotEmpty(t, res.EventLink)
	assert.NotEmpty(t, res.EventID)
	assert.Contains(t, res.Message, "2025-01-15")
	assert.Contains(t, res.Message, "14:30")
	assert.Contains(t, res.Message, "45")
	assert.Contains(t, res.Message, "Dentist")
	assert.True(t, res.Start.Equal(time.Date(2025, 1, 15, 14, 30, 0, 0, loc)))
	assert.Equal(t, 45*time.Minute, res.End.Sub(res.Start))

	events := cal.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, res.EventID, ev.ID)
	assert.Equal(t, "Dentist", ev.Summary)
	assert.Equal(t, "bring x-rays", ev.Description)
	assert.Equal(t, "Asia/Jerusalem", ev.TimeZone)
	assert.Equal(t, gcal.DefaultReminders, ev.Reminders)
	assert.Equal(t, 1, cal.ListCalls())
	assert.Equal(t, 1, bookingCount(t, reg))
}

func TestCreateEvent_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		lang      i18n.Language
		wantTitle string
	}{
		{"english default title", i18n.English, "Appointment"},
		{"hebrew default title", i18n.Hebrew, "פגישה"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := testutil.NewFakeCalendar()
			w, _ := newWriter(t, cal, FailOpen)

			res := w.CreateEvent(context.Background(), Request{
				Title:    "   ",
				Date:     "2025-01-15",
				Time:     "09:00",
				Language: tt.lang,
			})

			require.True(t, res.Success, res.Message)
			assert.Equal(t, time.Duration(DefaultDurationMinutes)*time.Minute, res.End.Sub(res.Start))
			assert.Contains(t, res.Message, tt.wantTitle)
			require.Len(t, cal.Events(), 1)
			assert.Equal(t, tt.wantTitle, cal.Events()[0].Summary)
		})
	}
}

func TestCreateEvent_HebrewConfirmation(t *testing.T) {
	cal := testutil.NewFakeCalendar()
	w, _ := newWriter(t, cal, FailOpen)

	res := w.CreateEvent(context.Background(), Request{
		Title:    "רופא שיניים",
		Date:     "2025-01-16",
		Time:     "10:00",
		Language: i18n.Hebrew,
	})

	require.True(t, res.Success)
	assert.Contains(t, res.Message, "הפגישה נקבעה בהצלחה")
	assert.Contains(t, res.Message, "רופא שיניים")
	assert.Contains(t, res.Message, "2025-01-16")
}

func TestCreateEvent_SlotTaken(t *testing.T) {
	loc := workingZone(t)
	cal := testutil.NewFakeCalendar()
	cal.AddEvent("Team sync", time.Date(2025, 1, 15, 10, 30, 0, 0, loc), time.Date(2025, 1, 15, 11, 30, 0, 0, loc))
	w, _ := newWriter(t, cal, FailOpen)

	res := w.CreateEvent(context.Background(), Request{
		Title:    "Dentist",
		Date:     "2025-01-15",
		Time:     "10:00",
		Language: i18n.English,
	})

	assert.False(t, res.Success)
	assert.True(t, IsConflict(res.Err))
	require.NotNil(t, res.Conflict)
	assert.Equal(t, "Team sync", res.Conflict.Title)
	assert.Contains(t, res.Message, "10:00")
	assert.Contains(t, res.Message, "Team sync")
	assert.Contains(t, res.Message, "2025-01-15 10:30")
	assert.Empty(t, res.EventLink)
	assert.Equal(t, 0, cal.InsertCalls())
	assert.Len(t, cal.Events(), 1)
}

func TestCreateEvent_SlotTakenByAllDayEvent(t *testing.T) {
	loc := workingZone(t)

	tests := []struct {
		name      string
		days      int
		wantRange string
	}{
		{name: "single day", days: 1, wantRange: "(2025-01-15 - 2025-01-15)"},
		{name: "multi day", days: 3, wantRange: "(2025-01-14 - 2025-01-16)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := testutil.NewFakeCalendar()
			first := time.Date(2025, 1, 15, 0, 0, 0, 0, loc).AddDate(0, 0, -(tt.days / 2))
			cal.AddAllDayEvent("Vacation", first, tt.days, loc)
			w, _ := newWriter(t, cal, FailOpen)

			res := w.CreateEvent(context.Background(), Request{Title: "Dentist", Date: "2025-01-15", Time: "10:00"})

			assert.False(t, res.Success)
			require.NotNil(t, res.Conflict)
			assert.True(t, res.Conflict.AllDay)
			assert.Contains(t, res.Message, tt.wantRange)
			assert.NotContains(t, res.Message, "00:00")
		})
	}
}

func TestCreateEvent_BackToBackIsFree(t *testing.T) {
	loc := workingZone(t)
	cal := testutil.NewFakeCalendar()
	cal.AddEvent("Earlier", time.Date(2025, 1, 15, 9, 0, 0, 0, loc), time.Date(2025, 1, 15, 10, 0, 0, 0, loc))
	w, _ := newWriter(t, cal, FailOpen)

	res := w.CreateEvent(context.Background(), Request{Title: "Next", Date: "2025-01-15", Time: "10:00"})

	assert.True(t, res.Success, res.Message)
	assert.Equal(t, 1, cal.InsertCalls())
}

func TestCreateEvent_InvalidDateTime(t *testing.T) {
	tests := []struct {
		name string
		date string
		time string
	}{
		{"bad month", "2025-13-01", "10:00"},
		{"bad hour", "2025-01-15", "25:00"},
		{"free text", "tomorrow", "noon"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := testutil.NewFakeCalendar()
			w, _ := newWriter(t, cal, FailOpen)

			res := w.CreateEvent(context.Background(), Request{Date: tt.date, Time: tt.time})

			assert.False(t, res.Success)
			assert.True(t, timeutil.IsInvalidDateTime(res.Err))
			assert.NotEmpty(t, res.Message)
			assert.Equal(t, 0, cal.ListCalls())
			assert.Equal(t, 0, cal.InsertCalls())
		})
	}
}

func TestCreateEvent_ServiceUnavailable(t *testing.T) {
	w, reg := newWriter(t, nil, FailOpen)

	res := w.CreateEvent(context.Background(), Request{Date: "2025-01-15", Time: "10:00", Language: i18n.Hebrew})

	assert.False(t, res.Success)
	assert.True(t, gcal.IsServiceUnavailable(res.Err))
	assert.Equal(t, i18n.Default().Text(i18n.MsgServiceUnavailable, i18n.Hebrew), res.Message)
	assert.Equal(t, 1, bookingCount(t, reg))
}

func TestCreateEvent_NilSource(t *testing.T) {
	w := NewWriter(WriterConfig{})

	res := w.CreateEvent(context.Background(), Request{Date: "2025-01-15", Time: "10:00"})

	assert.False(t, res.Success)
	assert.True(t, gcal.IsServiceUnavailable(res.Err))
	assert.Equal(t, i18n.Default().Text(i18n.MsgServiceUnavailable, i18n.English), res.Message)
}

func TestCreateEvent_InsertFailures(t *testing.T) {
	apiErr := &googleapi.Error{Code: 403, Message: "Rate Limit Exceeded"}

	tests := []struct {
		name       string
		insertErr  error
		wantErr    error
		wantPrefix string
		wantDetail string
	}{
		{
			name:       "provider api error",
			insertErr:  apiErr,
			wantErr:    ErrCalendarAPI,
			wantPrefix: "❌ Error scheduling appointment:",
			wantDetail: "Rate Limit Exceeded",
		},
		{
			name:       "wrapped provider api error",
			insertErr:  errors.Join(errors.New("insert event"), apiErr),
			wantErr:    ErrCalendarAPI,
			wantPrefix: "❌ Error scheduling appointment:",
			wantDetail: "Rate Limit Exceeded",
		},
		{
			name:       "unexpected error",
			insertErr:  errors.New("tls handshake timeout"),
			wantErr:    ErrCalendarUnexpected,
			wantPrefix: "❌ Unexpected error:",
			wantDetail: "tls handshake timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := testutil.NewFakeCalendar()
			cal.FailInsert(tt.insertErr)
			w, _ := newWriter(t, cal, FailOpen)

			res := w.CreateEvent(context.Background(), Request{Title: "Dentist", Date: "2025-01-15", Time: "10:00"})

			assert.False(t, res.Success)
			assert.ErrorIs(t, res.Err, tt.wantErr)
			assert.Contains(t, res.Message, tt.wantPrefix)
			assert.Contains(t, res.Message, tt.wantDetail)
			assert.Equal(t, 1, cal.InsertCalls())
		})
	}
}

func TestCreateEvent_InsertPanicIsRecovered(t *testing.T) {
	cal := new(mocks.MockCalendar)
	cal.On("ListEventsInRange", mock.Anything, mock.Anything, mock.Anything).Return([]gcal.EventDetails{}, nil)
	cal.On("InsertEvent", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("boom") })
	w, _ := newWriter(t, cal, FailOpen)

	var res Result
	require.NotPanics(t, func() {
		res = w.CreateEvent(context.Background(), Request{Date: "2025-01-15", Time: "10:00"})
	})

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrCalendarUnexpected)
	assert.Contains(t, res.Message, "boom")
}

func TestCreateEvent_ConflictQueryFailure(t *testing.T) {
	t.Run("fail open still books", func(t *testing.T) {
		cal := testutil.NewFakeCalendar()
		cal.FailList(errors.New("backend unavailable"))
		w, _ := newWriter(t, cal, FailOpen)

		res := w.CreateEvent(context.Background(), Request{Title: "Dentist", Date: "2025-01-15", Time: "10:00"})

		assert.True(t, res.Success, res.Message)
		assert.Equal(t, "created", res.Outcome)
		assert.ErrorIs(t, res.Err, ErrCalendarQuery)
		assert.Equal(t, 1, cal.InsertCalls())
	})

	t.Run("fail closed refuses", func(t *testing.T) {
		cal := testutil.NewFakeCalendar()
		cal.FailList(errors.New("backend unavailable"))
		w, _ := newWriter(t, cal, FailClosed)

		res := w.CreateEvent(context.Background(), Request{Title: "Dentist", Date: "2025-01-15", Time: "10:00"})

		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Err, ErrCalendarQuery)
		assert.Equal(t, i18n.Default().Text(i18n.MsgAvailabilityUnknown, i18n.English), res.Message)
		assert.Equal(t, 0, cal.InsertCalls())
	})
}

func TestCreateEvent_InsertsWithRequestedInterval(t *testing.T) {
	loc := workingZone(t)
	start := time.Date(2025, 1, 15, 16, 0, 0, 0, loc)

	cal := new(mocks.MockCalendar)
	cal.On("ListEventsInRange", mock.Anything, mock.Anything, mock.Anything).Return([]gcal.EventDetails{}, nil)
	cal.On("InsertEvent", mock.Anything, mock.MatchedBy(func(in gcal.EventInput) bool {
		return in.StartTime.Equal(start) &&
			in.EndTime.Equal(start.Add(90*time.Minute)) &&
			in.Summary == "Haircut" &&
			len(in.Reminders) == 2
	})).Return(&gcal.CreatedEvent{ID: "evt-1", HTMLLink: "https://calendar.google.com/event?eid=evt-1"}, nil)
	w, _ := newWriter(t, cal, FailOpen)

	res := w.CreateEvent(context.Background(), Request{Title: "Haircut", Date: "2025-01-15", Time: "16:00", DurationMinutes: 90})

	require.True(t, res.Success, res.Message)
	assert.Equal(t, "evt-1", res.EventID)
	assert.Equal(t, "https://calendar.google.com/event?eid=evt-1", res.EventLink)
	cal.AssertExpectations(t)
}
