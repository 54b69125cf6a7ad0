// Package e2e drives the full HTTP surface against an in-memory calendar,
// an in-memory trace store and a stubbed Messages API.
package e2e

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omriShneor/alfred_scheduler/internal/agent"
	"github.com/omriShneor/alfred_scheduler/internal/app"
	"github.com/omriShneor/alfred_scheduler/internal/config"
	"github.com/omriShneor/alfred_scheduler/internal/notify"
	"github.com/omriShneor/alfred_scheduler/internal/scheduler"
	"github.com/omriShneor/alfred_scheduler/internal/testutil"
)

// TestServer wraps the wired application for E2E testing
type TestServer struct {
	App        *app.App
	Calendar   *testutil.FakeCalendar
	Anthropic  *testutil.AnthropicStub
	HTTPServer *httptest.Server
	t          *testing.T

	cfg      *config.Config
	now      time.Time
	notifier notify.Notifier
}

// TestServerOption configures a test server
type TestServerOption func(*TestServer)

// WithConflictPolicy sets the availability failure policy.
func WithConflictPolicy(policy scheduler.FailurePolicy) TestServerOption {
	return func(ts *TestServer) {
		ts.cfg.ConflictPolicy = policy
	}
}

// WithNow fixes the clock used for "today".
func WithNow(now time.Time) TestServerOption {
	return func(ts *TestServer) {
		ts.now = now
	}
}

// WithNotifier enables booking notifications to owner.
func WithNotifier(n notify.Notifier, owner string) TestServerOption {
	return func(ts *TestServer) {
		ts.notifier = n
		ts.cfg.NotifyEmail = owner
	}
}

// NewTestServer creates a fully configured test server for E2E testing.
// Queue model replies on ts.Anthropic before sending messages.
func NewTestServer(t *testing.T, opts ...TestServerOption) *TestServer {
	t.Helper()

	ts := &TestServer{
		Calendar:  testutil.NewFakeCalendar(),
		Anthropic: testutil.NewAnthropicStub(t),
		t:         t,
		cfg: &config.Config{
			AnthropicAPIKey:        "sk-e2e",
			Timezone:               "Asia/Jerusalem",
			DefaultDurationMinutes: scheduler.DefaultDurationMinutes,
			ConflictPolicy:         scheduler.FailOpen,
			DBPath:                 ":memory:",
			ClaudeModel:            "claude-e2e",
			ClaudeTemperature:      0.1,
		},
	}
	ts.now = time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)

	// Apply options before creating the app
	for _, opt := range opts {
		opt(ts)
	}

	a, err := app.New(ts.cfg, app.Options{
		Calendar:              ts.Calendar,
		APIOptions:            []agent.APIOption{agent.WithAPIURL(ts.Anthropic.URL())},
		Notifier:              ts.notifier,
		Logger:                slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:                 func() time.Time { return ts.now },
		DisableRuntimeMetrics: true,
	})
	require.NoError(t, err, "failed to build app")
	ts.App = a

	ts.HTTPServer = httptest.NewServer(a.Server().Handler())

	t.Cleanup(func() {
		ts.HTTPServer.Close()
		_ = a.Close()
	})

	return ts
}

// BaseURL returns the test server base URL
func (ts *TestServer) BaseURL() string {
	return ts.HTTPServer.URL
}

// Client returns an HTTP client configured for the test server
func (ts *TestServer) Client() *http.Client {
	return ts.HTTPServer.Client()
}

// Location returns the working timezone.
func (ts *TestServer) Location() *time.Location {
	return ts.App.Location
}

// SendWhatsApp posts a Twilio webhook form and returns the TwiML message text.
func (ts *TestServer) SendWhatsApp(body, from string) string {
	ts.t.Helper()

	form := url.Values{"Body": {body}, "From": {from}}
	resp, err := ts.Client().Post(ts.BaseURL()+"/whatsapp/", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	require.Equal(ts.t, http.StatusOK, resp.StatusCode)

	var twiml struct {
		XMLName xml.Name `xml:"Response"`
		Message string   `xml:"Message"`
	}
	require.NoError(ts.t, xml.NewDecoder(resp.Body).Decode(&twiml))
	return twiml.Message
}

// MessageResult is the JSON API reply.
type MessageResult struct {
	RequestID    string `json:"request_id"`
	Response     string `json:"response"`
	Category     string `json:"category"`
	Language     string `json:"language"`
	EventCreated bool   `json:"event_created"`
	EventLink    string `json:"event_link"`
	EventID      string `json:"event_id"`
	Outcome      string `json:"outcome"`
}

// SendMessage posts to the JSON API.
func (ts *TestServer) SendMessage(message, senderID string) MessageResult {
	ts.t.Helper()

	payload, err := json.Marshal(map[string]string{"message": message, "sender_id": senderID})
	require.NoError(ts.t, err)
	resp, err := ts.Client().Post(ts.BaseURL()+"/api/messages", "application/json", strings.NewReader(string(payload)))
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	require.Equal(ts.t, http.StatusOK, resp.StatusCode)

	var result MessageResult
	require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// GetJSON fetches path and decodes the JSON body into v.
func (ts *TestServer) GetJSON(path string, v any) int {
	ts.t.Helper()

	resp, err := ts.Client().Get(ts.BaseURL() + path)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

// GetText fetches path and returns the body.
func (ts *TestServer) GetText(path string) string {
	ts.t.Helper()

	resp, err := ts.Client().Get(ts.BaseURL() + path)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	return string(body)
}

// ClassifyAs queues a classification reply.
func (ts *TestServer) ClassifyAs(category, language string) {
	ts.Anthropic.Enqueue(testutil.ToolUseResponse("classify_message", map[string]any{
		"category": category, "language": language,
	}))
}

// ExtractAs queues an extraction reply.
func (ts *TestServer) ExtractAs(fields map[string]any) {
	ts.Anthropic.Enqueue(testutil.ToolUseResponse("record_appointment", fields))
}

// AnswerWith queues a plain-text general answer.
func (ts *TestServer) AnswerWith(text string) {
	ts.Anthropic.Enqueue(testutil.TextResponse(text))
}
