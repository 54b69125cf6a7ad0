package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// AnthropicStub is an httptest server speaking the Messages API. Replies are
// served in the order they were queued; when the queue is empty the last reply
// is repeated.
type AnthropicStub struct {
	server *httptest.Server

	mu        sync.Mutex
	responses []AnthropicResponse
	last      *AnthropicResponse
	requests  []map[string]any
	status    int
	errBody   string
}

// NewAnthropicStub starts a stub that is closed when the test ends.
func NewAnthropicStub(t testing.TB, responses ...AnthropicResponse) *AnthropicStub {
	t.Helper()

	s := &AnthropicStub{responses: responses}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.server.Close)
	return s
}

// URL is the messages endpoint to pass to agent.WithAPIURL.
func (s *AnthropicStub) URL() string {
	return s.server.URL + "/v1/messages"
}

// Enqueue appends replies.
func (s *AnthropicStub) Enqueue(responses ...AnthropicResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

// FailWith makes every later request fail with status and body.
func (s *AnthropicStub) FailWith(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.errBody = body
}

// Requests returns the decoded request bodies received so far.
func (s *AnthropicStub) Requests() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns how many requests were received.
func (s *AnthropicStub) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *AnthropicStub) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var decoded map[string]any
	_ = json.Unmarshal(body, &decoded)

	s.mu.Lock()
	s.requests = append(s.requests, decoded)
	if s.status != 0 {
		status, errBody := s.status, s.errBody
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(errBody))
		return
	}

	var resp *AnthropicResponse
	if len(s.responses) > 0 {
		resp = &s.responses[0]
		s.responses = s.responses[1:]
		s.last = resp
	} else {
		resp = s.last
	}
	s.mu.Unlock()

	if resp == nil {
		http.Error(w, `{"type":"error","error":{"type":"api_error","message":"no reply queued"}}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":          "msg_stub",
		"type":        "message",
		"role":        "assistant",
		"content":     resp.Content,
		"stop_reason": resp.StopReason,
		"usage":       map[string]int{"input_tokens": 10, "output_tokens": 5},
	})
}
