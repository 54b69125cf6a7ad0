package server

import (
	"encoding/json"
	"encoding/xml"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/omriShneor/alfred_scheduler/internal/flow"
	"github.com/omriShneor/alfred_scheduler/internal/i18n"
)

const (
	defaultTraceLimit = 50
	maxTraceLimit     = 500
	maxBodyBytes      = 64 << 10
)

// webhookFallbackLanguage is used when a request fails before its language is known.
const webhookFallbackLanguage = i18n.Hebrew

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":   "healthy",
		"calendar": "disconnected",
	}

	if s.calendar != nil && s.calendar.Ready(r.Context()) {
		status["calendar"] = "connected"
	}
	if s.traces != nil {
		status["traces"] = "enabled"
	}

	respondJSON(w, http.StatusOK, status)
}

// twimlResponse is the Twilio Messaging reply document.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// handleWhatsAppWebhook receives a Twilio form post and replies with TwiML.
// It always answers 200 with a message so Twilio never retries.
func (s *Server) handleWhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.logger.Warn("invalid webhook form", "error", err)
		respondTwiML(w, s.catalog.Text(i18n.MsgGenericError, webhookFallbackLanguage))
		return
	}

	message := strings.TrimSpace(r.PostForm.Get("Body"))
	sender := r.PostForm.Get("From")
	s.logger.Info("received whatsapp message", "sender_id", sender, "length", len(message))

	reply, ok := s.run(r, message, sender)
	if !ok {
		reply = s.catalog.Text(i18n.MsgGenericError, webhookFallbackLanguage)
	}
	respondTwiML(w, reply)
}

type processMessageRequest struct {
	Message  string `json:"message"`
	SenderID string `json:"sender_id"`
}

type processMessageResponse struct {
	RequestID    string `json:"request_id"`
	Response     string `json:"response"`
	Category     string `json:"category"`
	Language     string `json:"language"`
	EventCreated bool   `json:"event_created"`
	EventLink    string `json:"event_link,omitempty"`
	EventID      string `json:"event_id,omitempty"`
	Outcome      string `json:"outcome"`
}

func (s *Server) handleProcessMessage(w http.ResponseWriter, r *http.Request) {
	var req processMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	st, ok := s.runState(r, req.Message, req.SenderID)
	if !ok {
		respondError(w, http.StatusInternalServerError, s.catalog.Text(i18n.MsgGenericError, webhookFallbackLanguage))
		return
	}

	respondJSON(w, http.StatusOK, processMessageResponse{
		RequestID:    st.RequestID,
		Response:     st.Response,
		Category:     st.Category.String(),
		Language:     st.Language.String(),
		EventCreated: st.EventCreated,
		EventLink:    st.EventLink,
		EventID:      st.EventID,
		Outcome:      st.Outcome,
	})
}

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	if s.traces == nil {
		respondError(w, http.StatusNotFound, "request traces are disabled")
		return
	}

	limit := defaultTraceLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxTraceLimit)
	}

	traces, err := s.traces.ListRecentRequestTraces(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list traces", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list traces")
		return
	}
	counts, err := s.traces.CountRequestTracesByOutcome(r.Context())
	if err != nil {
		s.logger.Error("failed to count traces", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to count traces")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"traces":   traces,
		"outcomes": counts,
	})
}

func (s *Server) run(r *http.Request, message, sender string) (string, bool) {
	st, ok := s.runState(r, message, sender)
	if !ok || strings.TrimSpace(st.Response) == "" {
		return "", false
	}
	return st.Response, true
}

// runState calls the runner, recovering from panics.
func (s *Server) runState(r *http.Request, message, sender string) (st *flow.RequestState, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic processing message", "sender_id", sender, "panic", rec)
			st, ok = nil, false
		}
	}()
	if s.runner == nil {
		s.logger.Error("no message runner configured")
		return nil, false
	}
	st = s.runner.Run(r.Context(), message, sender)
	return st, st != nil
}

func respondTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(twimlResponse{Message: message}); err != nil {
		slog.Error("failed to encode TwiML response", "error", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
