// Package main provides a test server for E2E testing the WhatsApp webhook.
// This server runs with an in-memory calendar and the real Claude API for
// testing stage accuracy. Google Calendar and email are never contacted.
//
// Usage:
//
//	ANTHROPIC_API_KEY=sk-... go run ./cmd/testserver
//
// The server exposes additional test control endpoints:
//   - POST /api/test/reset - Remove all calendar events
//   - GET  /api/test/events - List events in the in-memory calendar
//   - POST /api/test/events - Seed an existing event (for conflict testing)
//   - POST /api/test/fail - Make calendar list/insert calls fail
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omriShneor/alfred_scheduler/internal/app"
	"github.com/omriShneor/alfred_scheduler/internal/config"
	"github.com/omriShneor/alfred_scheduler/internal/testutil"
	"github.com/omriShneor/alfred_scheduler/internal/timeutil"
)

func main() {
	cfg := config.LoadFromEnv()
	cfg.DBPath = ":memory:"
	cfg.ResendAPIKey = ""

	logger := app.NewLogger(os.Stderr, slog.LevelDebug)
	slog.SetDefault(logger)
	logger.Info("starting Alfred Scheduler test server",
		"calendar", "in-memory", "traces", "in-memory sqlite")

	if cfg.AnthropicAPIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set, every message will be treated as unrelated")
	}

	cal := testutil.NewFakeCalendar()
	a, err := app.New(cfg, app.Options{Calendar: cal, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := a.Server()
	mux := http.NewServeMux()
	registerTestRoutes(mux, cal, a.Location)
	mux.Handle("/", srv.Handler())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}

	go func() {
		logger.Info("test server listening", "addr", fmt.Sprintf("http://localhost:%d", cfg.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down test server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}

type seedEventRequest struct {
	Summary         string `json:"summary"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type failRequest struct {
	List   string `json:"list"`
	Insert string `json:"insert"`
}

type eventJSON struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Start    string `json:"start"`
	End      string `json:"end"`
	AllDay   bool   `json:"all_day"`
	TimeZone string `json:"time_zone,omitempty"`
}

func registerTestRoutes(mux *http.ServeMux, cal *testutil.FakeCalendar, loc *time.Location) {
	mux.HandleFunc("POST /api/test/reset", func(w http.ResponseWriter, r *http.Request) {
		cal.Reset()
		respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	})

	mux.HandleFunc("GET /api/test/events", func(w http.ResponseWriter, r *http.Request) {
		events := cal.Events()
		out := make([]eventJSON, 0, len(events))
		for _, ev := range events {
			out = append(out, eventJSON{
				ID:       ev.ID,
				Summary:  ev.Summary,
				Start:    timeutil.FormatISO(ev.StartTime.In(loc)),
				End:      timeutil.FormatISO(ev.EndTime.In(loc)),
				AllDay:   ev.AllDay,
				TimeZone: ev.TimeZone,
			})
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"events":       out,
			"insert_calls": cal.InsertCalls(),
			"list_calls":   cal.ListCalls(),
		})
	})

	mux.HandleFunc("POST /api/test/events", func(w http.ResponseWriter, r *http.Request) {
		var req seedEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		start, err := timeutil.ToWorkingInstant(req.Date, req.Time, loc)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.DurationMinutes <= 0 {
			req.DurationMinutes = 60
		}
		id := cal.AddEvent(req.Summary, start, start.Add(time.Duration(req.DurationMinutes)*time.Minute))
		respondJSON(w, http.StatusCreated, map[string]string{"id": id})
	})

	mux.HandleFunc("POST /api/test/fail", func(w http.ResponseWriter, r *http.Request) {
		var req failRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		cal.FailList(optionalError(req.List))
		cal.FailInsert(optionalError(req.Insert))
		respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	})
}

func optionalError(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
