package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RequestTrace is one handled message, without the message text.
type RequestTrace struct {
	ID           int64         `json:"id"`
	RequestID    string        `json:"request_id"`
	SenderID     string        `json:"sender_id,omitempty"`
	Category     string        `json:"category"`
	Language     string        `json:"language"`
	Path         []string      `json:"path"`
	EventCreated bool          `json:"event_created"`
	EventID      string        `json:"event_id,omitempty"`
	Outcome      string        `json:"outcome"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (d *DB) CreateRequestTrace(ctx context.Context, trace RequestTrace) error {
	pathJSON := "[]"
	if len(trace.Path) > 0 {
		if b, err := json.Marshal(trace.Path); err == nil {
			pathJSON = string(b)
		}
	}

	var eventID sql.NullString
	if trace.EventID != "" {
		eventID = sql.NullString{String: trace.EventID, Valid: true}
	}

	_, err := d.ExecContext(ctx, `
		INSERT INTO request_traces (
			request_id, sender_id, category, language, path,
			event_created, event_id, outcome, error_kind, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		trace.RequestID,
		trace.SenderID,
		trace.Category,
		trace.Language,
		pathJSON,
		trace.EventCreated,
		eventID,
		trace.Outcome,
		trace.ErrorKind,
		trace.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to create request trace: %w", err)
	}
	return nil
}

// ListRecentRequestTraces returns up to limit traces, newest first.
func (d *DB) ListRecentRequestTraces(ctx context.Context, limit int) ([]RequestTrace, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.QueryContext(ctx, `
		SELECT id, request_id, sender_id, category, language, path,
		       event_created, event_id, outcome, error_kind, duration_ms, created_at
		FROM request_traces
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list request traces: %w", err)
	}
	defer rows.Close()

	var traces []RequestTrace
	for rows.Next() {
		var (
			trace      RequestTrace
			pathJSON   string
			eventID    sql.NullString
			durationMS int64
		)
		if err := rows.Scan(
			&trace.ID,
			&trace.RequestID,
			&trace.SenderID,
			&trace.Category,
			&trace.Language,
			&pathJSON,
			&trace.EventCreated,
			&eventID,
			&trace.Outcome,
			&trace.ErrorKind,
			&durationMS,
			&trace.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan request trace: %w", err)
		}
		if err := json.Unmarshal([]byte(pathJSON), &trace.Path); err != nil {
			return nil, fmt.Errorf("failed to decode trace path: %w", err)
		}
		trace.EventID = eventID.String
		trace.Duration = time.Duration(durationMS) * time.Millisecond
		traces = append(traces, trace)
	}
	return traces, rows.Err()
}

// CountRequestTracesByOutcome groups all traces by outcome.
func (d *DB) CountRequestTracesByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := d.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM request_traces GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count request traces: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan trace count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
