package migrations

import (
	"database/sql"
)

func init() {
	Register(Migration{
		Version: 1,
		Name:    "request_traces",
		Up:      requestTraces,
	})
}

func requestTraces(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS request_traces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL UNIQUE,
			sender_id TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL CHECK(category IN ('APPOINTMENT', 'GENERAL', 'UNRELATED')),
			language TEXT NOT NULL,
			path TEXT NOT NULL,
			event_created BOOLEAN NOT NULL DEFAULT 0,
			event_id TEXT,
			outcome TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_request_traces_created ON request_traces(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_request_traces_outcome ON request_traces(outcome)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
