package migrations

import (
	"database/sql"
)

func init() {
	Register(Migration{
		Version: 2,
		Name:    "trace_error_kind",
		Up:      traceErrorKind,
	})
}

// traceErrorKind records which recovered failure, if any, shaped the reply.
func traceErrorKind(db *sql.DB) error {
	return AddColumnIfNotExists(db, "request_traces", "error_kind", "TEXT NOT NULL DEFAULT ''")
}
