// Package store provides SQLite-backed persistence for call records, alert
// rules, and alert events.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

// timeLayout is RFC 3339 with a fixed-width fraction. RFC3339Nano trims
// trailing fractional zeros, so whole-second values sort after sub-second
// ones under the TEXT comparison SQLite applies to timestamp columns;
// padding keeps string order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// storeErr keeps ErrStoreUnavailable matchable while preserving the
// driver's diagnostic.
func storeErr(op, msg string, err error) error {
	return utils.NewAppError(op, msg, fmt.Errorf("%w: %w", utils.ErrStoreUnavailable, err))
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS call_records (
    id                 TEXT PRIMARY KEY,
    user_id            TEXT,
    model              TEXT NOT NULL,
    prompt_tokens      INTEGER NOT NULL,
    completion_tokens  INTEGER NOT NULL,
    total_tokens       INTEGER NOT NULL,
    latency_ms         INTEGER NOT NULL,
    cost_estimate      TEXT NOT NULL,
    status             TEXT NOT NULL,
    error_type         TEXT,
    error_message      TEXT,
    timestamp          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alert_rules (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL,
    description        TEXT,
    kind               TEXT NOT NULL,
    threshold          REAL NOT NULL,
    active             INTEGER NOT NULL DEFAULT 1,
    target             TEXT,
    created_at         TEXT NOT NULL,
    updated_at         TEXT NOT NULL,
    last_triggered_at  TEXT
);

CREATE TABLE IF NOT EXISTS alert_events (
    id                 TEXT PRIMARY KEY,
    rule_id            TEXT NOT NULL,
    metric_value       REAL NOT NULL,
    message            TEXT NOT NULL,
    triggered_at       TEXT NOT NULL,
    updated_at         TEXT NOT NULL,
    acknowledged       INTEGER NOT NULL DEFAULT 0,
    acknowledged_at    TEXT
);

CREATE INDEX IF NOT EXISTS idx_call_records_timestamp ON call_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_call_records_model ON call_records(model);
CREATE INDEX IF NOT EXISTS idx_alert_events_rule ON alert_events(rule_id, acknowledged);
`

// Store wraps the SQLite database handle.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given path and ensures the
// schema exists.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
