package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat matches sqlite's datetime('now') output so Go-side and
// SQL-side timestamps sort together.
const timeFormat = "2006-01-02 15:04:05"

// DB wraps a SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// FormatTime renders a timestamp in the canonical store format (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// Stats summarizes the state of the incident store.
type Stats struct {
	TotalIncidents    int
	PendingIncidents  int
	AnalyzedIncidents int
	FailedIncidents   int
	HighRisk          int
	TotalRuns         int
}

// GetStats returns counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM incidents", &s.TotalIncidents},
		{"SELECT COUNT(*) FROM incidents WHERE status = 'pending'", &s.PendingIncidents},
		{"SELECT COUNT(*) FROM incidents WHERE status = 'analyzed'", &s.AnalyzedIncidents},
		{"SELECT COUNT(*) FROM incidents WHERE status = 'failed'", &s.FailedIncidents},
		{"SELECT COUNT(*) FROM incidents WHERE risk_score >= 70", &s.HighRisk},
		{"SELECT COUNT(*) FROM ingestion_runs", &s.TotalRuns},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
