package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS incidents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT,
    content TEXT,
    url TEXT UNIQUE NOT NULL,
    source TEXT NOT NULL,
    published_at TEXT NOT NULL,
    discovered_at TEXT DEFAULT (datetime('now')),
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK(status IN ('pending', 'analyzing', 'analyzed', 'failed')),
    fingerprint TEXT UNIQUE NOT NULL,
    severity TEXT CHECK(severity IN ('Low', 'Medium', 'High') OR severity IS NULL),
    attack_type TEXT,
    risk_score INTEGER,
    analysis TEXT,
    content_fetched INTEGER DEFAULT 0,
    region TEXT
);

CREATE TABLE IF NOT EXISTS ingestion_runs (
    id TEXT PRIMARY KEY,
    source TEXT,
    started_at TEXT DEFAULT (datetime('now')),
    completed_at TEXT,
    items_fetched INTEGER DEFAULT 0,
    items_new INTEGER DEFAULT 0,
    items_duplicate INTEGER DEFAULT 0,
    items_failed INTEGER DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'running'
        CHECK(status IN ('running', 'completed', 'failed')),
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_incidents_published ON incidents(published_at);
CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
CREATE INDEX IF NOT EXISTS idx_incidents_url ON incidents(url);
CREATE INDEX IF NOT EXISTS idx_incidents_fingerprint ON incidents(fingerprint);
CREATE INDEX IF NOT EXISTS idx_runs_status ON ingestion_runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started ON ingestion_runs(started_at);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "full-text search over incidents",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE VIRTUAL TABLE IF NOT EXISTS incidents_fts USING fts5(
    title, description, attack_type, analysis,
    content='incidents', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS incidents_fts_insert AFTER INSERT ON incidents BEGIN
    INSERT INTO incidents_fts(rowid, title, description, attack_type, analysis)
    VALUES (new.id, new.title, coalesce(new.description, ''),
            coalesce(new.attack_type, ''), coalesce(new.analysis, ''));
END;

CREATE TRIGGER IF NOT EXISTS incidents_fts_delete AFTER DELETE ON incidents BEGIN
    INSERT INTO incidents_fts(incidents_fts, rowid, title, description, attack_type, analysis)
    VALUES ('delete', old.id, old.title, coalesce(old.description, ''),
            coalesce(old.attack_type, ''), coalesce(old.analysis, ''));
END;

CREATE TRIGGER IF NOT EXISTS incidents_fts_update AFTER UPDATE ON incidents BEGIN
    INSERT INTO incidents_fts(incidents_fts, rowid, title, description, attack_type, analysis)
    VALUES ('delete', old.id, old.title, coalesce(old.description, ''),
            coalesce(old.attack_type, ''), coalesce(old.analysis, ''));
    INSERT INTO incidents_fts(rowid, title, description, attack_type, analysis)
    VALUES (new.id, new.title, coalesce(new.description, ''),
            coalesce(new.attack_type, ''), coalesce(new.analysis, ''));
END;
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
