package database

import "database/sql"

// Migration is a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is applied in order. Append new steps with increasing versions.
var migrations = []Migration{
	{
		Version:     1,
		Description: "snapshots",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    generated_at TEXT NOT NULL,
    total_articles INTEGER NOT NULL DEFAULT 0,
    avg_factuality REAL NOT NULL DEFAULT 0,
    personal_score TEXT NOT NULL DEFAULT 'N/A',
    streak INTEGER NOT NULL DEFAULT 0,
    summary_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_generated ON snapshots(generated_at);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "link previews",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS link_previews (
    url TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    excerpt TEXT NOT NULL DEFAULT '',
    site_name TEXT NOT NULL DEFAULT '',
    fetched_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
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
