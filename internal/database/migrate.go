package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
)

// ErrSchemaTooNew is returned when the database was written by a newer build.
var ErrSchemaTooNew = errors.New("database schema is newer than this build supports")

func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func setSchemaVersion(conn *sql.DB, v int) error {
	// PRAGMA does not accept bound parameters.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		return fmt.Errorf("setting schema version %d: %w", v, err)
	}
	return nil
}

// hasTable reports whether the named table exists.
func hasTable(conn *sql.DB, name string) (bool, error) {
	var n int
	err := conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("looking up table %s: %w", name, err)
	}
	return n > 0, nil
}

// baseline returns the effective version of conn. A snapshots table with
// user_version 0 predates versioning and already matches migration 1.
func baseline(conn *sql.DB) (int, error) {
	v, err := schemaVersion(conn)
	if err != nil || v != 0 {
		return v, err
	}
	legacy, err := hasTable(conn, "snapshots")
	if err != nil || !legacy {
		return 0, err
	}
	log.Printf("Adopting unversioned snapshot database as version 1")
	return 1, setSchemaVersion(conn, 1)
}

// migrate applies every pending migration in order.
func migrate(conn *sql.DB) error {
	current, err := baseline(conn)
	if err != nil {
		return err
	}
	latest := latestVersion()
	if current > latest {
		return fmt.Errorf("%w: version %d, supported %d", ErrSchemaTooNew, current, latest)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(conn *sql.DB, m Migration) error {
	log.Printf("Applying migration %d: %s", m.Version, m.Description)

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: committing: %w", m.Version, err)
	}
	// user_version is set outside the transaction; the DDL is idempotent.
	return setSchemaVersion(conn, m.Version)
}
