package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TobiSchelling/facthistory/internal/history"
)

// InsertSnapshot stores s and returns the new row ID.
func (db *DB) InsertSnapshot(s *history.Summary) (int64, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return 0, fmt.Errorf("encoding snapshot: %w", err)
	}
	result, err := db.conn.Exec(
		`INSERT INTO snapshots (generated_at, total_articles, avg_factuality, personal_score, streak, summary_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.GeneratedAt.UTC().Format(time.RFC3339Nano), s.TotalArticles, s.AvgFactuality,
		s.PersonalScore, s.Streak, string(data),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// LatestSnapshot returns the most recently generated snapshot with its
// decoded summary, or nil if none exist.
func (db *DB) LatestSnapshot() (*Snapshot, error) {
	var (
		snap Snapshot
		data string
	)
	err := db.conn.QueryRow(
		`SELECT id, generated_at, total_articles, avg_factuality, personal_score, streak, summary_json
		FROM snapshots ORDER BY generated_at DESC, id DESC LIMIT 1`,
	).Scan(&snap.ID, &snap.GeneratedAt, &snap.TotalArticles, &snap.AvgFactuality,
		&snap.PersonalScore, &snap.Streak, &data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s history.Summary
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot %d: %w", snap.ID, err)
	}
	snap.Summary = &s
	return &snap, nil
}

// ListSnapshots returns up to limit snapshots, newest first, without their
// summaries.
func (db *DB) ListSnapshots(limit int) ([]Snapshot, error) {
	rows, err := db.conn.Query(
		`SELECT id, generated_at, total_articles, avg_factuality, personal_score, streak
		FROM snapshots ORDER BY generated_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.GeneratedAt, &s.TotalArticles, &s.AvgFactuality, &s.PersonalScore, &s.Streak); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// PruneSnapshots deletes all but the newest keep snapshots and returns the
// number removed. keep <= 0 disables pruning.
func (db *DB) PruneSnapshots(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	result, err := db.conn.Exec(
		`DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY generated_at DESC, id DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
