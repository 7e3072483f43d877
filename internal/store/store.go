// Package store persists the chunk artifact index and the event trigger
// audit log in sqlite.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kevin-liao/streamscout/internal/media"
)

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite only supports one writer at a time; limit the pool to one
	// connection to avoid SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunk_artifacts (
			source_id TEXT NOT NULL,
			start_offset REAL NOT NULL,
			duration REAL NOT NULL,
			media_path TEXT NOT NULL,
			audio_path TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT (datetime('now', 'localtime')),
			PRIMARY KEY (source_id, start_offset, duration)
		);
		CREATE TABLE IF NOT EXISTS event_triggers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT (datetime('now', 'localtime')),
			source_id TEXT NOT NULL,
			event TEXT NOT NULL,
			score REAL NOT NULL,
			detail TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_triggers_ts ON event_triggers(ts DESC);
	`)
	return err
}

// Lookup implements media.ArtifactIndex.
func (s *Store) Lookup(sourceID string, startOffset, duration float64) (media.Artifact, bool, error) {
	var art media.Artifact
	err := s.db.QueryRow(
		"SELECT media_path, audio_path FROM chunk_artifacts WHERE source_id = ? AND start_offset = ? AND duration = ?",
		sourceID, startOffset, duration,
	).Scan(&art.MediaPath, &art.AudioPath)
	if err == sql.ErrNoRows {
		return media.Artifact{}, false, nil
	}
	if err != nil {
		return media.Artifact{}, false, fmt.Errorf("lookup artifact: %w", err)
	}
	return art, true, nil
}

// Record implements media.ArtifactIndex.
func (s *Store) Record(sourceID string, startOffset, duration float64, art media.Artifact) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO chunk_artifacts (source_id, start_offset, duration, media_path, audio_path) VALUES (?, ?, ?, ?, ?)",
		sourceID, startOffset, duration, art.MediaPath, art.AudioPath,
	)
	return err
}

// DeleteArtifacts removes index rows and their files for one source, or
// for every source when sourceID is empty. Returns the number of chunks
// evicted.
func (s *Store) DeleteArtifacts(sourceID string) (int, error) {
	query := "SELECT source_id, media_path, audio_path FROM chunk_artifacts"
	args := []any{}
	if sourceID != "" {
		query += " WHERE source_id = ?"
		args = append(args, sourceID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return 0, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var src, mediaPath, audioPath string
		if err := rows.Scan(&src, &mediaPath, &audioPath); err != nil {
			continue
		}
		for _, path := range []string{mediaPath, audioPath} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				slog.Warn("remove artifact failed", "path", path, "err", err)
			}
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("scan artifacts: %w", err)
	}

	del := "DELETE FROM chunk_artifacts"
	if sourceID != "" {
		del += " WHERE source_id = ?"
	}
	if _, err := s.db.Exec(del, args...); err != nil {
		return n, fmt.Errorf("delete artifacts: %w", err)
	}
	return n, nil
}

// Trigger is one recorded threshold crossing.
type Trigger struct {
	ID       int64   `json:"id"`
	TS       string  `json:"ts"`
	SourceID string  `json:"source_id"`
	Event    string  `json:"event"`
	Score    float64 `json:"score"`
	Detail   string  `json:"detail"`
}

// RecordTrigger appends one threshold crossing to the audit log.
func (s *Store) RecordTrigger(sourceID, event string, score float64, detail string) error {
	_, err := s.db.Exec(
		"INSERT INTO event_triggers (source_id, event, score, detail) VALUES (?, ?, ?, ?)",
		sourceID, event, score, detail,
	)
	return err
}

// RecentTriggers returns the latest recorded triggers, newest first.
func (s *Store) RecentTriggers(limit int) ([]Trigger, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		"SELECT id, ts, source_id, event, score, COALESCE(detail, '') FROM event_triggers ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	var triggers []Trigger
	for rows.Next() {
		var tr Trigger
		if err := rows.Scan(&tr.ID, &tr.TS, &tr.SourceID, &tr.Event, &tr.Score, &tr.Detail); err != nil {
			continue
		}
		triggers = append(triggers, tr)
	}
	return triggers, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
