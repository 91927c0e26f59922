// Package history persists deletion sessions and their outcomes in SQLite
// so that forced and unrestricted runs can be audited afterwards.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lakshaymaurya-felt/purewipe/internal/ladder"
)

// Store is the history database.
type Store struct {
	db *sql.DB
}

// SessionInfo describes a run as recorded when it starts.
type SessionInfo struct {
	Force        bool
	Unrestricted bool
	Elevated     bool
	Host         string
	Targets      int
}

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Force        bool
	Unrestricted bool
	Elevated     bool
	Host         string
	Targets      int
	Removed      int
	Deferred     int
	Failed       int
	FreedBytes   int64
	Canceled     bool
}

// OutcomeRecord is one row of the outcomes table.
type OutcomeRecord struct {
	SessionID string
	Timestamp time.Time
	Path      string
	IsDir     bool
	Status    string
	Strategy  string
	Reason    string
	Size      int64
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", path, err)
	}
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err = s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		force_mode INTEGER NOT NULL,
		unrestricted_mode INTEGER NOT NULL,
		elevated INTEGER NOT NULL,
		host TEXT,
		targets INTEGER NOT NULL,
		removed_count INTEGER NOT NULL DEFAULT 0,
		deferred_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		freed_bytes INTEGER NOT NULL DEFAULT 0,
		canceled INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		timestamp DATETIME NOT NULL,
		path TEXT NOT NULL,
		is_dir INTEGER NOT NULL,
		status TEXT NOT NULL,
		strategy TEXT,
		reason TEXT,
		size INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_session ON outcomes(session_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Session records the outcomes of one run.
type Session struct {
	store *Store
	id    string
}

// BeginSession inserts a new session row.
func (s *Store) BeginSession(info SessionInfo, started time.Time) (*Session, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
	INSERT INTO sessions (id, started_at, force_mode, unrestricted_mode, elevated, host, targets)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, started, info.Force, info.Unrestricted, info.Elevated, info.Host, info.Targets)
	if err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}
	return &Session{store: s, id: id}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// RecordOutcome stores one outcome.
func (s *Session) RecordOutcome(out ladder.Outcome, at time.Time) error {
	_, err := s.store.db.Exec(`
	INSERT INTO outcomes (session_id, timestamp, path, is_dir, status, strategy, reason, size)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.id, at, out.Target, out.IsDir, Status(out), string(out.Strategy), out.Reason(), out.Bytes)
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", out.Target, err)
	}
	return nil
}

// Totals are the final counters of a session.
type Totals struct {
	Removed    int
	Deferred   int
	Failed     int
	FreedBytes int64
	Canceled   bool
}

// Finish stamps the end of the session.
func (s *Session) Finish(t Totals, at time.Time) error {
	_, err := s.store.db.Exec(`
	UPDATE sessions SET finished_at = ?, removed_count = ?, deferred_count = ?, failed_count = ?, freed_bytes = ?, canceled = ?
	WHERE id = ?`,
		at, t.Removed, t.Deferred, t.Failed, t.FreedBytes, t.Canceled, s.id)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	return nil
}

// Status classifies an outcome as "removed", "deferred" or "failed".
func Status(out ladder.Outcome) string {
	switch {
	case out.Succeeded:
		return "removed"
	case out.DeferredToReboot:
		return "deferred"
	default:
		return "failed"
	}
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
	SELECT id, started_at, finished_at, force_mode, unrestricted_mode, elevated, host, targets,
	       removed_count, deferred_count, failed_count, freed_bytes, canceled
	FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var finished sql.NullTime
		var host sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Force, &r.Unrestricted, &r.Elevated,
			&host, &r.Targets, &r.Removed, &r.Deferred, &r.Failed, &r.FreedBytes, &r.Canceled); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		r.Host = host.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Outcomes returns the outcomes of one session in attempt order.
func (s *Store) Outcomes(sessionID string) ([]OutcomeRecord, error) {
	rows, err := s.db.Query(`
	SELECT session_id, timestamp, path, is_dir, status, strategy, reason, size
	FROM outcomes WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var r OutcomeRecord
		var strategy, reason sql.NullString
		if err := rows.Scan(&r.SessionID, &r.Timestamp, &r.Path, &r.IsDir, &r.Status,
			&strategy, &reason, &r.Size); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		r.Strategy, r.Reason = strategy.String, reason.String
		out = append(out, r)
	}
	return out, rows.Err()
}
