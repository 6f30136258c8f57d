// Package store provides SQLite persistence for agentdeck.
//
// The store owns the relational record of projects, requests, sessions,
// messages, and tool usage. Each exported operation is a single statement
// or transaction and is atomic with respect to concurrent reads of the
// same row. The recorder consumes this package through its Recorder
// interface; the server reads history through the List methods.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dmora/agentdeck"
)

// Store wraps a SQLite database handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies the
// schema. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// Keep sqlite responsive under contention.
	pragmas := []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// --- Projects ---

// UpsertProject ensures a project row exists and updates its status.
func (s *Store) UpsertProject(ctx context.Context, projectID string, status agentdeck.ProjectStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, status, updated_at_ns) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at_ns = excluded.updated_at_ns`,
		projectID, string(status), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("store: upsert project: %w", err)
	}
	return nil
}

// SetActiveSession records (or clears, with empty sessionID) the project's
// active session.
func (s *Store) SetActiveSession(ctx context.Context, projectID, sessionID string) error {
	var active any
	if sessionID != "" {
		active = sessionID
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE projects SET active_session_id = ?, updated_at_ns = ? WHERE id = ?`,
		active, time.Now().UnixNano(), projectID)
	if err != nil {
		return fmt.Errorf("store: set active session: %w", err)
	}
	return nil
}

// --- Requests ---

// CreateRequest persists a newly enqueued request.
func (s *Store) CreateRequest(ctx context.Context, req agentdeck.Request) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, project_id, prompt, mode, cli_type, model, status, enqueued_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ProjectID, req.Prompt, string(req.Mode), string(req.CLIType),
		req.Model, string(req.Status), req.EnqueuedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store: create request: %w", err)
	}
	return nil
}

// UpdateRequestStatus moves a request to the given status, optionally
// linking the session it dispatched into.
func (s *Store) UpdateRequestStatus(ctx context.Context, requestID string, status agentdeck.RequestStatus, sessionID string) error {
	var session any
	if sessionID != "" {
		session = sessionID
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests SET status = ?, session_id = COALESCE(?, session_id) WHERE id = ?`,
		string(status), session, requestID)
	if err != nil {
		return fmt.Errorf("store: update request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return agentdeck.ErrRequestNotFound
	}
	return nil
}

// --- Sessions ---

// CreateSession persists a session in the queued state.
func (s *Store) CreateSession(ctx context.Context, rec agentdeck.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, project_id, cli_type, state, started_at_ns)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectID, string(rec.CLIType), string(rec.State), rec.StartedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// UpdateSessionState moves a session to the given state. Terminal states
// stamp ended_at and the exit reason.
func (s *Store) UpdateSessionState(ctx context.Context, sessionID string, state agentdeck.SessionState, reason agentdeck.ExitReason) error {
	var (
		res sql.Result
		err error
	)
	if state.Terminal() {
		res, err = s.db.ExecContext(ctx, `
			UPDATE sessions SET state = ?, exit_reason = ?, ended_at_ns = ? WHERE id = ?`,
			string(state), string(reason), time.Now().UnixNano(), sessionID)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE sessions SET state = ? WHERE id = ?`,
			string(state), sessionID)
	}
	if err != nil {
		return fmt.Errorf("store: update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return agentdeck.ErrSessionNotFound
	}
	return nil
}

// GetSession returns one session record.
func (s *Store) GetSession(ctx context.Context, sessionID string) (agentdeck.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, cli_type, state, COALESCE(exit_reason, ''), started_at_ns, ended_at_ns
		FROM sessions WHERE id = ?`, sessionID)

	var rec agentdeck.SessionRecord
	var cliType, state, reason string
	var startedNS int64
	var endedNS sql.NullInt64
	if err := row.Scan(&rec.ID, &rec.ProjectID, &cliType, &state, &reason, &startedNS, &endedNS); err != nil {
		if err == sql.ErrNoRows {
			return agentdeck.SessionRecord{}, agentdeck.ErrSessionNotFound
		}
		return agentdeck.SessionRecord{}, fmt.Errorf("store: get session: %w", err)
	}
	rec.CLIType = agentdeck.CLIType(cliType)
	rec.State = agentdeck.SessionState(state)
	rec.ExitReason = agentdeck.ExitReason(reason)
	rec.StartedAt = time.Unix(0, startedNS)
	if endedNS.Valid {
		t := time.Unix(0, endedNS.Int64)
		rec.EndedAt = &t
	}
	return rec, nil
}
