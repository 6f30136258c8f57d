package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmora/agentdeck"
)

// ErrMessageFinalized indicates a write against a message whose content
// has been frozen.
var ErrMessageFinalized = errors.New("store: message finalized")

// ErrNoUnresolvedToolUsage indicates a resolve attempt with no open tool
// usage for the session.
var ErrNoUnresolvedToolUsage = errors.New("store: no unresolved tool usage")

// CreateMessage persists a new, unfinalized message.
func (s *Store) CreateMessage(ctx context.Context, msg agentdeck.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, project_id, role, content, finalized, created_at_ns)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		msg.ID, msg.SessionID, msg.ProjectID, string(msg.Role), msg.Content, msg.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store: create message: %w", err)
	}
	return nil
}

// SetMessageContent replaces an unfinalized message's content with a
// longer snapshot. The recorder accumulates deltas in order and writes
// full-content snapshots, so each write strictly extends the last; the
// finalized guard keeps frozen content immutable.
func (s *Store) SetMessageContent(ctx context.Context, messageID, content string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = ? WHERE id = ? AND finalized = 0`,
		content, messageID)
	if err != nil {
		return fmt.Errorf("store: set message content: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageFinalized
	}
	return nil
}

// FinalizeMessage writes the final content and freezes the message.
// Finalizing an already-final message is a no-op error (ErrMessageFinalized).
func (s *Store) FinalizeMessage(ctx context.Context, messageID, content string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = ?, finalized = 1 WHERE id = ? AND finalized = 0`,
		content, messageID)
	if err != nil {
		return fmt.Errorf("store: finalize message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageFinalized
	}
	return nil
}

// CreateToolUsage persists a new unresolved tool usage linked to a message.
// The referenced message must exist (FK enforced).
func (s *Store) CreateToolUsage(ctx context.Context, tu agentdeck.ToolUsage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_usages (id, message_id, session_id, tool_name, input, seq, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tu.ID, tu.MessageID, tu.SessionID, tu.ToolName, tu.Input, tu.Seq, tu.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store: create tool usage: %w", err)
	}
	return nil
}

// ResolveToolUsage fills output and duration on the unresolved tool
// usage with the lowest seq for the session (strict emission-order
// pairing, independent of wall-clock timestamps).
func (s *Store) ResolveToolUsage(ctx context.Context, sessionID, output string, duration time.Duration) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tool_usages SET output = ?, duration_ms = ?
		WHERE id = (
			SELECT id FROM tool_usages
			WHERE session_id = ? AND output IS NULL
			ORDER BY seq LIMIT 1
		)`,
		output, duration.Milliseconds(), sessionID)
	if err != nil {
		return fmt.Errorf("store: resolve tool usage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoUnresolvedToolUsage
	}
	return nil
}

// ListMessages returns a session's messages in creation order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]agentdeck.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, project_id, role, content, finalized, created_at_ns
		FROM messages WHERE session_id = ? ORDER BY created_at_ns, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListProjectMessages returns all of a project's messages in creation
// order, across sessions. Used to reconstruct history on reconnect.
func (s *Store) ListProjectMessages(ctx context.Context, projectID string) ([]agentdeck.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, project_id, role, content, finalized, created_at_ns
		FROM messages WHERE project_id = ? ORDER BY created_at_ns, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list project messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListToolUsages returns a session's tool usages in emission order.
func (s *Store) ListToolUsages(ctx context.Context, sessionID string) ([]agentdeck.ToolUsage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, session_id, tool_name, COALESCE(input, ''), seq, output, duration_ms, created_at_ns
		FROM tool_usages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list tool usages: %w", err)
	}
	defer rows.Close()

	var out []agentdeck.ToolUsage
	for rows.Next() {
		var tu agentdeck.ToolUsage
		var output sql.NullString
		var durationMS sql.NullInt64
		var createdNS int64
		if err := rows.Scan(&tu.ID, &tu.MessageID, &tu.SessionID, &tu.ToolName, &tu.Input, &tu.Seq, &output, &durationMS, &createdNS); err != nil {
			return nil, fmt.Errorf("store: scan tool usage: %w", err)
		}
		if output.Valid {
			tu.Output = &output.String
		}
		if durationMS.Valid {
			tu.DurationMS = &durationMS.Int64
		}
		tu.CreatedAt = time.Unix(0, createdNS)
		out = append(out, tu)
	}
	return out, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]agentdeck.Message, error) {
	var out []agentdeck.Message
	for rows.Next() {
		var msg agentdeck.Message
		var role string
		var finalized int
		var createdNS int64
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.ProjectID, &role, &msg.Content, &finalized, &createdNS); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		msg.Role = agentdeck.MessageRole(role)
		msg.Finalized = finalized != 0
		msg.CreatedAt = time.Unix(0, createdNS)
		out = append(out, msg)
	}
	return out, rows.Err()
}
