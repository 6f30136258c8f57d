package agentdeck

import "time"

// CLIType identifies which external agent CLI a session runs.
type CLIType string

const (
	// CLIClaude is the Claude Code CLI.
	CLIClaude CLIType = "claude"

	// CLICodex is the Codex CLI.
	CLICodex CLIType = "codex"
)

// SessionState is the lifecycle state of a session.
//
// Transitions: queued → running → one of the four terminal states.
// No transition skips queued; terminal sessions are never deleted, only
// marked, for audit purposes.
type SessionState string

const (
	SessionQueued    SessionState = "queued"
	SessionRunning   SessionState = "running"
	SessionCompleted SessionState = "completed"
	SessionCancelled SessionState = "cancelled"
	SessionCrashed   SessionState = "crashed"
	SessionTimedOut  SessionState = "timed_out"
)

// Terminal reports whether s is one of the four terminal states.
func (s SessionState) Terminal() bool {
	switch s {
	case SessionCompleted, SessionCancelled, SessionCrashed, SessionTimedOut:
		return true
	}
	return false
}

// ProjectStatus is the externally visible status of a project.
type ProjectStatus string

const (
	ProjectIdle    ProjectStatus = "idle"
	ProjectQueued  ProjectStatus = "queued"
	ProjectRunning ProjectStatus = "running"
	ProjectStopped ProjectStatus = "stopped"
	ProjectError   ProjectStatus = "error"
)

// Session is the minimal session state passed to adapters.
//
// Session is a value type; it carries identity and configuration but
// no runtime state (no mutexes, no channels, no process handles).
// The orchestrator owns the richer runtime state.
type Session struct {
	// ID uniquely identifies the session.
	ID string `json:"id"`

	// ProjectID identifies the owning project.
	ProjectID string `json:"project_id"`

	// CLIType selects the adapter backend.
	CLIType CLIType `json:"cli_type"`

	// CWD is the working directory for the agent process.
	CWD string `json:"cwd"`

	// Model is the canonical model identifier, resolved through the
	// model catalog before the adapter starts.
	Model string `json:"model,omitempty"`

	// Prompt is the initial prompt for the session.
	Prompt string `json:"prompt,omitempty"`

	// Options holds backend-specific key-value configuration.
	Options map[string]string `json:"options,omitempty"`
}

// Clone returns a deep copy of s, cloning the Options map.
func (s Session) Clone() Session {
	out := s
	if s.Options != nil {
		out.Options = make(map[string]string, len(s.Options))
		for k, v := range s.Options {
			out.Options[k] = v
		}
	}
	return out
}

// SessionRecord is the persisted view of a session.
type SessionRecord struct {
	ID         string       `json:"id"`
	ProjectID  string       `json:"project_id"`
	CLIType    CLIType      `json:"cli_type"`
	State      SessionState `json:"state"`
	ExitReason ExitReason   `json:"exit_reason,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	EndedAt    *time.Time   `json:"ended_at,omitempty"`
}
