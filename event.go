package agentdeck

import (
	"encoding/json"
	"time"
)

// EventKind identifies the kind of event from an agent process.
type EventKind string

const (
	// EventDelta is an incremental fragment of assistant text.
	EventDelta EventKind = "delta"

	// EventToolStart indicates the agent began a tool invocation.
	EventToolStart EventKind = "tool_start"

	// EventToolEnd carries the result of the most recent unresolved
	// tool invocation. Pairing with EventToolStart is by emission order;
	// adapters do not emit correlation identifiers.
	EventToolEnd EventKind = "tool_end"

	// EventDone signals the end of the stream with a normal exit reason.
	// No events follow a done event on the same handle.
	EventDone EventKind = "done"

	// EventError indicates an error from the agent or runtime. Adapters
	// synthesize an error event for abnormal process exits and malformed
	// output lines; a malformed line is never silently dropped.
	EventError EventKind = "error"
)

// Event is a normalized output event from an agent process.
//
// Adapters translate backend-specific wire formats into Events at the
// boundary; downstream components (recorder, broadcaster) branch only on
// Kind.
type Event struct {
	// Kind identifies the event variant.
	Kind EventKind `json:"kind"`

	// Text is the delta fragment (EventDelta) or error message (EventError).
	Text string `json:"text,omitempty"`

	// Tool carries invocation details for EventToolStart and EventToolEnd.
	Tool *ToolCall `json:"tool,omitempty"`

	// ExitReason is set on EventDone.
	ExitReason ExitReason `json:"exit_reason,omitempty"`

	// Raw is the original unparsed JSON line from the backend.
	// Populated for pass-through and audit logging.
	Raw json.RawMessage `json:"raw,omitempty"`

	// Timestamp is when the event was produced.
	Timestamp time.Time `json:"timestamp"`
}

// ToolCall describes one discrete tool invocation by the agent.
type ToolCall struct {
	// Name is the tool identifier (e.g., "write", "bash").
	Name string `json:"name"`

	// Input is the tool's input parameters as raw JSON.
	Input json.RawMessage `json:"input,omitempty"`

	// Output is the tool's result as raw JSON. Nil until resolved.
	Output json.RawMessage `json:"output,omitempty"`

	// Duration is how long the invocation took. Zero until resolved.
	Duration time.Duration `json:"duration,omitempty"`
}

// ExitReason records why a session reached a terminal state.
type ExitReason string

const (
	// ExitCompleted is a normal end of turn.
	ExitCompleted ExitReason = "completed"

	// ExitCancelled is a user-initiated stop.
	ExitCancelled ExitReason = "cancelled"

	// ExitCrashed is an abnormal process exit or malformed stream.
	ExitCrashed ExitReason = "crashed"

	// ExitTimedOut is an inactivity-window expiry.
	ExitTimedOut ExitReason = "timeout"

	// ExitRecordingFailed distinguishes "we failed to record the agent's
	// work" from "the agent failed". The session state is still crashed;
	// the reason lets operators tell the two apart.
	ExitRecordingFailed ExitReason = "recording_failed"
)
