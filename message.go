package agentdeck

import "time"

// MessageRole identifies who produced a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is a persisted message within a session.
//
// Content is append-only while Finalized is false; once finalized the
// content is immutable.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	ProjectID string      `json:"project_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Finalized bool        `json:"finalized"`
	CreatedAt time.Time   `json:"created_at"`
}

// ToolUsage is a persisted record of one tool invocation, linked to the
// message that was streaming when the tool started.
type ToolUsage struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
	ToolName  string `json:"tool_name"`
	Input     string `json:"input,omitempty"`

	// Seq is the usage's position in the session's emission order.
	// Resolution pairs tool_end events with the lowest unresolved Seq;
	// wall-clock timestamps play no part in pairing.
	Seq int64 `json:"seq"`

	// Output and DurationMS are nil until the tool call resolves.
	Output     *string `json:"output,omitempty"`
	DurationMS *int64  `json:"duration_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
