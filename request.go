package agentdeck

import "time"

// RequestMode selects how the agent session is driven.
type RequestMode string

const (
	// ModeAct runs the agent with edit permissions.
	ModeAct RequestMode = "act"

	// ModeChat runs the agent in a conversational streaming session.
	// Backends without a streaming input path treat chat as act.
	ModeChat RequestMode = "chat"
)

// RequestStatus is the lifecycle status of a queued request.
type RequestStatus string

const (
	// RequestPending is enqueued, not yet admitted.
	RequestPending RequestStatus = "pending"

	// RequestDispatched has been admitted; a session is starting or running.
	RequestDispatched RequestStatus = "dispatched"

	// RequestCompleted finished (its session reached a terminal state).
	RequestCompleted RequestStatus = "completed"

	// RequestCancelled was removed before dispatch, or its session was
	// stopped by the user.
	RequestCancelled RequestStatus = "cancelled"
)

// Attachment is an auxiliary payload attached to a request.
type Attachment struct {
	// Name is the display name (e.g., a file name).
	Name string `json:"name"`

	// MediaType is the MIME type of Content.
	MediaType string `json:"media_type,omitempty"`

	// Content is the attachment body.
	Content []byte `json:"content,omitempty"`
}

// Request is one queued unit of user work for a project.
//
// Requests for a project dispatch in strict enqueue order; a later request
// never starts before an earlier one has left RequestDispatched.
type Request struct {
	// ID uniquely identifies the request.
	ID string `json:"id"`

	// ProjectID identifies the owning project.
	ProjectID string `json:"project_id"`

	// Prompt is the user's prompt payload.
	Prompt string `json:"prompt"`

	// Attachments are optional auxiliary payloads.
	Attachments []Attachment `json:"attachments,omitempty"`

	// Mode selects act or chat driving.
	Mode RequestMode `json:"mode"`

	// CLIType selects the adapter backend.
	CLIType CLIType `json:"cli_type"`

	// Model is the raw model identifier as supplied by the caller.
	// Resolved to a canonical id through the catalog at dispatch time.
	Model string `json:"model,omitempty"`

	// Status is the request lifecycle status.
	Status RequestStatus `json:"status"`

	// SessionID is set once the request is dispatched.
	SessionID string `json:"session_id,omitempty"`

	// EnqueuedAt orders requests within a project.
	EnqueuedAt time.Time `json:"enqueued_at"`
}
