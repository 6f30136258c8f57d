// Package adapter defines the uniform interface to external agent processes.
//
// An [Adapter] starts one agent session and returns a [Handle]. Events flow
// through the handle's channel as a finite, ordered, single-pass sequence:
// the channel is closed after a done or error event, and a stopped handle
// delivers nothing further. A handle is single-use; a new Start yields a
// new handle.
//
// Implementations live in subpackages (adapter/cli for line-oriented CLI
// subprocesses). Handle is an interface to enable wrapping with logging,
// metrics, or retry middleware.
package adapter

import (
	"context"

	"github.com/dmora/agentdeck"
)

// Adapter starts and validates agent sessions.
type Adapter interface {
	// Start initializes a session and returns a Handle. The Handle
	// immediately begins producing Events on its Events channel.
	// Options override Session fields for this specific invocation.
	// Start fails synchronously (no session, no handle) if the agent
	// cannot be launched: binary missing, invalid configuration.
	Start(ctx context.Context, session agentdeck.Session, opts ...agentdeck.Option) (Handle, error)

	// Validate checks that the adapter is available and ready.
	// For CLI adapters, this verifies the binary exists and is executable.
	Validate() error
}

// Handle is an active session handle.
//
// Events for a handle are delivered in the order the underlying process
// emitted them. After a done or error event no further events are
// delivered and the channel closes.
type Handle interface {
	// Events returns the channel for receiving events from the agent.
	// The channel is closed when the session ends (normally or on error).
	Events() <-chan agentdeck.Event

	// Send feeds a user message to the running session. Only available
	// when the backend has a streaming input path; otherwise returns
	// agentdeck.ErrSendNotSupported.
	Send(ctx context.Context, message string) error

	// Stop terminates the session. Idempotent. Once Stop returns, no
	// further events will be delivered even if the underlying process is
	// slow to exit; events racing the stop are discarded, not queued.
	Stop(ctx context.Context) error

	// Wait blocks until the session ends naturally.
	// Returns nil on clean exit, or an error describing the failure.
	Wait() error

	// Err returns the terminal error after the Events channel is closed.
	// Returns nil while the session is still running.
	Err() error
}
