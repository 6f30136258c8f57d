package agentdeck

import (
	"errors"
	"strconv"
)

// Sentinel errors for orchestration and adapter operations.
var (
	// ErrUnavailable indicates an adapter cannot start
	// (binary not found, invalid configuration).
	ErrUnavailable = errors.New("agentdeck: adapter unavailable")

	// ErrTerminated indicates the session was terminated
	// (process killed, stream closed).
	ErrTerminated = errors.New("agentdeck: session terminated")

	// ErrQueueFull indicates a project's request queue is at its
	// configured depth. Reported synchronously to the caller; the
	// pending order is left untouched.
	ErrQueueFull = errors.New("agentdeck: request queue full")

	// ErrRequestNotFound indicates the requested request does not exist.
	ErrRequestNotFound = errors.New("agentdeck: request not found")

	// ErrRequestDispatched indicates a cancel attempt against a request
	// that has already started.
	ErrRequestDispatched = errors.New("agentdeck: request already dispatched")

	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("agentdeck: session not found")

	// ErrSendNotSupported indicates the adapter's backend has no input
	// path for feeding a running session.
	ErrSendNotSupported = errors.New("agentdeck: send not supported")
)

// ExitError represents an agent subprocess that exited with a non-zero
// status. Wraps the underlying error to preserve the error chain, so
// consumers can errors.As to *exec.ExitError for OS-level detail.
//
// Code semantics: positive = exit status, negative (-1) = signal-killed.
//
// Adapters produce ExitError only for natural exits. User-initiated stops
// (via Handle.Stop) produce ErrTerminated instead.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "agentdeck: exit status " + strconv.Itoa(e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode extracts the exit code from an error chain containing *ExitError.
// Returns (0, false) if the error does not contain an ExitError.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
