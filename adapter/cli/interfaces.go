package cli

import (
	"errors"

	"github.com/dmora/agentdeck"
)

// ErrSkipLine signals that a parsed output line carries no event and
// should be silently skipped (blank lines, protocol no-ops). Any other
// parse error is surfaced as an error event; malformed output is never
// dropped.
var ErrSkipLine = errors.New("cli: skip line")

// Interfaces are defined here (at the consumer side) rather than in
// backend packages, following Go interface ownership conventions.
// Backend packages (claude, codex) provide concrete implementations.

// Spawner builds subprocess invocations for new sessions.
type Spawner interface {
	// SpawnArgs returns the binary and argument list for a one-shot
	// session. It must not fail: invalid session values are skipped,
	// never passed through to the command line.
	SpawnArgs(session agentdeck.Session) (binary string, args []string)
}

// Parser transforms raw stdout lines into events.
type Parser interface {
	// ParseLine parses a single output line. Returns ErrSkipLine for
	// lines that carry no event. Other errors mark the line malformed;
	// the adapter converts them to EventError.
	ParseLine(line string) (agentdeck.Event, error)
}

// Backend is the minimal contract for a CLI backend.
type Backend interface {
	Spawner
	Parser
}

// Streamer is an optional capability: the backend supports a long-lived
// session with an open stdin pipe for follow-up input.
type Streamer interface {
	// StreamArgs returns the binary and argument list for a streaming
	// session. The subprocess is started with a stdin pipe attached.
	StreamArgs(session agentdeck.Session) (binary string, args []string)
}

// InputFormatter is an optional capability: encodes user messages for
// delivery to a streaming subprocess's stdin pipe. Required alongside
// Streamer for the stdin send path to be usable.
type InputFormatter interface {
	// FormatInput encodes message into the backend's stdin wire format,
	// including any trailing delimiter.
	FormatInput(message string) ([]byte, error)
}
