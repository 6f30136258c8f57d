// Package cli provides a CLI subprocess adapter for agentdeck sessions.
//
// A Backend implements [Spawner] and [Parser] to define how subprocesses
// are launched and how their stdout is parsed into [agentdeck.Event]
// values. Optional capabilities ([Streamer], [InputFormatter]) are
// discovered via type assertion at runtime.
//
// [New] wraps a Backend into an [adapter.Adapter]. The returned [Adapter]
// manages subprocess lifecycle, event pumping, and graceful shutdown
// (SIGTERM then SIGKILL after a grace period).
//
// # Platform Support
//
// The adapter and handle types use Unix signals (SIGTERM, SIGKILL) for
// subprocess lifecycle management and are not available on Windows. The
// interface types and option types are available on all platforms.
//
// # Consumer Obligations
//
// Callers must either drain the [adapter.Handle.Events] channel to
// completion or call [adapter.Handle.Stop] to release subprocess
// resources. Failing to do so may leave the subprocess running and leak
// goroutines.
//
// Concrete backends (claude, codex) implement the Backend interface.
package cli
