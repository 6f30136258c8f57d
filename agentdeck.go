// Package agentdeck orchestrates AI coding-agent sessions per project.
//
// agentdeck drives external coding-agent CLI processes (Claude Code, Codex)
// one at a time per project, streaming their incremental output to any
// number of live observers while durably recording messages and tool usage.
//
// # Core Types
//
//   - [Event]: normalized streamed output from an agent process
//   - [Session]: one end-to-end agent run for a project (value type)
//   - [Request]: a queued unit of user work for a project
//   - [ExitReason]: why a session reached a terminal state
//   - [Option]: functional options for adapter Start
//
// # Vocabulary
//
// The root package defines the shared vocabulary for all components.
// Adapter backends translate heterogeneous CLI output into [Event] values;
// the orchestrator, recorder, and broadcaster never see backend-specific
// shapes. Cross-cutting session configuration lives in well-known
// [Session.Options] keys; backend-specific keys stay in backend packages.
//
// # Pipeline
//
// A request enters the per-project queue → the orchestrator admits it only
// if the project is idle → an adapter handle is started → events stream
// concurrently to the recorder (durability) and the broadcast hub
// (liveness) → on completion the project returns to idle and the next
// pending request dispatches.
package agentdeck
