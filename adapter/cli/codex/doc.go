// Package codex provides a Codex CLI backend for agentdeck.
//
// The backend launches "codex exec --json" and parses the JSONL event
// stream into [agentdeck.Event] values.
//
// # Event Mapping
//
//   - item.started (tool items)            → EventToolStart
//   - item.completed (tool items)          → EventToolEnd
//   - item.completed/agent_message         → EventDelta (whole text)
//   - turn.completed                       → EventDone (completed)
//   - turn.failed, error, item error       → EventError
//
// thread.started, turn.started, reasoning items, and unknown frames carry
// no event and are skipped.
//
// Codex has no streaming input path: the backend implements neither
// cli.Streamer nor cli.InputFormatter, so chat-mode sessions run one-shot.
package codex
