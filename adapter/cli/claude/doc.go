// Package claude provides a Claude Code CLI backend for agentdeck.
//
// The backend launches the claude binary in -p (print) mode with
// --output-format stream-json and parses each stdout line into an
// [agentdeck.Event]. Streaming sessions (chat mode) add
// --input-format stream-json and keep stdin open; follow-up user
// messages are encoded by [Backend.FormatInput].
//
// # Event Mapping
//
//   - stream_event text_delta            → EventDelta
//   - assistant message (deltas off)     → EventDelta (whole text)
//   - assistant tool_use block           → EventToolStart
//   - tool / user tool_result block      → EventToolEnd
//   - result                             → EventDone (completed)
//   - error                              → EventError
//
// Lifecycle frames (system init, message_start and friends) carry no
// event and are skipped. With partial messages enabled (the default),
// complete assistant text frames are also skipped, their content has
// already been delivered as deltas and emitting both would double the
// recorded text.
package claude
