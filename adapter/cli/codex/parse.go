package codex

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/adapter/cli"
	"github.com/dmora/agentdeck/adapter/cli/internal/errfmt"
	"github.com/dmora/agentdeck/adapter/cli/internal/jsonutil"
)

// toolItemTypes maps Codex item types that represent tool invocations to
// the tool name recorded for them. command_execution carries its command
// string as input; the rest marshal the full item as output.
var toolItemTypes = map[string]string{
	"command_execution": "command_execution",
	"file_changes":      "file_changes",
	"web_search":        "web_search",
	"mcp_tool_call":     "mcp_tool_call",
}

// ParseLine parses a single JSONL output line from codex exec into an
// Event. Returns cli.ErrSkipLine for blank lines and no-op frames
// (thread.started, turn.started, reasoning items, unknown types).
func (b *Backend) ParseLine(line string) (agentdeck.Event, error) {
	if strings.TrimSpace(line) == "" {
		return agentdeck.Event{}, cli.ErrSkipLine
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return agentdeck.Event{}, fmt.Errorf("codex: invalid JSON: %w", err)
	}

	typeStr := jsonutil.GetString(raw, "type")
	if typeStr == "" {
		return agentdeck.Event{}, fmt.Errorf("codex: missing or empty type field")
	}

	ev := agentdeck.Event{Raw: json.RawMessage(line), Timestamp: time.Now()}

	switch typeStr {
	case "thread.started", "turn.started":
		return agentdeck.Event{}, cli.ErrSkipLine
	case "item.started":
		return parseItemStarted(raw, ev)
	case "item.completed":
		return parseItemCompleted(raw, ev)
	case "turn.completed":
		ev.Kind = agentdeck.EventDone
		ev.ExitReason = agentdeck.ExitCompleted
		return ev, nil
	case "turn.failed":
		return parseTurnFailed(raw, ev)
	case "error":
		ev.Kind = agentdeck.EventError
		message := jsonutil.GetString(raw, "message")
		if message == "" {
			message = "unknown error"
		}
		ev.Text = formatError(jsonutil.GetString(raw, "code"), message)
		return ev, nil
	default:
		return agentdeck.Event{}, cli.ErrSkipLine
	}
}

// parseItemStarted emits EventToolStart for tool items; everything else
// (agent_message, reasoning in progress) is a no-op frame.
func parseItemStarted(raw map[string]any, ev agentdeck.Event) (agentdeck.Event, error) {
	item := jsonutil.GetMap(raw, "item")
	if item == nil {
		return agentdeck.Event{}, fmt.Errorf("codex: item.started: missing item")
	}
	name, ok := toolItemTypes[jsonutil.GetString(item, "type")]
	if !ok {
		return agentdeck.Event{}, cli.ErrSkipLine
	}
	ev.Kind = agentdeck.EventToolStart
	ev.Tool = &agentdeck.ToolCall{
		Name:  name,
		Input: marshalString(jsonutil.GetString(item, "command")),
	}
	return ev, nil
}

// parseItemCompleted dispatches on item.type: tool items resolve to
// EventToolEnd, agent_message to a whole-text delta, error items to
// EventError. Reasoning and unknown items are skipped.
func parseItemCompleted(raw map[string]any, ev agentdeck.Event) (agentdeck.Event, error) {
	item := jsonutil.GetMap(raw, "item")
	if item == nil {
		return agentdeck.Event{}, fmt.Errorf("codex: item.completed: missing item")
	}

	itemType := jsonutil.GetString(item, "type")
	if name, ok := toolItemTypes[itemType]; ok {
		ev.Kind = agentdeck.EventToolEnd
		ev.Tool = &agentdeck.ToolCall{
			Name:   name,
			Output: marshalItem(item),
		}
		if ms := jsonutil.GetInt(item, "duration_ms"); ms > 0 {
			ev.Tool.Duration = time.Duration(ms) * time.Millisecond
		}
		return ev, nil
	}

	switch itemType {
	case "agent_message":
		ev.Kind = agentdeck.EventDelta
		ev.Text = jsonutil.GetString(item, "text")
		return ev, nil
	case "error":
		ev.Kind = agentdeck.EventError
		message := jsonutil.GetString(item, "message")
		if message == "" {
			message = jsonutil.GetString(item, "text")
		}
		if message == "" {
			message = "unknown error"
		}
		ev.Text = formatError(jsonutil.GetString(item, "code"), message)
		return ev, nil
	default:
		return agentdeck.Event{}, cli.ErrSkipLine
	}
}

// parseTurnFailed handles turn.failed → EventError.
func parseTurnFailed(raw map[string]any, ev agentdeck.Event) (agentdeck.Event, error) {
	ev.Kind = agentdeck.EventError
	errObj := jsonutil.GetMap(raw, "error")
	if errObj == nil {
		ev.Text = "turn failed"
		return ev, nil
	}
	message := jsonutil.GetString(errObj, "message")
	if message == "" {
		message = "turn failed"
	}
	ev.Text = formatError(jsonutil.GetString(errObj, "code"), message)
	return ev, nil
}

// formatError joins a sanitized code and truncated message.
func formatError(code, message string) string {
	code = errfmt.SanitizeCode(code)
	message = errfmt.Truncate(message)
	if code != "" {
		return code + ": " + message
	}
	return message
}

// marshalString converts a string to json.RawMessage.
// On marshal failure, returns a diagnostic JSON string rather than nil
// to indicate that the input existed but couldn't be serialized.
func marshalString(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(fmt.Sprintf(`"[marshal error: %v]"`, err))
	}
	return data
}

// marshalItem marshals a map to json.RawMessage for tool output.
func marshalItem(item map[string]any) json.RawMessage {
	if item == nil {
		return nil
	}
	data, err := json.Marshal(item)
	if err != nil {
		return json.RawMessage(fmt.Sprintf(`"[marshal error: %v]"`, err))
	}
	return data
}
