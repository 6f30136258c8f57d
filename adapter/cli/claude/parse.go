package claude

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

// ParseLine parses a single line of Claude's stream-json output into an
// Event. Returns cli.ErrSkipLine for blank lines and lifecycle frames
// that carry no event.
func (b *Backend) ParseLine(line string) (agentdeck.Event, error) {
	if strings.TrimSpace(line) == "" {
		return agentdeck.Event{}, cli.ErrSkipLine
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return agentdeck.Event{}, fmt.Errorf("claude: invalid JSON: %w", err)
	}

	typeStr, ok := raw["type"].(string)
	if !ok || typeStr == "" {
		return agentdeck.Event{}, fmt.Errorf("claude: missing or empty type field")
	}

	ev := agentdeck.Event{Raw: json.RawMessage(line), Timestamp: time.Now()}

	switch typeStr {
	case "system", "init":
		// Handshake and status frames carry no streamed output.
		return agentdeck.Event{}, cli.ErrSkipLine
	case "assistant":
		return b.parseAssistant(raw, ev)
	case "user":
		return parseUser(raw, ev)
	case "tool":
		return parseTool(raw, ev)
	case "result":
		ev.Kind = agentdeck.EventDone
		ev.ExitReason = agentdeck.ExitCompleted
		return ev, nil
	case "error":
		return parseError(raw, ev)
	case "stream_event":
		return parseStreamEvent(raw, ev)
	default:
		// Unknown frame types are protocol noise, not malformed output.
		return agentdeck.Event{}, cli.ErrSkipLine
	}
}

// parseAssistant handles complete "assistant" frames. Tool_use blocks
// always produce EventToolStart. Text content is emitted as a single
// delta only when partial messages are disabled; with deltas on, the
// same text has already arrived via stream_event frames.
func (b *Backend) parseAssistant(raw map[string]any, ev agentdeck.Event) (agentdeck.Event, error) {
	message := jsonutil.GetMap(raw, "message")
	contentArr, _ := message["content"].([]any)

	var text strings.Builder
	var tool *agentdeck.ToolCall
	for _, c := range contentArr {
		cm, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := cm["text"].(string); ok {
			text.WriteString(t)
		}
		if ct := jsonutil.GetString(cm, "type"); ct == "tool_use" {
			tool = extractToolStart(cm)
		}
	}

	if tool != nil {
		ev.Kind = agentdeck.EventToolStart
		ev.Tool = tool
		return ev, nil
	}
	if text.Len() > 0 && !b.partialMessages {
		ev.Kind = agentdeck.EventDelta
		ev.Text = text.String()
		return ev, nil
	}
	return agentdeck.Event{}, cli.ErrSkipLine
}

// parseUser handles "user" frames, which carry tool_result blocks in
// streaming mode.
func parseUser(raw map[string]any, ev agentdeck.Event) (agentdeck.Event, error) {
	message := jsonutil.GetMap(raw, "message")
	contentArr, _ := message["content"].([]any)
	for _, c := range contentArr {
		cm, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if jsonutil.GetString(cm, "type") != "tool_result" {
			continue
		}
		ev.Kind = agentdeck.EventToolEnd
		ev.Tool = &agentdeck.ToolCall{}
		if content, ok := cm["content"]; ok {
			if data, err := json.Marshal(content); err == nil {
				ev.Tool.Output = data
			}
		}
		return ev, nil
	}
	return agentdeck.Event{}, cli.ErrSkipLine
}

// parseTool handles "tool" frames (completed tool execution results).
func parseTool(raw map[string]any, ev agentdeck.Event) (agentdeck.Event, error) {
	ev.Kind = agentdeck.EventToolEnd
	ev.Tool = &agentdeck.ToolCall{Name: jsonutil.GetString(raw, "name")}
	if output, ok := raw["output"]; ok {
		if data, err := json.Marshal(output); err == nil {
			ev.Tool.Output = data
		}
	}
	if ms := jsonutil.GetInt(raw, "duration_ms"); ms > 0 {
		ev.Tool.Duration = time.Duration(ms) * time.Millisecond
	}
	return ev, nil
}

// parseError handles "error" frames.
func parseError(raw map[string]any, ev agentdeck.Event) (agentdeck.Event, error) {
	ev.Kind = agentdeck.EventError
	code := errfmt.SanitizeCode(jsonutil.GetString(raw, "code"))
	message := jsonutil.GetString(raw, "message")
	// Fallback: "error" field as string.
	if message == "" {
		message = jsonutil.GetString(raw, "error")
	}
	message = errfmt.Truncate(message)
	if code != "" {
		ev.Text = code + ": " + message
	} else {
		ev.Text = message
	}
	return ev, nil
}

// parseStreamEvent handles "stream_event" wrapper frames from
// --include-partial-messages. Only content_block_delta text deltas
// produce events; lifecycle frames (message_start, content_block_start,
// content_block_stop, message_stop, message_delta) are skipped.
func parseStreamEvent(raw map[string]any, ev agentdeck.Event) (agentdeck.Event, error) {
	event := jsonutil.GetMap(raw, "event")
	if event == nil {
		return agentdeck.Event{}, fmt.Errorf("claude: stream_event: missing or invalid event field")
	}
	if jsonutil.GetString(event, "type") != "content_block_delta" {
		return agentdeck.Event{}, cli.ErrSkipLine
	}
	delta := jsonutil.GetMap(event, "delta")
	if delta == nil {
		return agentdeck.Event{}, fmt.Errorf("claude: content_block_delta: missing or invalid delta field")
	}
	if jsonutil.GetString(delta, "type") != "text_delta" {
		// input_json_delta and thinking_delta are not assistant text.
		return agentdeck.Event{}, cli.ErrSkipLine
	}
	ev.Kind = agentdeck.EventDelta
	ev.Text = jsonutil.GetString(delta, "text")
	return ev, nil
}

// extractToolStart builds a ToolCall from a tool_use content block map.
func extractToolStart(cm map[string]any) *agentdeck.ToolCall {
	tool := &agentdeck.ToolCall{
		Name: jsonutil.GetString(cm, "name"),
	}
	if input, ok := cm["input"]; ok {
		if data, err := json.Marshal(input); err == nil {
			tool.Input = data
		}
	}
	return tool
}
