package codex

import (
	"errors"
	"strings"
	"testing"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/adapter/cli"
)

func TestParseLine_BlankLine(t *testing.T) {
	b := New()
	_, err := b.ParseLine("  ")
	if !errors.Is(err, cli.ErrSkipLine) {
		t.Errorf("blank line should return ErrSkipLine, got %v", err)
	}
}

func TestParseLine_InvalidJSON(t *testing.T) {
	b := New()
	_, err := b.ParseLine("{broken")
	if err == nil || errors.Is(err, cli.ErrSkipLine) {
		t.Errorf("invalid JSON must be a non-skip error, got %v", err)
	}
}

func TestParseLine_LifecycleSkipped(t *testing.T) {
	b := New()
	for _, line := range []string{
		`{"type":"thread.started","thread_id":"t1"}`,
		`{"type":"turn.started"}`,
		`{"type":"some.future.type"}`,
	} {
		_, err := b.ParseLine(line)
		if !errors.Is(err, cli.ErrSkipLine) {
			t.Errorf("%s should be skipped, got %v", line, err)
		}
	}
}

func TestParseLine_AgentMessage(t *testing.T) {
	b := New()
	line := `{"type":"item.completed","item":{"type":"agent_message","text":"All done."}}`
	ev, err := b.ParseLine(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != agentdeck.EventDelta || ev.Text != "All done." {
		t.Errorf("event = %+v", ev)
	}
}

func TestParseLine_CommandStarted(t *testing.T) {
	b := New()
	line := `{"type":"item.started","item":{"type":"command_execution","command":"go test ./..."}}`
	ev, err := b.ParseLine(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != agentdeck.EventToolStart {
		t.Fatalf("kind = %q, want tool_start", ev.Kind)
	}
	if ev.Tool.Name != "command_execution" {
		t.Errorf("name = %q", ev.Tool.Name)
	}
	if !strings.Contains(string(ev.Tool.Input), "go test") {
		t.Errorf("input = %s", ev.Tool.Input)
	}
}

func TestParseLine_CommandCompleted(t *testing.T) {
	b := New()
	line := `{"type":"item.completed","item":{"type":"command_execution","command":"ls","exit_code":0,"duration_ms":42}}`
	ev, err := b.ParseLine(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != agentdeck.EventToolEnd {
		t.Fatalf("kind = %q, want tool_end", ev.Kind)
	}
	if ev.Tool.Duration.Milliseconds() != 42 {
		t.Errorf("duration = %v", ev.Tool.Duration)
	}
	if !strings.Contains(string(ev.Tool.Output), "exit_code") {
		t.Errorf("output should carry the item: %s", ev.Tool.Output)
	}
}

func TestParseLine_NonToolItemStartedSkipped(t *testing.T) {
	b := New()
	for _, typ := range []string{"agent_message", "reasoning"} {
		line := `{"type":"item.started","item":{"type":"` + typ + `"}}`
		_, err := b.ParseLine(line)
		if !errors.Is(err, cli.ErrSkipLine) {
			t.Errorf("item.started %s should be skipped, got %v", typ, err)
		}
	}
}

func TestParseLine_ReasoningCompletedSkipped(t *testing.T) {
	b := New()
	line := `{"type":"item.completed","item":{"type":"reasoning","text":"thinking..."}}`
	_, err := b.ParseLine(line)
	if !errors.Is(err, cli.ErrSkipLine) {
		t.Errorf("reasoning item should be skipped, got %v", err)
	}
}

func TestParseLine_ItemMissing(t *testing.T) {
	b := New()
	for _, line := range []string{`{"type":"item.started"}`, `{"type":"item.completed"}`} {
		_, err := b.ParseLine(line)
		if err == nil || errors.Is(err, cli.ErrSkipLine) {
			t.Errorf("%s is malformed, got %v", line, err)
		}
	}
}

func TestParseLine_TurnCompleted(t *testing.T) {
	b := New()
	ev, err := b.ParseLine(`{"type":"turn.completed","usage":{"input_tokens":100}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != agentdeck.EventDone || ev.ExitReason != agentdeck.ExitCompleted {
		t.Errorf("event = %+v", ev)
	}
}

func TestParseLine_TurnFailed(t *testing.T) {
	b := New()
	ev, err := b.ParseLine(`{"type":"turn.failed","error":{"code":"sandbox_denied","message":"write blocked"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != agentdeck.EventError {
		t.Fatalf("kind = %q, want error", ev.Kind)
	}
	if ev.Text != "sandbox_denied: write blocked" {
		t.Errorf("text = %q", ev.Text)
	}
}

func TestParseLine_TurnFailedNoDetail(t *testing.T) {
	b := New()
	ev, err := b.ParseLine(`{"type":"turn.failed"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Text != "turn failed" {
		t.Errorf("text = %q", ev.Text)
	}
}

func TestParseLine_ErrorFrame(t *testing.T) {
	b := New()
	ev, err := b.ParseLine(`{"type":"error","message":"stream disconnected"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != agentdeck.EventError || ev.Text != "stream disconnected" {
		t.Errorf("event = %+v", ev)
	}
}

func TestParseLine_ErrorItem(t *testing.T) {
	b := New()
	line := `{"type":"item.completed","item":{"type":"error","message":"model refused"}}`
	ev, err := b.ParseLine(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != agentdeck.EventError || ev.Text != "model refused" {
		t.Errorf("event = %+v", ev)
	}
}
