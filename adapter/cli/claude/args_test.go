package claude

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dmora/agentdeck"
)

func hasArg(args []string, s string) bool {
	for _, a := range args {
		if a == s {
			return true
		}
	}
	return false
}

func hasFlagValue(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestSpawnArgs_Basic(t *testing.T) {
	b := New()
	binary, args := b.SpawnArgs(agentdeck.Session{Prompt: "fix the bug"})
	if binary != "claude" {
		t.Errorf("binary = %q", binary)
	}
	for _, want := range []string{"-p", "--verbose", "--include-partial-messages"} {
		if !hasArg(args, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if !hasFlagValue(args, "--output-format", "stream-json") {
		t.Errorf("args missing --output-format stream-json: %v", args)
	}
	if args[len(args)-1] != "fix the bug" {
		t.Errorf("prompt must be the last arg: %v", args)
	}
}

func TestSpawnArgs_PartialMessagesDisabled(t *testing.T) {
	b := New(WithPartialMessages(false))
	_, args := b.SpawnArgs(agentdeck.Session{Prompt: "x"})
	if hasArg(args, "--include-partial-messages") {
		t.Errorf("args should omit --include-partial-messages: %v", args)
	}
}

func TestSpawnArgs_Model(t *testing.T) {
	b := New()
	_, args := b.SpawnArgs(agentdeck.Session{Prompt: "x", Model: "claude-opus-4-5"})
	if !hasFlagValue(args, "--model", "claude-opus-4-5") {
		t.Errorf("args missing model flag: %v", args)
	}
}

func TestSpawnArgs_SystemPromptAndMaxTurns(t *testing.T) {
	b := New()
	_, args := b.SpawnArgs(agentdeck.Session{
		Prompt: "x",
		Options: map[string]string{
			agentdeck.OptionSystemPrompt: "be terse",
			agentdeck.OptionMaxTurns:     "5",
		},
	})
	if !hasFlagValue(args, "--system-prompt", "be terse") {
		t.Errorf("args missing system prompt: %v", args)
	}
	if !hasFlagValue(args, "--max-turns", "5") {
		t.Errorf("args missing max turns: %v", args)
	}
}

func TestSpawnArgs_InvalidMaxTurnsSkipped(t *testing.T) {
	b := New()
	_, args := b.SpawnArgs(agentdeck.Session{
		Prompt:  "x",
		Options: map[string]string{agentdeck.OptionMaxTurns: "-1"},
	})
	if hasArg(args, "--max-turns") {
		t.Errorf("invalid max turns must be skipped: %v", args)
	}
}

func TestSpawnArgs_PermissionModes(t *testing.T) {
	tests := []struct {
		mode PermissionMode
		want string
	}{
		{PermissionAcceptEdits, "acceptEdits"},
		{PermissionBypassAll, "bypassPermissions"},
		{PermissionPlan, "plan"},
	}
	for _, tt := range tests {
		b := New()
		_, args := b.SpawnArgs(agentdeck.Session{
			Prompt:  "x",
			Options: map[string]string{OptionPermissionMode: string(tt.mode)},
		})
		if !hasFlagValue(args, "--permission-mode", tt.want) {
			t.Errorf("mode %s: args missing --permission-mode %s: %v", tt.mode, tt.want, args)
		}
	}
}

func TestSpawnArgs_DefaultPermissionOmitted(t *testing.T) {
	b := New()
	_, args := b.SpawnArgs(agentdeck.Session{
		Prompt:  "x",
		Options: map[string]string{OptionPermissionMode: string(PermissionDefault)},
	})
	if hasArg(args, "--permission-mode") {
		t.Errorf("default permission mode should omit the flag: %v", args)
	}
}

func TestSpawnArgs_UnknownPermissionSkipped(t *testing.T) {
	b := New()
	_, args := b.SpawnArgs(agentdeck.Session{
		Prompt:  "x",
		Options: map[string]string{OptionPermissionMode: "yolo"},
	})
	if hasArg(args, "--permission-mode") {
		t.Errorf("unknown permission mode should omit the flag: %v", args)
	}
}

func TestStreamArgs_NoPromptStdinFormat(t *testing.T) {
	b := New()
	_, args := b.StreamArgs(agentdeck.Session{Prompt: "streamed"})
	if hasArg(args, "streamed") {
		t.Errorf("streaming session must not place the prompt in args: %v", args)
	}
	if !hasFlagValue(args, "--input-format", "stream-json") {
		t.Errorf("args missing --input-format stream-json: %v", args)
	}
}

func TestFormatInput_Shape(t *testing.T) {
	b := New()
	data, err := b.FormatInput("hello world")
	if err != nil {
		t.Fatalf("FormatInput: %v", err)
	}
	var msg struct {
		Type    string `json:"type"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if msg.Type != "user" || msg.Message.Role != "user" || msg.Message.Content != "hello world" {
		t.Errorf("unexpected stdin shape: %s", data)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("stdin message must be newline-terminated")
	}
}

func TestWithBinary(t *testing.T) {
	b := New(WithBinary("/opt/bin/claude"))
	binary, _ := b.SpawnArgs(agentdeck.Session{Prompt: "x"})
	if binary != "/opt/bin/claude" {
		t.Errorf("binary = %q", binary)
	}
	b = New(WithBinary(""))
	binary, _ = b.SpawnArgs(agentdeck.Session{Prompt: "x"})
	if binary != "claude" {
		t.Errorf("empty override should keep default, got %q", binary)
	}
}
