package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/catalog"
)

func TestBuiltin_Aliases(t *testing.T) {
	c := catalog.Builtin()
	if got := c.Normalize(agentdeck.CLIClaude, "sonnet"); got != "claude-sonnet-4-5" {
		t.Errorf("sonnet → %q", got)
	}
	if got := c.Normalize(agentdeck.CLIClaude, "OPUS"); got != "claude-opus-4-5" {
		t.Errorf("alias lookup should be case-insensitive, got %q", got)
	}
}

func TestNormalize_EmptyUsesDefault(t *testing.T) {
	c := catalog.Builtin()
	if got := c.Normalize(agentdeck.CLIClaude, ""); got != c.Default(agentdeck.CLIClaude) {
		t.Errorf("empty model → %q, want default", got)
	}
	if got := c.Normalize(agentdeck.CLICodex, "  "); got != c.Default(agentdeck.CLICodex) {
		t.Errorf("blank model → %q, want default", got)
	}
}

func TestNormalize_UnknownPassesThrough(t *testing.T) {
	c := catalog.Builtin()
	if got := c.Normalize(agentdeck.CLIClaude, "claude-experimental-9"); got != "claude-experimental-9" {
		t.Errorf("unknown model should pass through, got %q", got)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	c, err := catalog.Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if got := c.Normalize(agentdeck.CLIClaude, "haiku"); got != "claude-haiku-4-5" {
		t.Errorf("built-ins missing: %q", got)
	}
}

func TestLoad_FileOverridesAndExtends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := []byte(`
claude:
  default: claude-opus-4-5
  aliases:
    fast: claude-haiku-4-5
    sonnet: claude-sonnet-4-6
codex:
  aliases:
    mini: gpt-5-mini
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Normalize(agentdeck.CLIClaude, "fast"); got != "claude-haiku-4-5" {
		t.Errorf("new alias: %q", got)
	}
	if got := c.Normalize(agentdeck.CLIClaude, "sonnet"); got != "claude-sonnet-4-6" {
		t.Errorf("file should override built-in alias, got %q", got)
	}
	if got := c.Default(agentdeck.CLIClaude); got != "claude-opus-4-5" {
		t.Errorf("file should override default, got %q", got)
	}
	if got := c.Normalize(agentdeck.CLICodex, "mini"); got != "gpt-5-mini" {
		t.Errorf("codex alias: %q", got)
	}
	// Untouched built-ins survive.
	if got := c.Normalize(agentdeck.CLIClaude, "opus"); got != "claude-opus-4-5" {
		t.Errorf("built-in alias lost: %q", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := catalog.Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := catalog.Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
