package codex

import (
	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/adapter/cli"
	"github.com/dmora/agentdeck/adapter/cli/internal/jsonutil"
)

// Session option keys specific to the Codex backend.
// Namespaced with "codex." to prevent collision across backends.
const (
	// OptionSandbox sets the --sandbox flag for codex exec.
	// Values should be Sandbox constants (SandboxReadOnly, etc.).
	OptionSandbox = "codex.sandbox"

	// OptionProfile sets the -p <profile> flag for codex exec.
	OptionProfile = "codex.profile"

	// OptionSkipGitCheck adds --skip-git-repo-check.
	// Any non-empty value adds the flag.
	OptionSkipGitCheck = "codex.skip_git_check"
)

// Sandbox controls the sandbox policy via --sandbox.
type Sandbox string

const (
	SandboxReadOnly       Sandbox = "read-only"
	SandboxWorkspaceWrite Sandbox = "workspace-write"
	SandboxFullAccess     Sandbox = "danger-full-access"
)

// validSandbox reports whether s is a recognized sandbox value.
func validSandbox(s Sandbox) bool {
	switch s {
	case SandboxReadOnly, SandboxWorkspaceWrite, SandboxFullAccess:
		return true
	}
	return false
}

const defaultBinary = "codex"

// Backend is a Codex CLI backend for agentdeck.
// It implements cli.Backend only; Codex has no streaming input path.
type Backend struct {
	binary string
}

// Compile-time interface satisfaction checks.
var (
	_ cli.Backend = (*Backend)(nil)
	_ cli.Spawner = (*Backend)(nil)
	_ cli.Parser  = (*Backend)(nil)
)

// Option configures a Backend at construction time.
type Option func(*Backend)

// WithBinary overrides the Codex CLI binary path.
// Empty values are ignored; the default is "codex".
func WithBinary(path string) Option {
	return func(b *Backend) {
		if path != "" {
			b.binary = path
		}
	}
}

// New creates a Codex CLI backend with the given options.
// The default binary is "codex".
func New(opts ...Option) *Backend {
	b := &Backend{binary: defaultBinary}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SpawnArgs builds exec.Cmd arguments for a new Codex session.
// Invalid option values are silently skipped per the Spawner contract.
func (b *Backend) SpawnArgs(session agentdeck.Session) (string, []string) {
	args := []string{"exec", "--json"}

	if m := session.Model; m != "" && !jsonutil.ContainsNull(m) && m[0] != '-' {
		args = append(args, "--model", m)
	}

	if sb := Sandbox(session.Options[OptionSandbox]); sb != "" && validSandbox(sb) {
		args = append(args, "--sandbox", string(sb))
	}

	if p := session.Options[OptionProfile]; p != "" && !jsonutil.ContainsNull(p) && p[0] != '-' {
		args = append(args, "-p", p)
	}

	if session.Options[OptionSkipGitCheck] != "" {
		args = append(args, "--skip-git-repo-check")
	}

	// Prompt is the last positional argument.
	if !jsonutil.ContainsNull(session.Prompt) {
		args = append(args, session.Prompt)
	}
	return b.binary, args
}
