//go:build !windows

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/adapter"
)

// Adapter is a CLI subprocess adapter that wraps a Backend into an
// adapter.Adapter. It orchestrates subprocess lifecycle, event pumping,
// and graceful shutdown.
type Adapter struct {
	backend Backend
	opts    AdapterOptions
}

// Compile-time interface satisfaction check.
var _ adapter.Adapter = (*Adapter)(nil)

// New creates a CLI adapter backed by the given Backend.
// Use AdapterOption functions to customize buffer sizes and grace period.
func New(backend Backend, opts ...AdapterOption) *Adapter {
	return &Adapter{
		backend: backend,
		opts:    resolveAdapterOptions(opts...),
	}
}

// Validate checks that the backend's binary is available on PATH.
// It recovers from panics in SpawnArgs (backends may panic on zero Session).
func (a *Adapter) Validate() (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("%w: SpawnArgs panicked: %v", agentdeck.ErrUnavailable, r)
		}
	}()

	binary, _ := a.backend.SpawnArgs(agentdeck.Session{})
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%w: %s: %w", agentdeck.ErrUnavailable, binary, err)
	}
	return nil
}

// Start initializes a subprocess session and returns a Handle.
// A streaming session (agentdeck.OptionStream) requires the backend to
// implement both Streamer and InputFormatter; without them the option is
// ignored and the session runs one-shot. The context parameter is reserved
// for future use (e.g., start timeout); subprocess lifetime is controlled
// via [adapter.Handle.Stop].
func (a *Adapter) Start(_ context.Context, session agentdeck.Session, opts ...agentdeck.Option) (adapter.Handle, error) {
	startOpts := agentdeck.ResolveOptions(opts...)

	// Deep-copy session to prevent aliasing.
	session = session.Clone()

	// Apply option overrides.
	if startOpts.Prompt != "" {
		session.Prompt = startOpts.Prompt
	}
	if startOpts.Model != "" {
		session.Model = startOpts.Model
	}

	// Validate CWD.
	if !filepath.IsAbs(session.CWD) {
		return nil, fmt.Errorf("cli: CWD must be an absolute path, got %q", session.CWD)
	}
	info, err := os.Stat(session.CWD)
	if err != nil {
		return nil, fmt.Errorf("cli: CWD: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cli: CWD is not a directory: %s", session.CWD)
	}

	// Resolve capabilities once.
	caps := resolveCapabilities(a.backend)

	wantStream, _, err := agentdeck.ParseBoolOption(session.Options, agentdeck.OptionStream)
	if err != nil {
		return nil, fmt.Errorf("cli: %w", err)
	}
	useStreamer := wantStream && caps.streamer != nil && caps.formatter != nil

	var binary string
	var args []string
	if useStreamer {
		binary, args = caps.streamer.StreamArgs(session)
	} else {
		binary, args = a.backend.SpawnArgs(session)
	}

	resolvedBinary, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", agentdeck.ErrUnavailable, binary, err)
	}

	cmd, stdin, stdout, err := spawnCmd(resolvedBinary, args, session.CWD, useStreamer)
	if err != nil {
		return nil, fmt.Errorf("cli: start: %w", err)
	}

	return newHandle(a.backend, caps, session, a.opts, cmd, stdin, stdout), nil
}

// spawnCmd builds, configures, and starts an exec.Cmd.
func spawnCmd(binary string, args []string, dir string, wantStdin bool) (*exec.Cmd, io.WriteCloser, io.ReadCloser, error) {
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}

	var stdin io.WriteCloser
	if wantStdin {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("stdin pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}
	return cmd, stdin, stdout, nil
}
