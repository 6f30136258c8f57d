//go:build !windows

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/adapter"
)

// capabilities holds resolved optional interfaces for a handle.
// Resolved once in Adapter.Start to eliminate handle→adapter back-references.
type capabilities struct {
	streamer  Streamer
	formatter InputFormatter
}

func resolveCapabilities(backend Backend) capabilities {
	var caps capabilities
	if s, ok := backend.(Streamer); ok {
		caps.streamer = s
	}
	if f, ok := backend.(InputFormatter); ok {
		caps.formatter = f
	}
	return caps
}

// signalProcess sends sig to a process, returning nil if the process
// has already exited (os.ErrProcessDone).
func signalProcess(proc *os.Process, sig os.Signal) error {
	err := proc.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// handle implements adapter.Handle for CLI subprocess sessions.
//
// A handle is single-use: it owns exactly one subprocess for its whole
// lifetime. There is no subprocess replacement; a new Start yields a new
// handle.
type handle struct {
	backend Backend
	caps    capabilities
	session agentdeck.Session
	opts    AdapterOptions

	events chan agentdeck.Event

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	cancelRead context.CancelFunc

	cmdDone chan struct{} // buffered(1), signaled by the readLoop defer
	done    chan struct{} // closed exactly once by finish()
	termErr error         // set by finish(), read after done closes

	stopping   atomic.Bool
	stopOnce   sync.Once
	finishOnce sync.Once
}

var _ adapter.Handle = (*handle)(nil)

// newHandle creates a handle and starts its readLoop.
func newHandle(
	backend Backend,
	caps capabilities,
	session agentdeck.Session,
	opts AdapterOptions,
	cmd *exec.Cmd,
	stdin io.WriteCloser,
	stdout io.ReadCloser,
) *handle {
	readCtx, cancelRead := context.WithCancel(context.Background())

	h := &handle{
		backend:    backend,
		caps:       caps,
		session:    session,
		opts:       opts,
		events:     make(chan agentdeck.Event, opts.EventBuffer),
		cmd:        cmd,
		stdin:      stdin,
		cancelRead: cancelRead,
		cmdDone:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go h.readLoop(readCtx, stdout)
	return h
}

// Events returns the channel for receiving events from the subprocess.
func (h *handle) Events() <-chan agentdeck.Event {
	return h.events
}

// Send feeds a user message to the subprocess stdin pipe.
// Returns agentdeck.ErrSendNotSupported for one-shot sessions.
func (h *handle) Send(_ context.Context, message string) error {
	if h.stopping.Load() {
		return agentdeck.ErrTerminated
	}
	select {
	case <-h.done:
		return agentdeck.ErrTerminated
	default:
	}

	if h.caps.formatter == nil {
		return fmt.Errorf("%w: backend has no input formatter", agentdeck.ErrSendNotSupported)
	}
	data, err := h.caps.formatter.FormatInput(message)
	if err != nil {
		return fmt.Errorf("cli: format input: %w", err)
	}

	h.mu.Lock()
	stdin := h.stdin
	h.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("%w: session is not streaming", agentdeck.ErrSendNotSupported)
	}
	if _, err := stdin.Write(data); err != nil {
		return fmt.Errorf("cli: write stdin: %w", err)
	}
	return nil
}

// Stop terminates the subprocess. Safe to call multiple times.
// Blocks until the events channel is closed; once Stop returns, no
// further events are delivered.
func (h *handle) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() {
		h.stopping.Store(true)

		h.mu.Lock()
		if h.stdin != nil {
			_ = h.stdin.Close() // Best-effort: pipe may already be closed.
		}
		cancelRead := h.cancelRead
		cmd := h.cmd
		h.mu.Unlock()

		// Unblock readLoop if stuck on channel send; discards any event
		// racing the stop instead of queueing it.
		cancelRead()

		// Send SIGTERM for graceful termination.
		_ = signalProcess(cmd.Process, syscall.SIGTERM)

		// Wait for readLoop to finish, with grace period.
		select {
		case <-h.cmdDone:
		case <-time.After(h.opts.GracePeriod):
			_ = signalProcess(cmd.Process, os.Kill)
			<-h.cmdDone
		case <-ctx.Done():
			_ = signalProcess(cmd.Process, os.Kill)
			<-h.cmdDone
		}
	})

	// Block until finish() completes (events channel closed).
	<-h.done
	return h.termErr
}

// Wait blocks until the session ends naturally.
func (h *handle) Wait() error {
	<-h.done
	return h.termErr
}

// Err returns the terminal error, or nil if still running.
func (h *handle) Err() error {
	select {
	case <-h.done:
		return h.termErr
	default:
		return nil
	}
}

// finish sets the terminal error and closes events+done channels.
// Called exactly once via sync.Once.
func (h *handle) finish(err error) {
	h.finishOnce.Do(func() {
		h.termErr = err
		close(h.events)
		close(h.done)
	})
}

// readLoop is the goroutine that reads subprocess stdout and pumps events.
func (h *handle) readLoop(ctx context.Context, stdout io.ReadCloser) {
	var panicErr error
	var scanErr error

	defer func() {
		if r := recover(); r != nil {
			_ = signalProcess(h.cmd.Process, os.Kill)
			panicErr = fmt.Errorf("cli: parser panic: %v", r)
		}

		waitErr := h.cmd.Wait()
		switch {
		case panicErr != nil:
			waitErr = panicErr
		case scanErr != nil:
			waitErr = fmt.Errorf("cli: scanner: %w", scanErr)
		default:
			waitErr = wrapExitError(waitErr)
		}
		if h.stopping.Load() {
			waitErr = agentdeck.ErrTerminated
		} else if waitErr != nil {
			// Abnormal exit mid-stream: surface the exit information as
			// an error event before the channel closes.
			h.trySend(agentdeck.Event{
				Kind:      agentdeck.EventError,
				Text:      waitErr.Error(),
				Timestamp: time.Now(),
			})
		}

		h.finish(waitErr)

		// Always signal cmdDone so Stop can proceed.
		h.cmdDone <- struct{}{}
	}()

	scanErr = h.scanLines(ctx, stdout)
	if scanErr != nil {
		// Surface scanner error as an event before termination.
		h.trySend(agentdeck.Event{
			Kind:      agentdeck.EventError,
			Text:      fmt.Sprintf("cli: scanner: %v", scanErr),
			Timestamp: time.Now(),
		})
		h.mu.Lock()
		_ = signalProcess(h.cmd.Process, os.Kill)
		h.mu.Unlock()
	}
}

// trySend delivers ev without blocking. A full channel drops the event;
// the terminal error is still preserved via finish().
func (h *handle) trySend(ev agentdeck.Event) {
	select {
	case h.events <- ev:
	default:
	}
}

// scanLines reads lines from stdout and sends parsed events to the
// events channel. Parse failures become error events, never silent drops.
func (h *handle) scanLines(ctx context.Context, stdout io.ReadCloser) error {
	scanner := bufio.NewScanner(stdout)
	initCap := min(4096, h.opts.ScannerBuffer)
	scanner.Buffer(make([]byte, 0, initCap), h.opts.ScannerBuffer)

	for scanner.Scan() {
		line := scanner.Text()
		ev, err := h.backend.ParseLine(line)
		if errors.Is(err, ErrSkipLine) {
			continue
		}
		if err != nil {
			ev = agentdeck.Event{
				Kind: agentdeck.EventError,
				Text: fmt.Sprintf("cli: parse: %v", err),
			}
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now()
		}

		select {
		case h.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
	return scanner.Err()
}

// wrapExitError converts a non-zero *exec.ExitError to *agentdeck.ExitError.
// nil → nil, non-ExitError → passthrough, code 0 → nil (clean exit).
// Preserves the error chain via ExitError.Unwrap.
func wrapExitError(err error) error {
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		return err
	}
	code := ee.ExitCode()
	if code == 0 {
		return nil
	}
	return &agentdeck.ExitError{Code: code, Err: err}
}
