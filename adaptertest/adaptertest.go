// Package adaptertest provides scripted fakes for testing orchestration
// code against the adapter contract without real subprocesses.
//
// [Fake] implements adapter.Adapter; each Start returns a [FakeHandle]
// that either plays a pre-set script of events or is driven manually via
// Emit/Finish. CLI backend compliance suites live in the clitest
// sub-package.
package adaptertest

import (
	"context"
	"sync"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/adapter"
)

// Fake is a scripted adapter.Adapter for tests.
//
// If Script is non-nil, each handle plays the script asynchronously and
// then finishes with ScriptErr. If Script is nil, the test drives the
// handle manually through Emit and Finish.
type Fake struct {
	// StartErr, when set, is returned by Start (no handle is created).
	StartErr error

	// ValidateErr, when set, is returned by Validate.
	ValidateErr error

	// Script is played on each started handle. Nil means manual driving.
	Script []agentdeck.Event

	// ScriptErr is the terminal error after the script completes.
	ScriptErr error

	mu      sync.Mutex
	handles []*FakeHandle
}

var _ adapter.Adapter = (*Fake)(nil)

// Start returns a new FakeHandle, recording it for later inspection.
func (f *Fake) Start(_ context.Context, session agentdeck.Session, opts ...agentdeck.Option) (adapter.Handle, error) {
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	so := agentdeck.ResolveOptions(opts...)
	if so.Prompt != "" {
		session.Prompt = so.Prompt
	}
	if so.Model != "" {
		session.Model = so.Model
	}

	h := NewHandle(session)
	f.mu.Lock()
	f.handles = append(f.handles, h)
	f.mu.Unlock()

	if f.Script != nil {
		script := make([]agentdeck.Event, len(f.Script))
		copy(script, f.Script)
		errAfter := f.ScriptErr
		go func() {
			for _, ev := range script {
				if !h.Emit(ev) {
					return
				}
			}
			h.Finish(errAfter)
		}()
	}
	return h, nil
}

// Validate returns ValidateErr.
func (f *Fake) Validate() error { return f.ValidateErr }

// Handles returns all handles started so far, in start order.
func (f *Fake) Handles() []*FakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeHandle, len(f.handles))
	copy(out, f.handles)
	return out
}

// FakeHandle is a manually drivable adapter.Handle.
type FakeHandle struct {
	session agentdeck.Session

	events chan agentdeck.Event
	done   chan struct{}

	mu       sync.Mutex
	sends    []string
	termErr  error
	stopped  bool
	finished bool
}

var _ adapter.Handle = (*FakeHandle)(nil)

// NewHandle creates an unstarted fake handle for session.
func NewHandle(session agentdeck.Session) *FakeHandle {
	return &FakeHandle{
		session: session,
		events:  make(chan agentdeck.Event, 64),
		done:    make(chan struct{}),
	}
}

// Session returns the session the handle was started with.
func (h *FakeHandle) Session() agentdeck.Session { return h.session }

// Emit delivers ev to the events channel. Returns false if the handle
// has already finished or been stopped (the event is discarded, matching
// the Stop contract) or if the buffered channel is full.
func (h *FakeHandle) Emit(ev agentdeck.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped || h.finished {
		return false
	}
	select {
	case h.events <- ev:
		return true
	default:
		return false
	}
}

// Finish closes the event stream with the given terminal error.
// Safe to call multiple times; only the first call takes effect.
func (h *FakeHandle) Finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.finished = true
	h.termErr = err
	close(h.events)
	close(h.done)
}

// Sends returns all messages passed to Send, in order.
func (h *FakeHandle) Sends() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.sends))
	copy(out, h.sends)
	return out
}

// Stopped reports whether Stop has been called.
func (h *FakeHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Events implements adapter.Handle.
func (h *FakeHandle) Events() <-chan agentdeck.Event { return h.events }

// Send records the message.
func (h *FakeHandle) Send(_ context.Context, message string) error {
	select {
	case <-h.done:
		return agentdeck.ErrTerminated
	default:
	}
	h.mu.Lock()
	h.sends = append(h.sends, message)
	h.mu.Unlock()
	return nil
}

// Stop marks the handle stopped and finishes it with ErrTerminated.
// Idempotent; no events are delivered after Stop returns.
func (h *FakeHandle) Stop(context.Context) error {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.Finish(agentdeck.ErrTerminated)
	return nil
}

// FinishClean closes the event stream with no terminal error unless the
// handle was stopped first. Convenience for script-style tests.
func (h *FakeHandle) FinishClean() { h.Finish(nil) }

// Wait blocks until the handle finishes.
func (h *FakeHandle) Wait() error {
	<-h.done
	return h.termErr
}

// Err returns the terminal error, or nil if still running.
func (h *FakeHandle) Err() error {
	select {
	case <-h.done:
		return h.termErr
	default:
		return nil
	}
}
