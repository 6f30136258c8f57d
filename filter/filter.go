// Package filter provides composable channel middleware for filtering
// agentdeck event streams. Consumers wrap an event channel with these
// functions to select the event granularity they need.
package filter

import (
	"context"

	"github.com/dmora/agentdeck"
)

// Filter returns a channel that only passes events of the given kinds.
// Spawns a goroutine that exits when ctx is cancelled or ch is closed.
// The returned channel is closed when the goroutine exits.
func Filter(ctx context.Context, ch <-chan agentdeck.Event, kinds ...agentdeck.EventKind) <-chan agentdeck.Event {
	allowed := make(map[agentdeck.EventKind]struct{}, len(kinds))
	for _, k := range kinds {
		allowed[k] = struct{}{}
	}
	return pipe(ctx, ch, func(ev agentdeck.Event) bool {
		_, ok := allowed[ev.Kind]
		return ok
	})
}

// Kinds returns a predicate reporting whether a kind is in the set.
// Useful outside channel pipelines, e.g. frame-level filtering in
// transport code.
func Kinds(kinds ...agentdeck.EventKind) func(agentdeck.EventKind) bool {
	allowed := make(map[agentdeck.EventKind]struct{}, len(kinds))
	for _, k := range kinds {
		allowed[k] = struct{}{}
	}
	return func(k agentdeck.EventKind) bool {
		_, ok := allowed[k]
		return ok
	}
}

// Coarse returns a channel that drops delta events, passing only tool,
// done, and error events. Spawns a goroutine that exits when ctx is
// cancelled or ch is closed.
func Coarse(ctx context.Context, ch <-chan agentdeck.Event) <-chan agentdeck.Event {
	return pipe(ctx, ch, func(ev agentdeck.Event) bool {
		return ev.Kind != agentdeck.EventDelta
	})
}

// Terminal returns a channel that passes only done and error events.
// Spawns a goroutine that exits when ctx is cancelled or ch is closed.
func Terminal(ctx context.Context, ch <-chan agentdeck.Event) <-chan agentdeck.Event {
	return pipe(ctx, ch, func(ev agentdeck.Event) bool {
		return ev.Kind == agentdeck.EventDone || ev.Kind == agentdeck.EventError
	})
}

// pipe spawns a goroutine that reads from ch, passes events matching
// the predicate to the returned channel, and closes it when ch closes
// or ctx is cancelled. Callers must either drain the returned channel
// or cancel ctx to avoid goroutine leaks. Events accepted by the
// predicate may be silently dropped if ctx is cancelled mid-send.
func pipe(ctx context.Context, ch <-chan agentdeck.Event, accept func(agentdeck.Event) bool) <-chan agentdeck.Event {
	out := make(chan agentdeck.Event)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if !accept(ev) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
