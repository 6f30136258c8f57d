package broadcast_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/broadcast"
)

func frame(i int) broadcast.Frame {
	return broadcast.Frame{
		Type:      agentdeck.EventDelta,
		SessionID: "s1",
		Payload:   agentdeck.Event{Kind: agentdeck.EventDelta, Text: fmt.Sprintf("d%d", i)},
	}
}

func TestPublish_OrderPreservedPerSubscriber(t *testing.T) {
	hub := broadcast.NewHub(nil)
	a := hub.Subscribe("p1")
	b := hub.Subscribe("p1")
	defer a.Close()
	defer b.Close()

	for i := 0; i < 10; i++ {
		hub.Publish("p1", frame(i))
	}

	for name, sub := range map[string]*broadcast.Subscription{"a": a, "b": b} {
		for i := 0; i < 10; i++ {
			select {
			case f := <-sub.C():
				if want := fmt.Sprintf("d%d", i); f.Payload.Text != want {
					t.Errorf("%s: frame %d = %q, want %q", name, i, f.Payload.Text, want)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("%s: timed out at frame %d", name, i)
			}
		}
	}
}

func TestPublish_ProjectIsolation(t *testing.T) {
	hub := broadcast.NewHub(nil)
	other := hub.Subscribe("p2")
	defer other.Close()

	hub.Publish("p1", frame(0))

	select {
	case f := <-other.C():
		t.Errorf("subscriber of p2 received p1 frame: %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublish_SlowSubscriberDropsOldest(t *testing.T) {
	hub := broadcast.NewHub(nil, broadcast.WithBufferSize(2))
	slow := hub.Subscribe("p1")
	defer slow.Close()

	// Never read: buffer holds 2, the rest force drop-oldest.
	for i := 0; i < 5; i++ {
		hub.Publish("p1", frame(i))
	}

	// The two newest frames survive.
	got := []string{(<-slow.C()).Payload.Text, (<-slow.C()).Payload.Text}
	if got[0] != "d3" || got[1] != "d4" {
		t.Errorf("surviving frames = %v, want [d3 d4]", got)
	}
}

func TestPublish_SlowSubscriberDoesNotBlockPeers(t *testing.T) {
	hub := broadcast.NewHub(nil, broadcast.WithBufferSize(1))
	slow := hub.Subscribe("p1")
	fast := hub.Subscribe("p1")
	defer slow.Close()
	defer fast.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Publish("p1", frame(i))
		}
	}()

	// Drain the fast subscriber while the slow one never reads.
	count := 0
	timeout := time.After(5 * time.Second)
	for count < 100 {
		select {
		case <-fast.C():
			count++
		case <-timeout:
			t.Fatalf("fast subscriber stalled at %d frames", count)
		}
	}
	<-done
}

func TestSubscribe_NoReplayForLateSubscriber(t *testing.T) {
	hub := broadcast.NewHub(nil)
	early := hub.Subscribe("p1")
	defer early.Close()

	hub.Publish("p1", frame(0))

	late := hub.Subscribe("p1")
	defer late.Close()
	select {
	case f := <-late.C():
		t.Errorf("late subscriber received replayed frame: %+v", f)
	case <-time.After(100 * time.Millisecond):
	}

	hub.Publish("p1", frame(1))
	select {
	case f := <-late.C():
		if f.Payload.Text != "d1" {
			t.Errorf("live frame = %q, want d1", f.Payload.Text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("late subscriber missed live frame")
	}
}

func TestClose_IdempotentAndUnregisters(t *testing.T) {
	hub := broadcast.NewHub(nil)
	sub := hub.Subscribe("p1")
	if got := hub.SubscriberCount("p1"); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
	sub.Close()
	sub.Close()
	if got := hub.SubscriberCount("p1"); got != 0 {
		t.Errorf("count after close = %d, want 0", got)
	}
	// Publishing after close must not panic.
	hub.Publish("p1", frame(0))
}

func TestClose_ConcurrentWithPublish(t *testing.T) {
	hub := broadcast.NewHub(nil, broadcast.WithBufferSize(1))
	sub := hub.Subscribe("p1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Publish("p1", frame(i))
		}
	}()
	sub.Close()
	<-done
}

func TestSubscription_ProjectID(t *testing.T) {
	hub := broadcast.NewHub(nil)
	sub := hub.Subscribe("p9")
	defer sub.Close()
	if sub.ProjectID() != "p9" {
		t.Errorf("ProjectID = %q", sub.ProjectID())
	}
}
