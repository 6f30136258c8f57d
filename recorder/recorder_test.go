package recorder_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/recorder"
	"github.com/dmora/agentdeck/store"
)

// fakeStore records persistence calls in memory.
type fakeStore struct {
	mu        sync.Mutex
	messages  map[string]*agentdeck.Message
	toolCalls []agentdeck.ToolUsage
	resolves  []string

	failCreateMessage error
	failSetContent    error
	failFinalize      error
	failResolve       error
	setContentCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[string]*agentdeck.Message)}
}

func (f *fakeStore) CreateMessage(_ context.Context, msg agentdeck.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateMessage != nil {
		return f.failCreateMessage
	}
	m := msg
	f.messages[msg.ID] = &m
	return nil
}

func (f *fakeStore) SetMessageContent(_ context.Context, messageID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setContentCalls++
	if f.failSetContent != nil {
		return f.failSetContent
	}
	if m, ok := f.messages[messageID]; ok {
		m.Content = content
	}
	return nil
}

func (f *fakeStore) FinalizeMessage(_ context.Context, messageID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFinalize != nil {
		return f.failFinalize
	}
	if m, ok := f.messages[messageID]; ok {
		m.Content = content
		m.Finalized = true
	}
	return nil
}

func (f *fakeStore) CreateToolUsage(_ context.Context, tu agentdeck.ToolUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toolCalls = append(f.toolCalls, tu)
	return nil
}

func (f *fakeStore) ResolveToolUsage(_ context.Context, sessionID, output string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failResolve != nil {
		return f.failResolve
	}
	f.resolves = append(f.resolves, output)
	return nil
}

func (f *fakeStore) singleMessage(t *testing.T) agentdeck.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(f.messages))
	}
	for _, m := range f.messages {
		return *m
	}
	panic("unreachable")
}

func fastOptions() recorder.Options {
	return recorder.Options{
		FlushInterval: 10 * time.Millisecond,
		MaxAttempts:   2,
		RetryBackoff:  time.Millisecond,
	}
}

func delta(text string) agentdeck.Event {
	return agentdeck.Event{Kind: agentdeck.EventDelta, Text: text, Timestamp: time.Now()}
}

func TestFinalize_ContentEqualsDeltaConcatenation(t *testing.T) {
	fs := newFakeStore()
	r := recorder.New(fs, nil, "proj1", "sess1", fastOptions())

	var want strings.Builder
	for i := 0; i < 50; i++ {
		text := fmt.Sprintf("chunk-%d ", i)
		want.WriteString(text)
		r.Ingest(delta(text))
		if i%10 == 0 {
			// Let a background flush interleave with ingestion.
			time.Sleep(15 * time.Millisecond)
		}
	}
	r.Ingest(agentdeck.Event{Kind: agentdeck.EventDone, ExitReason: agentdeck.ExitCompleted})
	if err := r.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	msg := fs.singleMessage(t)
	if msg.Content != want.String() {
		t.Errorf("content mismatch:\ngot  %q\nwant %q", msg.Content, want.String())
	}
	if !msg.Finalized {
		t.Error("message should be finalized")
	}
}

func TestBackgroundFlush_WritesSnapshots(t *testing.T) {
	fs := newFakeStore()
	r := recorder.New(fs, nil, "proj1", "sess1", fastOptions())

	r.Ingest(delta("hello"))
	deadline := time.Now().Add(5 * time.Second)
	for {
		fs.mu.Lock()
		n := fs.setContentCalls
		fs.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no snapshot written by background flush")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := r.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

func TestToolUsage_CreatedAgainstCurrentMessage(t *testing.T) {
	fs := newFakeStore()
	r := recorder.New(fs, nil, "proj1", "sess1", fastOptions())

	r.Ingest(delta("let me check"))
	r.Ingest(agentdeck.Event{
		Kind: agentdeck.EventToolStart,
		Tool: &agentdeck.ToolCall{Name: "bash", Input: []byte(`{"command":"ls"}`)},
	})
	r.Ingest(agentdeck.Event{
		Kind: agentdeck.EventToolEnd,
		Tool: &agentdeck.ToolCall{Output: []byte(`"file1"`), Duration: time.Second},
	})
	if err := r.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	msg := fs.singleMessage(t)
	if len(fs.toolCalls) != 1 {
		t.Fatalf("got %d tool usages", len(fs.toolCalls))
	}
	tu := fs.toolCalls[0]
	if tu.MessageID != msg.ID {
		t.Errorf("tool usage references %q, message is %q", tu.MessageID, msg.ID)
	}
	if tu.ToolName != "bash" {
		t.Errorf("tool name = %q", tu.ToolName)
	}
	if len(fs.resolves) != 1 || fs.resolves[0] != `"file1"` {
		t.Errorf("resolves = %v", fs.resolves)
	}
}

func TestToolStart_OpensMessageWhenNoneExists(t *testing.T) {
	fs := newFakeStore()
	r := recorder.New(fs, nil, "proj1", "sess1", fastOptions())

	r.Ingest(agentdeck.Event{
		Kind: agentdeck.EventToolStart,
		Tool: &agentdeck.ToolCall{Name: "web_search"},
	})
	if err := r.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	msg := fs.singleMessage(t)
	if msg.Role != agentdeck.RoleAssistant {
		t.Errorf("role = %q", msg.Role)
	}
	if len(fs.toolCalls) != 1 || fs.toolCalls[0].MessageID != msg.ID {
		t.Errorf("tool usage should reference the opened message")
	}
}

func TestToolUsage_SequencedInEmissionOrder(t *testing.T) {
	fs := newFakeStore()
	r := recorder.New(fs, nil, "proj1", "sess1", fastOptions())

	// Events carry no timestamp; pairing must not depend on the clock.
	for _, name := range []string{"read", "write", "bash"} {
		r.Ingest(agentdeck.Event{
			Kind: agentdeck.EventToolStart,
			Tool: &agentdeck.ToolCall{Name: name},
		})
	}
	if err := r.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if len(fs.toolCalls) != 3 {
		t.Fatalf("got %d tool usages", len(fs.toolCalls))
	}
	for i, tu := range fs.toolCalls {
		if tu.Seq != int64(i+1) {
			t.Errorf("usage %d seq = %d, want %d", i, tu.Seq, i+1)
		}
		if tu.CreatedAt.IsZero() {
			t.Errorf("usage %d has a zero CreatedAt", i)
		}
	}
}

func TestFinalize_NoEvents(t *testing.T) {
	fs := newFakeStore()
	r := recorder.New(fs, nil, "proj1", "sess1", fastOptions())
	if err := r.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize with no events: %v", err)
	}
	if len(fs.messages) != 0 {
		t.Errorf("no message should be created for an empty session")
	}
}

func TestFinalize_Idempotent(t *testing.T) {
	fs := newFakeStore()
	r := recorder.New(fs, nil, "proj1", "sess1", fastOptions())
	r.Ingest(delta("x"))
	if err := r.Finalize(context.Background()); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if err := r.Finalize(context.Background()); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
}

func TestIngest_AfterFinalizeDropped(t *testing.T) {
	fs := newFakeStore()
	r := recorder.New(fs, nil, "proj1", "sess1", fastOptions())
	r.Ingest(delta("before"))
	if err := r.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	r.Ingest(delta(" after"))
	msg := fs.singleMessage(t)
	if msg.Content != "before" {
		t.Errorf("content = %q, want %q", msg.Content, "before")
	}
}

func TestRetryExhaustion_FailsAndFiresCallbackOnce(t *testing.T) {
	fs := newFakeStore()
	fs.failFinalize = errors.New("disk full")

	var calls int
	var mu sync.Mutex
	opts := fastOptions()
	opts.OnFailure = func(error) {
		mu.Lock()
		calls++
		mu.Unlock()
	}
	r := recorder.New(fs, nil, "proj1", "sess1", opts)
	r.Ingest(delta("x"))

	err := r.Finalize(context.Background())
	if err == nil {
		t.Fatal("Finalize should fail after retry exhaustion")
	}
	if !strings.Contains(err.Error(), "attempts exhausted") {
		t.Errorf("err = %v", err)
	}
	if r.Err() == nil {
		t.Error("Err should report the unrecoverable error")
	}
	if err := r.Finalize(context.Background()); err == nil {
		t.Error("repeat Finalize should keep reporting the failure")
	}
	mu.Lock()
	if calls != 1 {
		t.Errorf("OnFailure fired %d times, want 1", calls)
	}
	mu.Unlock()
}

func TestLogicalErrors_AbsorbedNotRetried(t *testing.T) {
	fs := newFakeStore()
	fs.failResolve = store.ErrNoUnresolvedToolUsage

	r := recorder.New(fs, nil, "proj1", "sess1", fastOptions())
	r.Ingest(delta("text"))
	r.Ingest(agentdeck.Event{Kind: agentdeck.EventToolEnd, Tool: &agentdeck.ToolCall{Output: []byte(`"x"`)}})

	// An unmatched tool end is a protocol quirk, not a recording failure.
	if err := r.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}
