// Package recorder projects a session's event stream into durable
// message and tool-usage records.
//
// Ingest is cheap and synchronous (it only mutates in-memory state) so
// the caller's event pump is never stalled by persistence latency. Disk
// writes happen on the recorder's own flush goroutine: a debounced
// full-content snapshot per message, plus ordered tool-usage operations.
// Because deltas accumulate in arrival order and every write is a
// snapshot of that accumulation, the persisted content always equals the
// in-order concatenation of deltas once the session finalizes, no matter
// how flushes interleave with ingestion.
//
// Persistence failures are retried with bounded attempts; on exhaustion
// the recorder reports failure so the orchestrator can force the session
// into crashed with a recording-failure exit reason.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/store"
)

// Store is the persistence contract the recorder writes through.
// *store.Store satisfies it; tests substitute fakes.
type Store interface {
	CreateMessage(ctx context.Context, msg agentdeck.Message) error
	SetMessageContent(ctx context.Context, messageID, content string) error
	FinalizeMessage(ctx context.Context, messageID, content string) error
	CreateToolUsage(ctx context.Context, tu agentdeck.ToolUsage) error
	ResolveToolUsage(ctx context.Context, sessionID, output string, duration time.Duration) error
}

// Default tuning values.
const (
	DefaultFlushInterval = 200 * time.Millisecond
	DefaultMaxAttempts   = 3
	DefaultRetryBackoff  = 50 * time.Millisecond
)

// Options tunes a Recorder.
type Options struct {
	// FlushInterval is the debounce window between background writes.
	FlushInterval time.Duration

	// MaxAttempts bounds retries per persistence operation.
	MaxAttempts int

	// RetryBackoff is the delay between retry attempts.
	RetryBackoff time.Duration

	// OnFailure, if set, is called once when retries are exhausted.
	OnFailure func(err error)
}

func (o *Options) setDefaults() {
	if o.FlushInterval <= 0 {
		o.FlushInterval = DefaultFlushInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
}

// op is one ordered persistence operation. Content snapshots are not ops:
// they coalesce into a dirty flag and flush as a single write.
type op struct {
	createMessage *agentdeck.Message
	createTool    *agentdeck.ToolUsage
	resolveTool   *toolResolution
}

type toolResolution struct {
	output   string
	duration time.Duration
}

// Recorder records one session's stream. Not safe for concurrent Ingest
// calls; the single event pump is the only ingester.
type Recorder struct {
	st        Store
	log       *zap.Logger
	sessionID string
	projectID string
	opts      Options

	mu        sync.Mutex
	msgID     string // current open message, "" if none
	toolSeq   int64  // emission-order counter for tool usages
	content   []byte // accumulated content of the open message
	dirty     bool
	ops       []op
	failedErr error
	finalized bool

	stopFlush chan struct{}
	flushDone chan struct{}
	failOnce  sync.Once
}

// New creates a Recorder for one session and starts its flush goroutine.
// A nil logger disables logging.
func New(st Store, log *zap.Logger, projectID, sessionID string, opts Options) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	opts.setDefaults()
	r := &Recorder{
		st:        st,
		log:       log.With(zap.String("session_id", sessionID)),
		sessionID: sessionID,
		projectID: projectID,
		opts:      opts,
		stopFlush: make(chan struct{}),
		flushDone: make(chan struct{}),
	}
	go r.flushLoop()
	return r
}

// Ingest records one event in memory. It performs no I/O.
func (r *Recorder) Ingest(ev agentdeck.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized || r.failedErr != nil {
		return
	}

	switch ev.Kind {
	case agentdeck.EventDelta:
		r.ensureMessageLocked()
		r.content = append(r.content, ev.Text...)
		r.dirty = true

	case agentdeck.EventToolStart:
		// Every tool usage references a message that exists at invocation
		// time; a turn that opens with a tool call gets an empty one.
		r.ensureMessageLocked()
		r.toolSeq++
		tu := agentdeck.ToolUsage{
			ID:        uuid.NewString(),
			MessageID: r.msgID,
			SessionID: r.sessionID,
			Seq:       r.toolSeq,
			CreatedAt: ev.Timestamp,
		}
		if tu.CreatedAt.IsZero() {
			tu.CreatedAt = time.Now()
		}
		if ev.Tool != nil {
			tu.ToolName = ev.Tool.Name
			tu.Input = string(ev.Tool.Input)
		}
		r.ops = append(r.ops, op{createTool: &tu})

	case agentdeck.EventToolEnd:
		res := &toolResolution{}
		if ev.Tool != nil {
			res.output = string(ev.Tool.Output)
			res.duration = ev.Tool.Duration
		}
		r.ops = append(r.ops, op{resolveTool: res})

	case agentdeck.EventDone, agentdeck.EventError:
		// Terminal handling happens in Finalize, driven by the pump.
	}
}

// ensureMessageLocked opens the session's current message if none is open,
// queueing its creation. Caller holds r.mu.
func (r *Recorder) ensureMessageLocked() {
	if r.msgID != "" {
		return
	}
	r.msgID = uuid.NewString()
	r.content = r.content[:0]
	msg := agentdeck.Message{
		ID:        r.msgID,
		SessionID: r.sessionID,
		ProjectID: r.projectID,
		Role:      agentdeck.RoleAssistant,
		CreatedAt: time.Now(),
	}
	r.ops = append(r.ops, op{createMessage: &msg})
}

// Finalize stops the flush goroutine, writes all outstanding state, and
// freezes the open message. Returns the first unrecoverable persistence
// error, including any that occurred on the background flusher.
func (r *Recorder) Finalize(ctx context.Context) error {
	r.mu.Lock()
	if r.finalized {
		err := r.failedErr
		r.mu.Unlock()
		return err
	}
	r.finalized = true
	r.mu.Unlock()

	close(r.stopFlush)
	<-r.flushDone

	r.mu.Lock()
	if r.failedErr != nil {
		err := r.failedErr
		r.mu.Unlock()
		return err
	}
	ops := r.ops
	r.ops = nil
	msgID := r.msgID
	content := string(r.content)
	r.dirty = false
	r.mu.Unlock()

	if err := r.applyOps(ctx, ops); err != nil {
		r.fail(err)
		return err
	}
	if msgID != "" {
		err := r.withRetry(ctx, "finalize message", func() error {
			return r.st.FinalizeMessage(ctx, msgID, content)
		})
		if err != nil {
			r.fail(err)
			return err
		}
	}
	return nil
}

// Err returns the recorder's unrecoverable error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failedErr
}

// flushLoop debounces background writes until Finalize stops it.
func (r *Recorder) flushLoop() {
	defer close(r.flushDone)
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.flushOnce(context.Background()); err != nil {
				r.fail(err)
				return
			}
		case <-r.stopFlush:
			return
		}
	}
}

// flushOnce drains queued ops and writes a content snapshot if dirty.
func (r *Recorder) flushOnce(ctx context.Context) error {
	r.mu.Lock()
	if r.failedErr != nil {
		err := r.failedErr
		r.mu.Unlock()
		return err
	}
	ops := r.ops
	r.ops = nil
	var msgID, content string
	if r.dirty {
		msgID = r.msgID
		content = string(r.content)
		r.dirty = false
	}
	r.mu.Unlock()

	if err := r.applyOps(ctx, ops); err != nil {
		return err
	}
	if msgID != "" {
		return r.withRetry(ctx, "snapshot content", func() error {
			return r.st.SetMessageContent(ctx, msgID, content)
		})
	}
	return nil
}

// applyOps executes queued operations in ingestion order.
func (r *Recorder) applyOps(ctx context.Context, ops []op) error {
	for _, o := range ops {
		var err error
		switch {
		case o.createMessage != nil:
			err = r.withRetry(ctx, "create message", func() error {
				return r.st.CreateMessage(ctx, *o.createMessage)
			})
		case o.createTool != nil:
			err = r.withRetry(ctx, "create tool usage", func() error {
				return r.st.CreateToolUsage(ctx, *o.createTool)
			})
		case o.resolveTool != nil:
			err = r.withRetry(ctx, "resolve tool usage", func() error {
				return r.st.ResolveToolUsage(ctx, r.sessionID, o.resolveTool.output, o.resolveTool.duration)
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// withRetry runs fn with bounded attempts and fixed backoff. Logical
// errors (finalized message, unmatched tool end) are logged and absorbed:
// they indicate a protocol quirk, not a storage fault, and retrying them
// cannot succeed.
func (r *Recorder) withRetry(ctx context.Context, what string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrMessageFinalized) || errors.Is(err, store.ErrNoUnresolvedToolUsage) {
			r.log.Warn("skipping unrecoverable write", zap.String("op", what), zap.Error(err))
			return nil
		}
		r.log.Warn("persistence write failed",
			zap.String("op", what), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-time.After(r.opts.RetryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("recorder: %s: attempts exhausted: %w", what, err)
}

// fail records the unrecoverable error and fires OnFailure once.
func (r *Recorder) fail(err error) {
	r.mu.Lock()
	if r.failedErr == nil {
		r.failedErr = err
	}
	r.mu.Unlock()
	r.failOnce.Do(func() {
		r.log.Error("recording failed", zap.Error(err))
		if r.opts.OnFailure != nil {
			r.opts.OnFailure(err)
		}
	})
}
