// Package orchestrator owns session lifecycles and per-project queues.
//
// Each project runs at most one session at a time. Requests against a
// busy project queue FIFO up to a configurable depth; when the active
// session reaches a terminal state the next pending request dispatches
// automatically. The orchestrator pumps every session's event stream,
// publishing each event to the broadcast hub before handing it to the
// recorder, and watches for inactivity so a wedged CLI cannot hold a
// project forever.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/adapter"
	"github.com/dmora/agentdeck/broadcast"
	"github.com/dmora/agentdeck/catalog"
	"github.com/dmora/agentdeck/recorder"
)

// Default tuning values.
const (
	DefaultMaxQueueDepth     = 8
	DefaultInactivityTimeout = 5 * time.Minute
	DefaultStopTimeout       = 30 * time.Second
)

// Store is the persistence surface the orchestrator writes through.
type Store interface {
	UpsertProject(ctx context.Context, projectID string, status agentdeck.ProjectStatus) error
	SetActiveSession(ctx context.Context, projectID, sessionID string) error
	CreateRequest(ctx context.Context, req agentdeck.Request) error
	UpdateRequestStatus(ctx context.Context, requestID string, status agentdeck.RequestStatus, sessionID string) error
	CreateSession(ctx context.Context, rec agentdeck.SessionRecord) error
	UpdateSessionState(ctx context.Context, sessionID string, state agentdeck.SessionState, reason agentdeck.ExitReason) error
}

// Options tunes an Orchestrator.
type Options struct {
	// MaxQueueDepth bounds pending requests per project.
	MaxQueueDepth int

	// InactivityTimeout stops a session that emits no events for this long.
	InactivityTimeout time.Duration

	// StopTimeout bounds how long a forced stop may take.
	StopTimeout time.Duration

	// Recorder tunes the per-session recorders.
	Recorder recorder.Options
}

func (o *Options) setDefaults() {
	if o.MaxQueueDepth <= 0 {
		o.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if o.InactivityTimeout <= 0 {
		o.InactivityTimeout = DefaultInactivityTimeout
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
}

// EnqueueParams describes one incoming request.
type EnqueueParams struct {
	ProjectID   string
	CWD         string
	Prompt      string
	Mode        agentdeck.RequestMode
	CLIType     agentdeck.CLIType
	Model       string
	Attachments []agentdeck.Attachment
}

// Snapshot is a point-in-time view of one project.
type Snapshot struct {
	ProjectID       string                  `json:"projectId"`
	Status          agentdeck.ProjectStatus `json:"status"`
	ActiveSessionID string                  `json:"activeSessionId,omitempty"`
	QueueDepth      int                     `json:"queueDepth"`
}

// Orchestrator is the session lifecycle manager.
type Orchestrator struct {
	log      *zap.Logger
	adapters map[agentdeck.CLIType]adapter.Adapter
	st       Store
	recStore recorder.Store
	hub      *broadcast.Hub
	cat      *catalog.Catalog
	opts     Options

	mu       sync.Mutex
	projects map[string]*project
	requests map[string]*requestRef
	closed   bool
	wg       sync.WaitGroup
}

type project struct {
	id     string
	cwd    string
	queue  []*agentdeck.Request
	active *activeSession
}

type activeSession struct {
	id            string
	projectID     string
	requestID     string
	handle        adapter.Handle
	rec           *recorder.Recorder
	stopRequested bool
	timedOut      bool
	recFailed     bool
}

// requestRef tracks where a request lives so CancelPending can find it.
type requestRef struct {
	projectID  string
	dispatched bool
}

// New creates an Orchestrator. A nil logger disables logging.
func New(log *zap.Logger, st Store, recStore recorder.Store, hub *broadcast.Hub, cat *catalog.Catalog, adapters map[agentdeck.CLIType]adapter.Adapter, opts Options) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if cat == nil {
		cat = catalog.Builtin()
	}
	opts.setDefaults()
	return &Orchestrator{
		log:      log,
		adapters: adapters,
		st:       st,
		recStore: recStore,
		hub:      hub,
		cat:      cat,
		opts:     opts,
		projects: make(map[string]*project),
		requests: make(map[string]*requestRef),
	}
}

// Enqueue accepts a request. If the project is idle the request
// dispatches immediately; otherwise it queues FIFO. The depth bound
// counts the dispatched request, so a busy project with MaxQueueDepth 1
// rejects every enqueue. Returns agentdeck.ErrQueueFull at the bound and
// agentdeck.ErrUnavailable when no adapter handles the CLI type.
func (o *Orchestrator) Enqueue(ctx context.Context, p EnqueueParams) (agentdeck.Request, error) {
	if _, ok := o.adapters[p.CLIType]; !ok {
		return agentdeck.Request{}, fmt.Errorf("cli type %q: %w", p.CLIType, agentdeck.ErrUnavailable)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return agentdeck.Request{}, agentdeck.ErrUnavailable
	}

	proj := o.projects[p.ProjectID]
	if proj == nil {
		proj = &project{id: p.ProjectID, cwd: p.CWD}
		o.projects[p.ProjectID] = proj
		status := agentdeck.ProjectIdle
		if err := o.st.UpsertProject(ctx, p.ProjectID, status); err != nil {
			delete(o.projects, p.ProjectID)
			return agentdeck.Request{}, err
		}
	}
	if p.CWD != "" {
		proj.cwd = p.CWD
	}

	if proj.active != nil && len(proj.queue)+1 >= o.opts.MaxQueueDepth {
		return agentdeck.Request{}, fmt.Errorf("project %s: %w", p.ProjectID, agentdeck.ErrQueueFull)
	}

	req := &agentdeck.Request{
		ID:          uuid.NewString(),
		ProjectID:   p.ProjectID,
		Prompt:      p.Prompt,
		Attachments: p.Attachments,
		Mode:        p.Mode,
		CLIType:     p.CLIType,
		Model:       p.Model,
		Status:      agentdeck.RequestPending,
		EnqueuedAt:  time.Now(),
	}
	if req.Mode == "" {
		req.Mode = agentdeck.ModeAct
	}
	if err := o.st.CreateRequest(ctx, *req); err != nil {
		return agentdeck.Request{}, err
	}
	o.requests[req.ID] = &requestRef{projectID: p.ProjectID}

	if proj.active == nil {
		if err := o.dispatchLocked(ctx, proj, req); err != nil {
			return *req, err
		}
	} else {
		proj.queue = append(proj.queue, req)
		o.log.Info("request queued",
			zap.String("project_id", p.ProjectID),
			zap.String("request_id", req.ID),
			zap.Int("queue_depth", len(proj.queue)))
	}
	return *req, nil
}

// CancelPending removes a request that has not dispatched yet. A request
// already running returns agentdeck.ErrRequestDispatched; an unknown one
// returns agentdeck.ErrRequestNotFound.
func (o *Orchestrator) CancelPending(ctx context.Context, requestID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ref := o.requests[requestID]
	if ref == nil {
		return agentdeck.ErrRequestNotFound
	}
	if ref.dispatched {
		return agentdeck.ErrRequestDispatched
	}
	proj := o.projects[ref.projectID]
	for i, req := range proj.queue {
		if req.ID == requestID {
			proj.queue = append(proj.queue[:i], proj.queue[i+1:]...)
			break
		}
	}
	delete(o.requests, requestID)
	if err := o.st.UpdateRequestStatus(ctx, requestID, agentdeck.RequestCancelled, ""); err != nil {
		return err
	}
	o.log.Info("request cancelled", zap.String("request_id", requestID))
	return nil
}

// Stop cancels the project's active session. The session lands in the
// cancelled state; pending requests stay queued and the next one
// dispatches once the stop completes. Returns
// agentdeck.ErrSessionNotFound when nothing is running.
func (o *Orchestrator) Stop(ctx context.Context, projectID string) error {
	o.mu.Lock()
	proj := o.projects[projectID]
	if proj == nil || proj.active == nil {
		o.mu.Unlock()
		return agentdeck.ErrSessionNotFound
	}
	as := proj.active
	as.stopRequested = true
	o.mu.Unlock()

	o.log.Info("stopping session",
		zap.String("project_id", projectID),
		zap.String("session_id", as.id))
	stopCtx, cancel := context.WithTimeout(context.Background(), o.opts.StopTimeout)
	defer cancel()
	return as.handle.Stop(stopCtx)
}

// Send forwards a follow-up input to the project's active session.
// Only chat-mode sessions accept input; others return
// agentdeck.ErrSendNotSupported from the adapter.
func (o *Orchestrator) Send(ctx context.Context, projectID, text string) error {
	o.mu.Lock()
	proj := o.projects[projectID]
	if proj == nil || proj.active == nil {
		o.mu.Unlock()
		return agentdeck.ErrSessionNotFound
	}
	h := proj.active.handle
	o.mu.Unlock()
	return h.Send(ctx, text)
}

// Status reports a project's current state.
func (o *Orchestrator) Status(projectID string) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := Snapshot{ProjectID: projectID, Status: agentdeck.ProjectIdle}
	proj := o.projects[projectID]
	if proj == nil {
		return snap
	}
	snap.QueueDepth = len(proj.queue)
	if proj.active != nil {
		snap.Status = agentdeck.ProjectRunning
		snap.ActiveSessionID = proj.active.id
	}
	return snap
}

// Close stops all active sessions and waits for their pumps to drain.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	var handles []adapter.Handle
	for _, proj := range o.projects {
		proj.queue = nil
		if proj.active != nil {
			proj.active.stopRequested = true
			handles = append(handles, proj.active.handle)
		}
	}
	o.mu.Unlock()

	for _, h := range handles {
		stopCtx, cancel := context.WithTimeout(ctx, o.opts.StopTimeout)
		if err := h.Stop(stopCtx); err != nil {
			o.log.Warn("stop during shutdown", zap.Error(err))
		}
		cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatchLocked starts a session for req. Caller holds o.mu and must
// have observed the project idle; a live session refuses the dispatch.
func (o *Orchestrator) dispatchLocked(ctx context.Context, proj *project, req *agentdeck.Request) error {
	if proj.active != nil {
		return fmt.Errorf("project %s: session %s still active", proj.id, proj.active.id)
	}
	ad := o.adapters[req.CLIType]
	sessionID := uuid.NewString()

	sess := agentdeck.Session{
		ID:        sessionID,
		ProjectID: proj.id,
		CLIType:   req.CLIType,
		CWD:       proj.cwd,
		Model:     o.cat.Normalize(req.CLIType, req.Model),
		Prompt:    composePrompt(req),
	}
	var opts []agentdeck.Option
	if req.Mode == agentdeck.ModeChat {
		sess.Options = map[string]string{agentdeck.OptionStream: "true"}
	}

	rec := agentdeck.SessionRecord{
		ID:        sessionID,
		ProjectID: proj.id,
		CLIType:   req.CLIType,
		State:     agentdeck.SessionQueued,
		StartedAt: time.Now(),
	}
	if err := o.st.CreateSession(ctx, rec); err != nil {
		return err
	}
	if err := o.st.UpdateRequestStatus(ctx, req.ID, agentdeck.RequestDispatched, sessionID); err != nil {
		return err
	}
	if ref := o.requests[req.ID]; ref != nil {
		ref.dispatched = true
	}
	req.Status = agentdeck.RequestDispatched
	req.SessionID = sessionID

	handle, err := ad.Start(context.Background(), sess, opts...)
	if err != nil {
		o.log.Error("session start failed",
			zap.String("project_id", proj.id),
			zap.String("session_id", sessionID),
			zap.Error(err))
		o.finishRequestLocked(ctx, req.ID, agentdeck.RequestCancelled)
		if serr := o.st.UpdateSessionState(ctx, sessionID, agentdeck.SessionCrashed, agentdeck.ExitCrashed); serr != nil {
			o.log.Error("record crashed session", zap.Error(serr))
		}
		return err
	}

	as := &activeSession{
		id:        sessionID,
		projectID: proj.id,
		requestID: req.ID,
		handle:    handle,
	}
	as.rec = recorder.New(o.recStore, o.log, proj.id, sessionID, o.recorderOptions(as))
	proj.active = as

	if err := o.st.UpdateSessionState(ctx, sessionID, agentdeck.SessionRunning, ""); err != nil {
		o.log.Error("record running session", zap.Error(err))
	}
	if err := o.st.SetActiveSession(ctx, proj.id, sessionID); err != nil {
		o.log.Error("record active session", zap.Error(err))
	}
	if err := o.st.UpsertProject(ctx, proj.id, agentdeck.ProjectRunning); err != nil {
		o.log.Error("record busy project", zap.Error(err))
	}

	o.log.Info("session started",
		zap.String("project_id", proj.id),
		zap.String("session_id", sessionID),
		zap.String("cli_type", string(req.CLIType)),
		zap.String("model", sess.Model))

	o.wg.Add(1)
	go o.pump(as)
	return nil
}

// recorderOptions wires the recorder failure callback: exhausted retries
// force the session down so it terminates with a recording failure.
func (o *Orchestrator) recorderOptions(as *activeSession) recorder.Options {
	opts := o.opts.Recorder
	userCB := opts.OnFailure
	opts.OnFailure = func(err error) {
		o.mu.Lock()
		as.recFailed = true
		o.mu.Unlock()
		stopCtx, cancel := context.WithTimeout(context.Background(), o.opts.StopTimeout)
		defer cancel()
		if serr := as.handle.Stop(stopCtx); serr != nil {
			o.log.Warn("stop after recording failure", zap.Error(serr))
		}
		if userCB != nil {
			userCB(err)
		}
	}
	return opts
}

// pump drains one session's events: publish to the hub first, then hand
// the event to the recorder. When the stream ends it settles the terminal
// state and dispatches the next queued request.
func (o *Orchestrator) pump(as *activeSession) {
	defer o.wg.Done()

	var (
		sawDone    bool
		doneReason agentdeck.ExitReason
		sawError   bool
	)
	timer := time.NewTimer(o.opts.InactivityTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-as.handle.Events():
			if !ok {
				o.settle(as, sawDone, doneReason, sawError)
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(o.opts.InactivityTimeout)

			switch ev.Kind {
			case agentdeck.EventDone:
				sawDone = true
				doneReason = ev.ExitReason
			case agentdeck.EventError:
				sawError = true
			}

			o.hub.Publish(as.projectID, broadcast.Frame{
				Type:      ev.Kind,
				SessionID: as.id,
				Payload:   ev,
			})
			as.rec.Ingest(ev)

		case <-timer.C:
			o.mu.Lock()
			as.timedOut = true
			o.mu.Unlock()
			o.log.Warn("session inactive, stopping",
				zap.String("session_id", as.id),
				zap.Duration("timeout", o.opts.InactivityTimeout))
			go func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), o.opts.StopTimeout)
				defer cancel()
				if err := as.handle.Stop(stopCtx); err != nil {
					o.log.Warn("stop after inactivity", zap.Error(err))
				}
			}()
			// Keep draining until the handle closes its channel.
		}
	}
}

// settle finalizes the recorder, records the terminal state, and
// dispatches the next queued request if any.
func (o *Orchestrator) settle(as *activeSession, sawDone bool, doneReason agentdeck.ExitReason, sawError bool) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.StopTimeout)
	defer cancel()

	recErr := as.rec.Finalize(ctx)

	o.mu.Lock()
	state, reason := terminalOutcome(as, sawDone, doneReason, sawError)
	o.mu.Unlock()
	if recErr != nil {
		state, reason = agentdeck.SessionCrashed, agentdeck.ExitRecordingFailed
	}

	if err := o.st.UpdateSessionState(ctx, as.id, state, reason); err != nil {
		o.log.Error("record terminal state", zap.Error(err))
	}
	// Retire the session and hand the project over in one critical
	// section. A concurrent Enqueue must never observe the project idle
	// while a pending request is about to dispatch, or two sessions could
	// go live for one project.
	o.mu.Lock()
	o.finishRequestLocked(ctx, as.requestID, requestOutcome(state))
	proj := o.projects[as.projectID]
	proj.active = nil
	if err := o.st.SetActiveSession(ctx, as.projectID, ""); err != nil {
		o.log.Error("clear active session", zap.Error(err))
	}
	o.dispatchNextLocked(ctx, proj)
	if proj.active == nil {
		// Idle for admission purposes; the persisted status keeps the
		// last session's outcome visible.
		status := agentdeck.ProjectIdle
		switch state {
		case agentdeck.SessionCancelled:
			status = agentdeck.ProjectStopped
		case agentdeck.SessionCrashed, agentdeck.SessionTimedOut:
			status = agentdeck.ProjectError
		}
		if err := o.st.UpsertProject(ctx, as.projectID, status); err != nil {
			o.log.Error("record idle project", zap.Error(err))
		}
	}
	o.mu.Unlock()

	o.log.Info("session finished",
		zap.String("project_id", as.projectID),
		zap.String("session_id", as.id),
		zap.String("state", string(state)),
		zap.String("exit_reason", string(reason)))
}

// dispatchNextLocked starts the oldest pending request, skipping past
// any whose dispatch fails so one bad request cannot strand the rest of
// the queue. Caller holds o.mu.
func (o *Orchestrator) dispatchNextLocked(ctx context.Context, proj *project) {
	for !o.closed && proj.active == nil && len(proj.queue) > 0 {
		next := proj.queue[0]
		proj.queue = proj.queue[1:]
		if err := o.dispatchLocked(ctx, proj, next); err != nil {
			o.log.Error("dispatch pending request",
				zap.String("project_id", proj.id),
				zap.String("request_id", next.ID),
				zap.Error(err))
		}
	}
}

// finishRequestLocked moves a request to its terminal status and drops
// its cancel index entry. Caller holds o.mu.
func (o *Orchestrator) finishRequestLocked(ctx context.Context, requestID string, status agentdeck.RequestStatus) {
	delete(o.requests, requestID)
	if err := o.st.UpdateRequestStatus(ctx, requestID, status, ""); err != nil {
		o.log.Error("record request status", zap.Error(err))
	}
}

// terminalOutcome maps how the session ended to its state and exit
// reason. Caller holds o.mu.
func terminalOutcome(as *activeSession, sawDone bool, doneReason agentdeck.ExitReason, sawError bool) (agentdeck.SessionState, agentdeck.ExitReason) {
	switch {
	case as.recFailed:
		return agentdeck.SessionCrashed, agentdeck.ExitRecordingFailed
	case as.stopRequested:
		return agentdeck.SessionCancelled, agentdeck.ExitCancelled
	case as.timedOut:
		return agentdeck.SessionTimedOut, agentdeck.ExitTimedOut
	case sawDone:
		if doneReason == "" {
			doneReason = agentdeck.ExitCompleted
		}
		return agentdeck.SessionCompleted, doneReason
	case sawError:
		return agentdeck.SessionCrashed, agentdeck.ExitCrashed
	default:
		return agentdeck.SessionCrashed, agentdeck.ExitCrashed
	}
}

func requestOutcome(state agentdeck.SessionState) agentdeck.RequestStatus {
	if state == agentdeck.SessionCancelled {
		return agentdeck.RequestCancelled
	}
	return agentdeck.RequestCompleted
}

// composePrompt renders the request prompt with attachment references.
func composePrompt(req *agentdeck.Request) string {
	if len(req.Attachments) == 0 {
		return req.Prompt
	}
	var b strings.Builder
	b.WriteString(req.Prompt)
	b.WriteString("\n\nAttached files:\n")
	for _, a := range req.Attachments {
		b.WriteString("- ")
		b.WriteString(a.Name)
		b.WriteString("\n")
	}
	return b.String()
}
