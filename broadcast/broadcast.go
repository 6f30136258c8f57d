// Package broadcast fans live session events out to project subscribers.
//
// A [Hub] maps project IDs to subscriber sets. Publish order matches the
// adapter's emission order and is identical for every subscriber of a
// project. Each subscriber owns a bounded buffer; when it is full the
// oldest buffered frame for that subscriber is dropped, so one slow
// consumer never blocks the pipeline or its peers. A newly arriving
// subscriber receives only live frames; history is reconstructed from
// the store, not replayed by the hub.
package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dmora/agentdeck"
)

// DefaultBufferSize is the per-subscriber frame buffer depth.
const DefaultBufferSize = 256

// Frame is one live event delivered to subscribers.
type Frame struct {
	Type      agentdeck.EventKind `json:"type"`
	SessionID string              `json:"sessionId"`
	Payload   agentdeck.Event     `json:"payload"`
}

// Hub is the subscriber registry.
type Hub struct {
	log     *zap.Logger
	bufSize int

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{} // projectID → subscriber set
}

// Option configures a Hub at construction time.
type Option func(*Hub)

// WithBufferSize sets the per-subscriber buffer depth.
// Values <= 0 are ignored.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

// NewHub creates a Hub. A nil logger disables logging.
func NewHub(log *zap.Logger, opts ...Option) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		log:     log,
		bufSize: DefaultBufferSize,
		subs:    make(map[string]map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new subscriber for a project's live frames.
func (h *Hub) Subscribe(projectID string) *Subscription {
	sub := &Subscription{
		hub:       h,
		projectID: projectID,
		ch:        make(chan Frame, h.bufSize),
	}
	h.mu.Lock()
	set := h.subs[projectID]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subs[projectID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish delivers frame to every subscriber of projectID. Never blocks:
// a full subscriber buffer drops that subscriber's oldest frame.
func (h *Hub) Publish(projectID string, frame Frame) {
	h.mu.RLock()
	set := h.subs[projectID]
	subs := make([]*Subscription, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.deliver(frame) {
			continue
		}
		h.log.Debug("dropped frame for slow subscriber",
			zap.String("project_id", projectID),
			zap.String("type", string(frame.Type)))
	}
}

// SubscriberCount returns the number of live subscribers for a project.
func (h *Hub) SubscriberCount(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[projectID])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.projectID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.projectID)
	}
}

// Subscription is one live observer of a project's frames.
type Subscription struct {
	hub       *Hub
	projectID string
	ch        chan Frame

	mu     sync.Mutex
	closed bool
}

// C returns the frame channel. Closed when the subscription closes.
func (s *Subscription) C() <-chan Frame { return s.ch }

// ProjectID returns the subscribed project.
func (s *Subscription) ProjectID() string { return s.projectID }

// Close unregisters the subscription and closes its channel.
// Safe to call multiple times.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	s.hub.remove(s)
}

// deliver enqueues frame, dropping this subscriber's oldest frame when
// the buffer is full. Returns false if a frame was dropped.
// The send is guarded by s.mu so it cannot race Close.
func (s *Subscription) deliver(frame Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- frame:
		return true
	default:
	}
	// Buffer full: drop the oldest frame, then enqueue.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- frame:
	default:
	}
	return false
}
