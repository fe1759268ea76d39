// Package broadcast fans state-change notifications out to connected
// viewers. Subscribers are in-memory only: they exist from connect to
// disconnect (or first failed write) and are never persisted.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pedropauloai/claude-agent-monitor/internal/otel"
	"github.com/pedropauloai/claude-agent-monitor/pkg/models"
)

// DefaultHeartbeatInterval is how often subscribers receive a keep-alive.
const DefaultHeartbeatInterval = 30 * time.Second

// Handle is one outbound connection. Send must return an error on write
// failure; the hub responds by dropping the subscriber.
type Handle interface {
	Send(data []byte) error
	Close() error
}

// SessionResolver reports which sessions belong to a project. Satisfied by
// *router.Router; used to evaluate project filters at delivery time.
type SessionResolver interface {
	SessionsOfProject(ctx context.Context, projectID string) ([]string, error)
}

type subscriber struct {
	handle    Handle
	sessionID string // optional filter: deliver only this session's events
	projectID string // optional filter: deliver events for the project's sessions
}

// Hub holds the set of connected subscribers and pushes named events to the
// subset whose filter matches. Safe for concurrent use.
type Hub struct {
	resolver SessionResolver
	interval time.Duration

	mu       sync.Mutex
	subs     map[string]*subscriber
	stop     chan struct{} // heartbeat stop; nil when the loop is not running
	shutdown bool
}

// NewHub returns a Hub that resolves project filters through resolver.
// A zero heartbeat interval uses DefaultHeartbeatInterval.
func NewHub(resolver SessionResolver, heartbeat time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &Hub{
		resolver: resolver,
		interval: heartbeat,
		subs:     make(map[string]*subscriber),
	}
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func marshalEnvelope(event string, payload any) []byte {
	b, err := json.Marshal(envelope{Type: event, Data: payload})
	if err != nil {
		return nil
	}
	return b
}

// AddSubscriber registers a handle, immediately acknowledges it with a
// "connected" event, and starts the heartbeat loop if this is the first
// subscriber. sessionID and projectID are optional filters.
func (h *Hub) AddSubscriber(id string, handle Handle, sessionID, projectID string) {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		_ = handle.Close()
		return
	}
	h.subs[id] = &subscriber{handle: handle, sessionID: sessionID, projectID: projectID}
	if h.stop == nil {
		h.stop = make(chan struct{})
		go h.heartbeatLoop(h.stop)
	}
	h.mu.Unlock()
	otel.AddStreamConnection()

	ack := marshalEnvelope(models.BroadcastConnected, map[string]any{"subscriber_id": id})
	if err := handle.Send(ack); err != nil {
		h.RemoveSubscriber(id)
	}
}

// RemoveSubscriber closes and forgets a subscriber. The heartbeat loop stops
// when the last subscriber leaves; it restarts on the next AddSubscriber.
func (h *Hub) RemoveSubscriber(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		if len(h.subs) == 0 && h.stop != nil {
			close(h.stop)
			h.stop = nil
		}
	}
	h.mu.Unlock()
	if ok {
		_ = sub.handle.Close()
		otel.RemoveStreamConnection()
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast delivers a named event to every subscriber whose filter matches.
// sessionID scopes the event; an empty sessionID marks a global event that
// reaches everyone. Subscribers whose handle fails to write are dropped.
func (h *Hub) Broadcast(ctx context.Context, event string, payload any, sessionID string) {
	msg := marshalEnvelope(event, payload)
	if msg == nil {
		return
	}
	otel.RecordBroadcastEvent(ctx)

	type target struct {
		id  string
		sub *subscriber
	}
	h.mu.Lock()
	targets := make([]target, 0, len(h.subs))
	for id, sub := range h.subs {
		targets = append(targets, target{id, sub})
	}
	h.mu.Unlock()

	for _, t := range targets {
		if !h.shouldDeliver(ctx, t.sub, sessionID) {
			continue
		}
		if err := t.sub.handle.Send(msg); err != nil {
			h.RemoveSubscriber(t.id)
		}
	}
}

// shouldDeliver: unfiltered subscribers and global events always receive;
// a session filter matches the event's session exactly; a project filter
// matches when the event's session is bound to that project.
func (h *Hub) shouldDeliver(ctx context.Context, sub *subscriber, sessionID string) bool {
	if sub.sessionID == "" && sub.projectID == "" {
		return true
	}
	if sessionID == "" {
		return true
	}
	if sub.sessionID != "" && sub.sessionID == sessionID {
		return true
	}
	if sub.projectID != "" && h.resolver != nil {
		sessions, err := h.resolver.SessionsOfProject(ctx, sub.projectID)
		if err != nil {
			return false
		}
		for _, s := range sessions {
			if s == sessionID {
				return true
			}
		}
	}
	return false
}

func (h *Hub) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}

func (h *Hub) sendHeartbeat() {
	h.mu.Lock()
	count := len(h.subs)
	targets := make(map[string]*subscriber, count)
	for id, sub := range h.subs {
		targets[id] = sub
	}
	h.mu.Unlock()

	msg := marshalEnvelope(models.BroadcastHeartbeat, map[string]any{
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"subscriber_count": count,
	})
	for id, sub := range targets {
		if err := sub.handle.Send(msg); err != nil {
			h.RemoveSubscriber(id)
		}
	}
}

// Shutdown stops the heartbeat and closes every subscriber. Idempotent;
// a shut-down hub rejects new subscribers.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		return
	}
	h.shutdown = true
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
	subs := h.subs
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()

	for range subs {
		otel.RemoveStreamConnection()
	}
	for _, sub := range subs {
		_ = sub.handle.Close()
	}
}
