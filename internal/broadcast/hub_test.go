package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeHandle struct {
	mu     sync.Mutex
	msgs   []string
	fail   bool
	closed bool
}

func (f *fakeHandle) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("write failed")
	}
	f.msgs = append(f.msgs, string(data))
	return nil
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeHandle) received(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func (f *fakeHandle) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakeResolver struct {
	sessions map[string][]string
}

func (f *fakeResolver) SessionsOfProject(ctx context.Context, projectID string) ([]string, error) {
	return f.sessions[projectID], nil
}

func TestAddSubscriberSendsConnectedAck(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, time.Hour)
	defer hub.Shutdown()

	h := &fakeHandle{}
	hub.AddSubscriber("sub-1", h, "", "")
	if hub.SubscriberCount() != 1 {
		t.Fatalf("count = %d", hub.SubscriberCount())
	}
	if !h.received("connected") {
		t.Fatal("expected connected ack")
	}
}

func TestBroadcastFiltering(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{sessions: map[string][]string{
		"proj-a": {"sess-1", "sess-2"},
	}}
	hub := NewHub(resolver, time.Hour)
	defer hub.Shutdown()

	unfiltered := &fakeHandle{}
	sameSession := &fakeHandle{}
	otherSession := &fakeHandle{}
	projectMember := &fakeHandle{}
	projectOther := &fakeHandle{}

	hub.AddSubscriber("u", unfiltered, "", "")
	hub.AddSubscriber("s1", sameSession, "sess-1", "")
	hub.AddSubscriber("s2", otherSession, "sess-9", "")
	hub.AddSubscriber("pa", projectMember, "", "proj-a")
	hub.AddSubscriber("pb", projectOther, "", "proj-b")

	ctx := context.Background()
	hub.Broadcast(ctx, "correlation_match", map[string]any{"task_id": "t1"}, "sess-1")

	if !unfiltered.received("correlation_match") {
		t.Error("unfiltered subscriber should receive")
	}
	if !sameSession.received("correlation_match") {
		t.Error("matching session filter should receive")
	}
	if otherSession.received("correlation_match") {
		t.Error("non-matching session filter should not receive")
	}
	if !projectMember.received("correlation_match") {
		t.Error("project filter containing the session should receive")
	}
	if projectOther.received("correlation_match") {
		t.Error("project filter not containing the session should not receive")
	}

	// A global event (no session) reaches everyone, filters included.
	hub.Broadcast(ctx, "task_update", map[string]any{"task_id": "t1"}, "")
	for name, h := range map[string]*fakeHandle{
		"unfiltered": unfiltered, "sameSession": sameSession, "otherSession": otherSession,
		"projectMember": projectMember, "projectOther": projectOther,
	} {
		if !h.received("task_update") {
			t.Errorf("%s should receive global events", name)
		}
	}
}

func TestWriteFailureRemovesSubscriber(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, time.Hour)
	defer hub.Shutdown()

	healthy := &fakeHandle{}
	failing := &fakeHandle{fail: true}
	hub.AddSubscriber("ok", healthy, "", "")
	hub.AddSubscriber("bad", failing, "", "")
	// The failed connected ack already dropped the subscriber.
	if hub.SubscriberCount() != 1 {
		t.Fatalf("count after failed ack = %d, want 1", hub.SubscriberCount())
	}
	if !failing.closed {
		t.Error("failed handle should be closed")
	}

	before := failing.count()
	hub.Broadcast(context.Background(), "x", nil, "")
	if failing.count() != before {
		t.Error("removed subscriber must not receive further deliveries")
	}
	if !healthy.received(`"type":"x"`) {
		t.Error("surviving subscriber should receive")
	}
}

func TestHeartbeat(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, 10*time.Millisecond)
	defer hub.Shutdown()

	h := &fakeHandle{}
	hub.AddSubscriber("sub", h, "", "")

	deadline := time.After(time.Second)
	for !h.received("heartbeat") {
		select {
		case <-deadline:
			t.Fatal("no heartbeat within 1s")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Heartbeat carries the subscriber count.
	h.mu.Lock()
	var beat struct {
		Type string `json:"type"`
		Data struct {
			SubscriberCount int `json:"subscriber_count"`
		} `json:"data"`
	}
	var found bool
	for _, m := range h.msgs {
		if strings.Contains(m, "heartbeat") {
			if err := json.Unmarshal([]byte(m), &beat); err == nil {
				found = true
			}
			break
		}
	}
	h.mu.Unlock()
	if !found || beat.Data.SubscriberCount != 1 {
		t.Fatalf("heartbeat payload = %+v, found=%v", beat, found)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, time.Hour)
	h := &fakeHandle{}
	hub.AddSubscriber("sub", h, "", "")

	hub.Shutdown()
	hub.Shutdown()
	if hub.SubscriberCount() != 0 {
		t.Fatalf("count after shutdown = %d", hub.SubscriberCount())
	}
	if !h.closed {
		t.Error("shutdown should close handles")
	}

	// New subscribers are rejected after shutdown.
	late := &fakeHandle{}
	hub.AddSubscriber("late", late, "", "")
	if hub.SubscriberCount() != 0 {
		t.Error("shut-down hub must reject subscribers")
	}
	if !late.closed {
		t.Error("rejected handle should be closed")
	}
}
