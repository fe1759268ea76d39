package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// chanHandle adapts a buffered channel to the hub's subscriber contract.
// Send fails fast when the buffer is full so one slow reader cannot stall
// a broadcast; the hub drops the subscriber on that failure.
type chanHandle struct {
	ch chan []byte

	mu     sync.Mutex
	closed bool
}

func newChanHandle(buffer int) *chanHandle {
	return &chanHandle{ch: make(chan []byte, buffer)}
}

var errSubscriberBusy = errors.New("subscriber channel full")

func (h *chanHandle) Send(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("subscriber closed")
	}
	select {
	case h.ch <- data:
		return nil
	default:
		return errSubscriberBusy
	}
}

func (h *chanHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.ch)
	}
	return nil
}

// handleStream serves the SSE stream. Optional session_id and project_id
// query parameters restrict delivery to the matching sessions' events.
func (a *App) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id := uuid.NewString()
	handle := newChanHandle(256)
	a.Hub.AddSubscriber(id, handle,
		r.URL.Query().Get("session_id"),
		r.URL.Query().Get("project_id"))
	defer a.Hub.RemoveSubscriber(id)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-handle.ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
