package httpapi

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is handled at the middleware layer; the socket itself accepts
	// any origin so local viewers on other ports can connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHandle serializes writes to one WebSocket connection. gorilla/websocket
// permits at most one concurrent writer.
type wsHandle struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (h *wsHandle) Send(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn.WriteMessage(websocket.TextMessage, data)
}

func (h *wsHandle) Close() error {
	return h.conn.Close()
}

// handleStreamWS serves the same event stream as /stream over a WebSocket.
// Filters come from the same session_id and project_id query parameters.
func (a *App) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	id := uuid.NewString()
	handle := &wsHandle{conn: conn}
	a.Hub.AddSubscriber(id, handle,
		r.URL.Query().Get("session_id"),
		r.URL.Query().Get("project_id"))

	// Inbound messages are ignored; the read loop only detects disconnect.
	go func() {
		defer a.Hub.RemoveSubscriber(id)
		defer func() { _ = conn.Close() }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
