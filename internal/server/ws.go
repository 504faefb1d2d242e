package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handsign/internal/app"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventsHandler pushes pipeline status updates over WebSocket.
type EventsHandler struct {
	pipeline *app.Pipeline
	logger   *slog.Logger
}

// NewEventsHandler creates a new EventsHandler for p.
func NewEventsHandler(p *app.Pipeline, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{pipeline: p, logger: logger}
}

// ServeHTTP handles WebSocket upgrade requests. The current status is sent
// on connect, followed by every update until the client goes away or the
// pipeline is torn down.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.pipeline.Subscribe()
	defer cancel()

	// Reading is only needed to notice the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.send(conn, h.pipeline.Status()); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			return
		case status, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := h.send(conn, status); err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) send(conn *websocket.Conn, status app.Status) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(status); err != nil {
		h.logger.Debug("websocket write failed", "error", err)
		return err
	}
	return nil
}
