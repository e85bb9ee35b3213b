package runtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamMessage is one frame on /api/stream.
type streamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	messageSnapshot     = "snapshot"
	messageNotification = "notification"
)

// stream pushes a snapshot on connect and after every change, plus each
// notification as it happens. Client frames are read only to notice close.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	changes, cancelChanges := h.controller.SubscribeChanges()
	defer cancelChanges()
	notifications, cancelNotifications := h.controller.SubscribeNotifications()
	defer cancelNotifications()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug("websocket read error", slog.String("error", err.Error()))
				}
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	send := func(msg streamMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.log.Debug("websocket write failed", slog.String("error", err.Error()))
			return false
		}
		return true
	}

	if !send(streamMessage{Type: messageSnapshot, Data: h.controller.Snapshot()}) {
		return
	}
	for {
		select {
		case <-closed:
			return
		case _, ok := <-changes:
			if !ok {
				h.closeStream(conn)
				return
			}
			if !send(streamMessage{Type: messageSnapshot, Data: h.controller.Snapshot()}) {
				return
			}
		case n, ok := <-notifications:
			if !ok {
				h.closeStream(conn)
				return
			}
			if !send(streamMessage{Type: messageNotification, Data: n}) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
