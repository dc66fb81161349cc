package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

type WebSocket struct {
	*websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

func NewWebSocket(parent context.Context, conn *websocket.Conn, log *slog.Logger) *WebSocket {
	ctx, cancel := context.WithCancel(parent)
	return &WebSocket{Conn: conn, ctx: ctx, cancel: cancel, log: log}
}

func (w *WebSocket) WriteMessage(data []byte) error {
	w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) Ping() error {
	return w.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// ReadLoop calls onMsg for every non-empty text frame, one at a time, until
// the peer goes away or stops answering pings.
func (w *WebSocket) ReadLoop(onMsg func([]byte)) {
	defer w.Close()

	w.Conn.SetReadLimit(maxMessageSize)
	w.Conn.SetReadDeadline(time.Now().Add(pongWait))
	w.Conn.SetPongHandler(func(string) error {
		return w.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				w.log.Warn("ws - read loop - unexpected close", "err", err)
			}
			return
		}
		if len(data) > 0 {
			onMsg(data)
		}
	}
}

// Done is closed once the socket is closed.
func (w *WebSocket) Done() <-chan struct{} { return w.ctx.Done() }

func (w *WebSocket) Close() {
	w.cancel()
	_ = w.Conn.Close()
}
