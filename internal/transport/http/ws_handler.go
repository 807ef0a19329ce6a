package http

import (
	"net/http"
	"sync"
	"time"

	"team-quiz-service/internal/app"
	"team-quiz-service/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// WSHandler upgrades live clients and registers them with the broadcaster. Clients
// only receive change notifications; they re-fetch state over the HTTP API.
type WSHandler struct {
	hub      *app.Broadcaster
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *app.Broadcaster, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS runs one live connection until the peer goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}

	client := newWSClient(conn)
	handle := h.hub.Register(client)
	h.log.WithFields(logrus.Fields{"handle": handle, "remote": r.RemoteAddr}).Debug("live client connected")

	go client.writePump(h.log)

	client.readPump()

	h.hub.Unregister(handle)
	_ = client.Close()
	h.log.WithField("handle", handle).Debug("live client disconnected")
}

// wsClient is an app.Sink whose events are queued and written by writePump, so a
// slow connection never blocks a broadcast.
type wsClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan domain.Event
	closed bool
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn, send: make(chan domain.Event, sendBuffer)}
}

func (c *wsClient) Deliver(ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return app.ErrSinkClosed
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return app.ErrSinkFull
	}
}

// Close stops the write pump, which then closes the connection.
func (c *wsClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// readPump discards inbound messages and returns when the connection fails.
func (c *wsClient) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump(log *logrus.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				log.WithError(err).Debug("ws write error")
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
