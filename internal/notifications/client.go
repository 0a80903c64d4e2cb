package notifications

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"quad/internal/middleware"
	"quad/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Clients only ever send small control frames.
	maxFrameSize = 1024
	sendBuffer   = 64
)

// Client is one notification socket belonging to UserID.
type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte

	hub *Hub

	mu     sync.Mutex
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		hub:    hub,
	}
}

// closeSend closes Send once; later TrySend calls are dropped.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// TrySend queues message without blocking. When the buffer is full the
// message is dropped and, if there is room, a messages_dropped event is
// queued so the client knows to re-fetch.
func (c *Client) TrySend(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
		return
	}
	select {
	case c.Send <- message:
		return
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
	if notice, err := MarshalEvent("messages_dropped", map[string]string{"reason": "buffer_full"}); err == nil {
		select {
		case c.Send <- []byte(notice):
		default:
		}
	}
}

// Serve runs the socket until the peer goes away or the hub drops the client.
func (c *Client) Serve() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()
	c.readLoop()
	<-done
}

// clientFrame is the only shape accepted from the browser.
type clientFrame struct {
	Type string `json:"type"`
}

func (c *Client) readLoop() {
	defer c.hub.UnregisterClient(c)

	c.Conn.SetReadLimit(maxFrameSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				middleware.Logger.Debug("notification socket closed",
					slog.Uint64("user_id", uint64(c.UserID)),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		c.handleFrame(raw)
	}
}

// handleFrame answers application-level pings; anything else is ignored.
func (c *Client) handleFrame(raw []byte) {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}
	if frame.Type == "ping" {
		if pong, err := MarshalEvent("pong", nil); err == nil {
			c.TrySend([]byte(pong))
		}
	}
}

func (c *Client) writeLoop() {
	heartbeat := time.NewTicker(pingPeriod)
	defer func() {
		heartbeat.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-heartbeat.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
