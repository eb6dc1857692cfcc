package notifications

import (
	"time"

	"matchday/internal/middleware"
	"matchday/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 16 << 10
	sendBuffer     = 256
)

// resyncNotice tells a viewer that events were lost and the notification
// list should be fetched again over HTTP.
var resyncNotice = []byte(`{"type":"resync","payload":{"reason":"buffer_full"}}`)

// MessageFunc handles one inbound frame from a viewer.
type MessageFunc func(c *Client, message []byte)

// Client is one websocket connection of a signed-in viewer.
type Client struct {
	UserID string
	// Send is the outbound queue drained by Serve.
	Send chan []byte

	hub  *Hub
	conn *websocket.Conn
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		hub:    hub,
		conn:   conn,
	}
}

// Serve pumps the connection until the peer goes away or the hub closes the
// queue. Inbound frames go to onMessage, which may be nil.
func (c *Client) Serve(onMessage MessageFunc) {
	go c.writeLoop()
	c.readLoop(onMessage)
}

func (c *Client) readLoop(onMessage MessageFunc) {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("websocket read failed", "user_id", c.UserID, "error", err)
			}
			return
		}
		if onMessage != nil {
			onMessage(c, message)
		}
	}
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		var (
			kind    = websocket.TextMessage
			payload []byte
		)
		select {
		case message, open := <-c.Send:
			if !open {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			payload = message
		case <-ping.C:
			kind = websocket.PingMessage
		}
		if err := c.write(kind, payload); err != nil {
			middleware.Logger.Debug("websocket write failed", "user_id", c.UserID, "error", err)
			return
		}
	}
}

func (c *Client) write(kind int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, payload)
}

// closeGoingAway tells the peer the server is leaving and drops the socket.
func (c *Client) closeGoingAway() {
	if c.conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	if err := c.write(websocket.CloseMessage, msg); err != nil {
		middleware.Logger.Debug("websocket close frame failed", "user_id", c.UserID, "error", err)
	}
	_ = c.conn.Close()
}

// TrySend queues message without blocking. A full queue drops the message and
// queues a resync notice instead when there is room; a closed queue is ignored.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if recover() != nil {
			c.countDrop("closed")
		}
	}()

	select {
	case c.Send <- message:
		return
	default:
	}

	c.countDrop("full")
	middleware.Logger.Warn("websocket queue full, dropping event", "user_id", c.UserID)
	select {
	case c.Send <- resyncNotice:
	default:
	}
}

func (c *Client) countDrop(reason string) {
	observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), reason).Inc()
}
