package websocket

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	// eventBuffer is how many change events a subscriber may lag behind
	// before Publish starts dropping them.
	eventBuffer = 32
	// Subscribers only listen; anything larger than a control frame is a
	// misbehaving peer.
	maxInbound = 125
)

// Client is one websocket subscriber to a single group's change events.
type Client struct {
	groupID string
	conn    *websocket.Conn
	send    chan []byte
	leave   sync.Once
}

func newClient(conn *websocket.Conn, groupID string) *Client {
	return &Client{groupID: groupID, conn: conn, send: make(chan []byte, eventBuffer)}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and streams the group's change events until
// the peer goes away or the hub closes.
func ServeWS(w http.ResponseWriter, r *http.Request, hub *Hub, groupID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "group_id", groupID, "error", err)
		return
	}
	client := newClient(conn, groupID)
	hub.Register(groupID, client)
	slog.Info("group subscriber joined", "group_id", groupID, "subscribers", hub.Subscribers(groupID))
	go client.writePump(hub)
	client.readPump(hub)
}

// unsubscribe runs once per client, from whichever pump stops first.
func (c *Client) unsubscribe(hub *Hub, reason string) {
	c.leave.Do(func() {
		hub.Unregister(c.groupID, c)
		_ = c.conn.Close()
		slog.Info("group subscriber left", "group_id", c.groupID, "reason", reason, "subscribers", hub.Subscribers(c.groupID))
	})
}

func (c *Client) readPump(hub *Hub) {
	reason := "peer closed"
	defer func() { c.unsubscribe(hub, reason) }()
	c.conn.SetReadLimit(maxInbound)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				reason = err.Error()
			}
			return
		}
	}
}

func (c *Client) writePump(hub *Hub) {
	ticker := time.NewTicker(pingPeriod)
	reason := "write failed"
	defer func() {
		ticker.Stop()
		c.unsubscribe(hub, reason)
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed this group's stream.
				reason = "hub closed"
				closing := websocket.FormatCloseMessage(websocket.CloseGoingAway, "event stream closed")
				_ = c.conn.WriteMessage(websocket.CloseMessage, closing)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
