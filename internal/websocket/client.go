package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer; SDP offers run to several KB
	maxMessageSize = 16 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live websocket connection for one authenticated user.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan *OutgoingMessage
	connectionID string
	userID       string
	logger       *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	logger, _ := zap.NewProduction()
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan *OutgoingMessage, 256),
		connectionID: uuid.NewString(),
		userID:       userID,
		logger:       logger,
	}
}

// UserID returns the authenticated user this connection belongs to.
func (c *Client) UserID() string {
	return c.userID
}

// ConnectionID returns the hub-unique identifier of this connection.
func (c *Client) ConnectionID() string {
	return c.connectionID
}

// readPump decodes frames from the peer and hands them to the dispatcher.
// Frames are processed one at a time, so a single connection's events stay
// in order.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error",
					zap.String("userId", c.userID),
					zap.Error(err))
			}
			break
		}

		var msg IncomingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Dropping malformed frame",
				zap.String("userId", c.userID),
				zap.Error(err))
			continue
		}

		if c.hub.handler != nil {
			c.hub.handler.HandleMessage(c, &msg)
		}
	}
}

// writePump forwards hub messages to the peer and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.logger.Error("Failed to marshal message",
					zap.String("userId", c.userID),
					zap.Error(err))
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("Failed to write message",
					zap.String("userId", c.userID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the HTTP request and starts the client's pumps.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := newClient(hub, conn, userID)
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
