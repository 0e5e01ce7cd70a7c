package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammarsecurity/nexchat/internal/websocket"
)

// WebSocketHandler upgrades authenticated requests to chat connections.
type WebSocketHandler struct {
	hub *websocket.Hub
}

func NewWebSocketHandler(hub *websocket.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

// HandleWebSocket upgrades the request and registers the client with the hub.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	websocket.ServeWs(h.hub, c.Writer, c.Request, userID.(string))
}
