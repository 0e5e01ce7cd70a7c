package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// ConnectionHandler receives connection lifecycle and message events. The
// event dispatcher implements it.
type ConnectionHandler interface {
	HandleConnect(client *Client)
	HandleDisconnect(client *Client)
	HandleMessage(client *Client, msg *IncomingMessage)
}

// Hub owns every live websocket connection, keyed by connection ID. A user
// reconnecting gets a fresh connection ID; which connection currently counts
// for a user is the presence registry's business, not the hub's.
type Hub struct {
	clients map[string]*Client // connectionID -> *Client
	mu      sync.RWMutex

	outbound chan *OutgoingMessage

	register   chan *Client
	unregister chan *Client

	handler ConnectionHandler
	logger  *zap.Logger
}

func NewHub() *Hub {
	logger, _ := zap.NewProduction()
	return &Hub{
		clients:    make(map[string]*Client),
		outbound:   make(chan *OutgoingMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// SetHandler wires the event dispatcher. Must be called before Run.
func (h *Hub) SetHandler(handler ConnectionHandler) {
	h.handler = handler
}

// Run processes register/unregister/outbound events until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.outbound:
			h.deliverMessage(message)
		}
	}
}

// Deliver pushes an event to one specific connection. Satisfies the matching
// core's Deliverer; delivery is best-effort.
func (h *Hub) Deliver(connectionID, event string, data interface{}) {
	h.outbound <- &OutgoingMessage{
		ConnectionID: connectionID,
		Event:        event,
		Data:         data,
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.connectionID] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("WebSocket client registered",
		zap.String("userId", client.userID),
		zap.String("connectionId", client.connectionID),
		zap.Int("totalClients", total))

	if h.handler != nil {
		// lifecycle handlers may hit the database; keep the loop free
		go h.handler.HandleConnect(client)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, exists := h.clients[client.connectionID]
	if exists {
		delete(h.clients, client.connectionID)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !exists {
		return
	}

	h.logger.Info("WebSocket client unregistered",
		zap.String("userId", client.userID),
		zap.String("connectionId", client.connectionID),
		zap.Int("totalClients", total))

	if h.handler != nil {
		go h.handler.HandleDisconnect(client)
	}
}

func (h *Hub) deliverMessage(message *OutgoingMessage) {
	h.mu.RLock()
	client, exists := h.clients[message.ConnectionID]
	h.mu.RUnlock()

	if !exists {
		// connection went away; signaling is lossy by contract
		return
	}

	select {
	case client.send <- message:
	default:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("userId", client.userID),
			zap.String("event", message.Event))
	}
}
