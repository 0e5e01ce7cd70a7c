package websocket

import "encoding/json"

// IncomingMessage is one decoded frame from a client.
type IncomingMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutgoingMessage is one frame pushed to a specific connection.
type OutgoingMessage struct {
	ConnectionID string      `json:"-"`
	Event        string      `json:"event"`
	Data         interface{} `json:"data,omitempty"`
}
