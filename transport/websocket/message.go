package websocket

import "encoding/json"

// inboundMessage is the wire envelope read from clients; the payload stays
// raw until the coordinator's handler decodes it.
type inboundMessage struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
