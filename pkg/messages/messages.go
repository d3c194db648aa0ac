package messages

import "encoding/json"

const (
	// MessageBufferSize represents the maximum number of messages waiting
	// to be written to one websocket client
	MessageBufferSize = 64
)

// Message types
const (
	MessageTypeServerView  = "view"
	MessageTypeServerAlert = "alert"
)

// Message is the envelope pushed to websocket renderers
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage wraps payload, marshalled as JSON, into a message of type t.
func NewMessage(t string, payload interface{}) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Payload: b}, nil
}
