package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is the wire envelope exchanged with the server. The payload is kept
// opaque; the bridge relays it without interpreting domain content.
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Well-known message types.
const (
	MsgHeartbeat    = "heartbeat"
	MsgNotification = "notification"
)

// NewMessage builds an envelope with a fresh ID and the given payload.
// The payload must be JSON-serializable.
func NewMessage(msgType string, payload any) (Message, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, err
		}
		raw = data
	}

	return Message{
		Type:      msgType,
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Payload:   raw,
	}, nil
}
