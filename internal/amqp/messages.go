package amqp

import (
	"encoding/json"
	"time"
)

// AdjustmentMessage is a lightweight pointer to a manual-entry notification.
// Only the ID and person travel on the wire, the audit worker fetches the
// full notification from the database.
type AdjustmentMessage struct {
	ID        int64     `json:"id"`
	Person    string    `json:"person"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAdjustmentMessage creates a new audit export message
func NewAdjustmentMessage(id int64, person string) *AdjustmentMessage {
	return &AdjustmentMessage{
		ID:        id,
		Person:    person,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AdjustmentMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AdjustmentMessageFromJSON creates a message from JSON bytes
func AdjustmentMessageFromJSON(data []byte) (*AdjustmentMessage, error) {
	var msg AdjustmentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
