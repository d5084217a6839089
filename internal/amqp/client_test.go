package amqp

import (
	"testing"
	"time"
)

func TestNewAdjustmentMessage(t *testing.T) {
	msg := NewAdjustmentMessage(42, "Carson")

	if msg.ID != 42 {
		t.Errorf("NewAdjustmentMessage() ID = %v, want 42", msg.ID)
	}
	if msg.Person != "Carson" {
		t.Errorf("NewAdjustmentMessage() Person = %v, want Carson", msg.Person)
	}
	if msg.Timestamp.IsZero() {
		t.Error("NewAdjustmentMessage() Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("NewAdjustmentMessage() Timestamp should be recent")
	}
}

func TestAdjustmentMessage_JSON(t *testing.T) {
	timestamp := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	msg := &AdjustmentMessage{
		ID:        7,
		Person:    "Drew",
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsedMsg, err := AdjustmentMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("AdjustmentMessageFromJSON() error = %v", err)
	}

	if parsedMsg.ID != msg.ID {
		t.Errorf("Parsed ID = %v, want %v", parsedMsg.ID, msg.ID)
	}
	if parsedMsg.Person != msg.Person {
		t.Errorf("Parsed Person = %v, want %v", parsedMsg.Person, msg.Person)
	}
	if !parsedMsg.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsedMsg.Timestamp, msg.Timestamp)
	}
}

func TestAdjustmentMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"id": "not_a_number", "person": 3}`)

	if _, err := AdjustmentMessageFromJSON(invalidJSON); err == nil {
		t.Error("AdjustmentMessageFromJSON() should fail with invalid JSON")
	}
}
