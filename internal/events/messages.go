package events

import (
	"encoding/json"
	"time"
)

// Event types published on confirmed store mutations.
const (
	TypeExpenseCreated = "expense.created"
	TypeExpenseDeleted = "expense.deleted"
)

// ExpenseEventMessage is a compact activity notification. It carries only
// the record id; consumers that need the full record fetch it from the
// backend themselves.
type ExpenseEventMessage struct {
	Type      string    `json:"type"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEventMessage creates an event message stamped with now.
func NewExpenseEventMessage(eventType string, id int64) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		Type:      eventType,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventMessageFromJSON creates a message from JSON bytes.
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
