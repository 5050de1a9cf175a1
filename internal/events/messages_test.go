package events

import (
	"testing"
	"time"
)

func TestExpenseEventMessageRoundTrip(t *testing.T) {
	msg := NewExpenseEventMessage(TypeExpenseCreated, 42)
	if msg.Type != TypeExpenseCreated || msg.ID != 42 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Fatalf("timestamp should be stamped")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}

	decoded, err := ExpenseEventMessageFromJSON(body)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if decoded.Type != msg.Type || decoded.ID != msg.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, msg)
	}
	if !decoded.Timestamp.Truncate(time.Millisecond).Equal(msg.Timestamp.Truncate(time.Millisecond)) {
		t.Fatalf("timestamp drift: %v vs %v", decoded.Timestamp, msg.Timestamp)
	}
}

func TestExpenseEventMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := ExpenseEventMessageFromJSON([]byte("not json")); err == nil {
		t.Fatalf("expected error")
	}
}
