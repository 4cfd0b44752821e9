package amqp

import (
	"testing"
	"time"
)

func TestQueuedWriteMessageRoundTrip(t *testing.T) {
	msg := NewQueuedWriteMessage(42, "add")
	if msg.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := QueuedWriteMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ItemID != 42 || got.Kind != "add" {
		t.Errorf("unexpected message: %+v", got)
	}
	if got.Timestamp.Sub(msg.Timestamp) > time.Second {
		t.Errorf("timestamp drifted: %v vs %v", got.Timestamp, msg.Timestamp)
	}
}

func TestQueuedWriteMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := QueuedWriteMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
