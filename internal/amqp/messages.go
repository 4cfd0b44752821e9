package amqp

import (
	"encoding/json"
	"time"
)

// QueuedWriteMessage notifies the drain worker that a mutation was enqueued
// locally. It carries only the queue item id and kind; the worker reads the
// full item from the queue store.
type QueuedWriteMessage struct {
	ItemID    int64     `json:"item_id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// NewQueuedWriteMessage creates a notification for one enqueued mutation.
func NewQueuedWriteMessage(itemID int64, kind string) *QueuedWriteMessage {
	return &QueuedWriteMessage{
		ItemID:    itemID,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *QueuedWriteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// QueuedWriteMessageFromJSON creates a message from JSON bytes.
func QueuedWriteMessageFromJSON(data []byte) (*QueuedWriteMessage, error) {
	var msg QueuedWriteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
