package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a change published on the events queue
type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventReminderChanged    EventType = "reminder.changed"
	EventReminderRemoved    EventType = "reminder.removed"
)

// Event is a lightweight change message. It carries only the entity id and
// the fields a consumer needs when the entity no longer exists; the worker
// fetches the full record from the store.
type Event struct {
	Type      EventType `json:"type"`
	ID        int64     `json:"id"`
	Category  string    `json:"category,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(typ EventType, id int64) *Event {
	return &Event{
		Type:      typ,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event and rejects unknown types
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case EventTransactionCreated, EventTransactionUpdated, EventTransactionDeleted,
		EventReminderChanged, EventReminderRemoved:
		return &e, nil
	}
	return nil, fmt.Errorf("unknown event type %q", e.Type)
}
