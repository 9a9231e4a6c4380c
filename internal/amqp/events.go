package amqp

import (
	"context"

	"walletlens/internal/core"
	"walletlens/internal/services"
)

// EventSink publishes change events. Implemented by Client.
type EventSink interface {
	PublishEvent(ctx context.Context, e *Event) error
}

// EventPublisher turns service hooks into events on the broker so the
// worker process runs budget checks, exports and reminder scheduling.
type EventPublisher struct {
	sink EventSink
}

var (
	_ services.TransactionHook = (*EventPublisher)(nil)
	_ services.ReminderHook    = (*EventPublisher)(nil)
)

func NewEventPublisher(sink EventSink) *EventPublisher {
	return &EventPublisher{sink: sink}
}

func (p *EventPublisher) TransactionChanged(ctx context.Context, c services.TransactionChange) error {
	var typ EventType
	switch c.Kind {
	case services.ChangeCreated:
		typ = EventTransactionCreated
	case services.ChangeUpdated:
		typ = EventTransactionUpdated
	default:
		typ = EventTransactionDeleted
	}
	e := NewEvent(typ, c.Transaction.ID)
	e.Category = c.Transaction.Category
	e.Kind = string(c.Transaction.Type)
	return p.sink.PublishEvent(ctx, e)
}

func (p *EventPublisher) ReminderChanged(ctx context.Context, r core.Reminder) error {
	return p.sink.PublishEvent(ctx, NewEvent(EventReminderChanged, r.ID))
}

func (p *EventPublisher) ReminderRemoved(ctx context.Context, id int64) error {
	return p.sink.PublishEvent(ctx, NewEvent(EventReminderRemoved, id))
}
