package notify

import "context"

// Publisher hands notifications to a message broker for delivery by another
// process. Implemented by amqp.Client.
type Publisher interface {
	PublishNotification(ctx context.Context, n Notification) error
}

// Broker forwards notifications to a Publisher
type Broker struct {
	pub Publisher
}

func NewBroker(pub Publisher) *Broker {
	return &Broker{pub: pub}
}

func (b *Broker) Dispatch(ctx context.Context, n Notification) error {
	return b.pub.PublishNotification(ctx, n)
}
