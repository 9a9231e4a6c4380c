package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"walletlens/internal/log"
	"walletlens/internal/notify"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var errCircuitOpen = errors.New("circuit breaker is open")

// Options configures the broker topology
type Options struct {
	URL                string
	Exchange           string
	EventsQueue        string
	NotificationsQueue string
	Logger             *log.Logger
}

// Client publishes and consumes on a direct exchange with two queues: change
// events for the worker and notifications for the API's websocket hub.
// Publishing goes through a circuit breaker and reconnects lazily.
type Client struct {
	url                string
	exchangeName       string
	queueName          string
	notificationsQueue string
	logger             *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

var _ notify.Publisher = (*Client)(nil)

func NewClient(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	c := &Client{
		url:                opts.URL,
		exchangeName:       opts.Exchange,
		queueName:          opts.EventsQueue,
		notificationsQueue: opts.NotificationsQueue,
		logger:             logger.WithComponent(log.ComponentAMQP),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName, c.notificationsQueue); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func setup(ch *amqp091.Channel, exchange string, queues ...string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range queues {
		if q == "" {
			continue
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		// routing key is the queue name on a direct exchange
		if err := ch.QueueBind(q, q, exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// ensureChannel returns an open channel, reconnecting when needed
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() && c.conn != nil && !c.conn.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	c.logger.Info("Reconnected to AMQP broker", "exchange", c.exchangeName)
	return c.channel, nil
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s doubled per attempt, capped at 30s
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", routingKey, errCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// PublishEvent publishes a change event on the events queue
func (c *Client) PublishEvent(ctx context.Context, e *Event) error {
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.publish(ctx, c.queueName, body); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "Published event",
		"type", string(e.Type), "id", e.ID, "queue", c.queueName)
	return nil
}

// PublishNotification publishes n on the notifications queue
func (c *Client) PublishNotification(ctx context.Context, n notify.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := c.publish(ctx, c.notificationsQueue, body); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "Published notification",
		log.FieldNotification, n.ID, "queue", c.notificationsQueue)
	return nil
}

// ConsumeEvents delivers events to handler until ctx is done, reconnecting
// with backoff when the broker goes away. Malformed messages are dropped;
// handler errors requeue the message.
func (c *Client) ConsumeEvents(ctx context.Context, handler func(context.Context, *Event) error) error {
	return c.consumeLoop(ctx, c.queueName, func(ctx context.Context, body []byte) (bool, error) {
		e, err := EventFromJSON(body)
		if err != nil {
			return false, err
		}
		return true, handler(ctx, e)
	})
}

// ConsumeNotifications delivers notifications to handler until ctx is done
func (c *Client) ConsumeNotifications(ctx context.Context, handler func(context.Context, notify.Notification) error) error {
	return c.consumeLoop(ctx, c.notificationsQueue, func(ctx context.Context, body []byte) (bool, error) {
		var n notify.Notification
		if err := json.Unmarshal(body, &n); err != nil {
			return false, err
		}
		return true, handler(ctx, n)
	})
}

// handleFunc returns decoded=false for messages that must not be requeued
type handleFunc func(ctx context.Context, body []byte) (decoded bool, err error)

func (c *Client) consumeLoop(ctx context.Context, queue string, fn handleFunc) error {
	attempt := 0
	for {
		err := c.consume(ctx, queue, fn, func() { attempt = 0 })
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		}
		wait := exponentialBackoff(attempt)
		attempt++
		c.logger.WarnContext(ctx, "Consumer interrupted, reconnecting",
			"queue", queue, "retry_in", wait, log.FieldError, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consume(ctx context.Context, queue string, fn handleFunc, started func()) error {
	ch, err := c.ensureChannel()
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		c.mu.Lock()
		c.closeLocked()
		c.mu.Unlock()
		return fmt.Errorf("start consuming: %w", err)
	}
	started()
	c.logger.InfoContext(ctx, "Started consuming", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}

			decoded, err := fn(ctx, delivery.Body)
			switch {
			case !decoded:
				c.logger.ErrorContext(ctx, "Failed to decode message", "queue", queue, log.FieldError, err)
				delivery.Nack(false, false)
			case err != nil:
				c.logger.ErrorContext(ctx, "Failed to handle message", "queue", queue, log.FieldError, err)
				delivery.Nack(false, true)
			default:
				delivery.Ack(false)
			}
		}
	}
}

func (c *Client) closeLocked() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, err)
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, err)
		}
		c.conn = nil
	}
	return errors.Join(errs...)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}
