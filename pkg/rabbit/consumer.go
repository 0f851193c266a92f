package rabbit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/observatorio-agua/notifications/pkg/models"
)

// Handler processes one decoded notification. Implementations hold their own
// state (e.g. a display counter); nothing is captured implicitly by the
// receive loop.
type Handler func(models.Envelope) error

// acknowledger is the slice of amqp.Delivery the per-message path needs,
// small enough to fake in tests.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple bool, requeue bool) error
}

// Consumer drives the receive loop for the admin notification queue.
//
// Acknowledgment policy: a message is acked only after the handler returns
// nil. A payload that fails to decode is acked away (redelivery cannot repair
// bad bytes). A handler failure nacks without requeue — with prefetch=1,
// requeueing a deterministically failing message would wedge the queue in an
// endless redelivery loop.
type Consumer struct {
	conn    *Connection
	handler Handler
	log     *slog.Logger
	tag     string

	// OnDecodeError, when set, is called for each payload that failed to
	// decode, after the message has been acked away.
	OnDecodeError func(error)
}

// NewConsumer binds the handler to the connection. Call DeclareAndBind before
// Run.
func NewConsumer(conn *Connection, handler Handler) *Consumer {
	return &Consumer{
		conn:    conn,
		handler: handler,
		log:     conn.log,
		tag:     "admin-consumer",
	}
}

// DeclareAndBind declares the durable queue and binds it to the exchange
// under the fixed routing key. Idempotent: repeating it with identical
// parameters leaves the topology unchanged and returns nil.
func (c *Consumer) DeclareAndBind() error {
	if _, err := c.conn.ch.QueueDeclare(
		QueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueName, err)
	}

	if err := c.conn.ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", QueueName, ExchangeName, err)
	}

	c.log.Info("queue bound",
		"queue", QueueName,
		"exchange", ExchangeName,
		"routing_key", RoutingKey,
	)
	return nil
}

// Run consumes messages one at a time (prefetch=1, manual ack) until ctx is
// cancelled. Cancellation stops the consumer cleanly and returns nil; a
// mid-operation transport failure closes the delivery stream and is returned
// as an error.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.conn.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	deliveries, err := c.conn.ch.Consume(
		QueueName,
		c.tag,
		false, // autoAck: acks are explicit, after the handler succeeds
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", QueueName, err)
	}

	c.log.Info("consuming notifications", "queue", QueueName)

	for {
		select {
		case <-ctx.Done():
			// Stop new deliveries; in-flight work has already been acked or
			// nacked because handling is strictly serial.
			_ = c.conn.ch.Cancel(c.tag, false)
			c.log.Info("consumer stopped", "queue", QueueName)
			return nil

		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery stream closed by broker")
			}
			c.handleDelivery(d, d.Body)
		}
	}
}

// handleDelivery applies the acknowledgment policy to a single message.
func (c *Consumer) handleDelivery(ack acknowledger, body []byte) {
	env, err := Decode(body)
	if err != nil {
		c.log.Warn("discarding malformed notification", "error", err, "bytes", len(body))
		if c.OnDecodeError != nil {
			c.OnDecodeError(err)
		}
		_ = ack.Ack(false)
		return
	}

	if err := c.handler(env); err != nil {
		c.log.Error("handler failed, dropping notification",
			"batch_id", env.Data.BatchID,
			"error", err,
		)
		_ = ack.Nack(false, false)
		return
	}

	_ = ack.Ack(false)
}
