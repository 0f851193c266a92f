package rabbit

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/observatorio-agua/notifications/pkg/models"
)

// Publish encodes the envelope and sends it to the topic exchange under the
// fixed routing key, marked persistent so it survives a broker restart while
// queued. There is no retry and no publisher-confirm: delivery to a bound
// queue is not verified here.
func Publish(ctx context.Context, conn *Connection, env models.Envelope) error {
	body := Encode(env)

	err := conn.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.Data.BatchID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish batch %s: %w", env.Data.BatchID, err)
	}

	conn.log.Info("notification published",
		"batch_id", env.Data.BatchID,
		"routing_key", RoutingKey,
		"bytes", len(body),
	)
	return nil
}
