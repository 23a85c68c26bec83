package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer implements ports.EnvelopeConsumer using RabbitMQ.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *slog.Logger
}

// NewConsumer dials RabbitMQ, declares topology, and returns a Consumer.
// prefetch bounds the number of unacknowledged deliveries held at once.
func NewConsumer(amqpURL string, prefetch int, log *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	if err := declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, channel: ch, log: log}, nil
}

// Consume registers a consumer on the queue and calls handler for each delivery.
// It acknowledges the delivery only if the handler returns nil.
// It blocks until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, body []byte) error) error {
	deliveries, err := c.channel.Consume(
		queueName,
		"",    // auto-generated consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			if err := handler(ctx, d.Body); err != nil {
				c.log.Error("handler error", "msg_id", d.MessageId, "err", err)
				d.Nack(false, true) // requeue
				continue
			}

			d.Ack(false)
		}
	}
}

// Close cleanly shuts down the channel and connection.
func (c *Consumer) Close() {
	c.channel.Close()
	c.conn.Close()
}
