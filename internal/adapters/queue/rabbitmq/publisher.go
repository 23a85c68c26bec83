package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang-sms-gateway/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeName = "sms"
const queueName = "sms.requests"
const routingKey = "sms.requests"

// Publisher implements ports.EnvelopePublisher using RabbitMQ with
// publisher confirms, so Publish fails when the broker refuses the envelope.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex // serialises publish + confirm on the channel
}

// NewPublisher dials RabbitMQ, declares the exchange and queue, binds them
// and puts the channel into confirm mode.
func NewPublisher(amqpURL string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

// Publish serialises the envelope and waits for the broker to confirm it.
func (p *Publisher) Publish(ctx context.Context, env domain.Envelope) error {
	body, err := env.Encode()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		exchangeName,
		routingKey,
		true,  // mandatory: return if the queue is missing
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.MessageID.String(),
			Timestamp:    env.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for confirm: %w", err)
	}
	if !acked {
		return errors.New("broker nacked envelope")
	}
	return nil
}

// Close cleanly shuts down the channel and connection.
func (p *Publisher) Close() {
	p.channel.Close()
	p.conn.Close()
}

// declare idempotently sets up the exchange, queue, and binding.
func declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}
