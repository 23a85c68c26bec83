package ports

import (
	"context"

	"golang-sms-gateway/internal/domain"
)

// EnvelopePublisher hands message envelopes to the delivery queue.
type EnvelopePublisher interface {
	// Publish returns only after the broker accepted the envelope.
	Publish(ctx context.Context, env domain.Envelope) error
}

// EnvelopeConsumer consumes raw envelopes from the delivery queue.
type EnvelopeConsumer interface {
	// Consume passes each payload to the handler and acknowledges it once the
	// handler returns nil. Blocks until ctx is cancelled or a fatal error occurs.
	Consume(ctx context.Context, handler func(ctx context.Context, body []byte) error) error
}
