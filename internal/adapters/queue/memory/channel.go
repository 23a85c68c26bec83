// Package memory is an in-process queue channel used by the standalone
// binary and end-to-end tests.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang-sms-gateway/internal/domain"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("queue channel closed")

// Channel implements both ports.EnvelopePublisher and ports.EnvelopeConsumer.
type Channel struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

func NewChannel(buffer int, log *slog.Logger) *Channel {
	return &Channel{
		ch:   make(chan []byte, buffer),
		done: make(chan struct{}),
		log:  log,
	}
}

// Publish encodes the envelope and blocks while the buffer is full.
func (c *Channel) Publish(ctx context.Context, env domain.Envelope) error {
	body, err := env.Encode()
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.ch <- body:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume delivers payloads until ctx is cancelled or the channel is closed.
// Payloads the handler rejects are logged and dropped.
func (c *Channel) Consume(ctx context.Context, handler func(ctx context.Context, body []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		case body := <-c.ch:
			if err := handler(ctx, body); err != nil {
				c.log.Error("handler error", "err", err)
			}
		}
	}
}

// Close stops consumers and makes further publishes fail.
func (c *Channel) Close() {
	c.once.Do(func() { close(c.done) })
}
