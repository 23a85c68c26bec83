package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang-sms-gateway/internal/domain"
	"golang-sms-gateway/internal/logging"
)

func TestChannel_PublishConsume(t *testing.T) {
	c := NewChannel(4, logging.Discard())

	msg, _ := domain.NewMessage("+15551230000", "+15559876543", "hi", time.Now())
	if err := c.Publish(context.Background(), domain.NewEnvelope(msg)); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan domain.Envelope, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Consume(ctx, func(ctx context.Context, body []byte) error {
			env, err := domain.DecodeEnvelope(body)
			if err != nil {
				return err
			}
			got <- env
			return nil
		})
	}()

	select {
	case env := <-got:
		if env.MessageID != msg.ID {
			t.Fatalf("expected %s, got %s", msg.ID, env.MessageID)
		}
	case <-ctx.Done():
		t.Fatalf("envelope not consumed")
	}

	c.Close()
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Consume, got %v", err)
	}
	if err := c.Publish(context.Background(), domain.NewEnvelope(msg)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Publish, got %v", err)
	}
}

func TestChannel_PublishRespectsContext(t *testing.T) {
	c := NewChannel(0, logging.Discard())
	msg, _ := domain.NewMessage("+15551230000", "+15559876543", "hi", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := c.Publish(ctx, domain.NewEnvelope(msg)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded with no consumer, got %v", err)
	}
}
