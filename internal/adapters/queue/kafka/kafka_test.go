package kafka

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"golang-sms-gateway/internal/domain"
	"golang-sms-gateway/internal/logging"

	"github.com/google/uuid"
)

// Runs against a real cluster only when KAFKA_TEST_BROKERS is set.
func TestProduceConsume_RoundTrip(t *testing.T) {
	raw := os.Getenv("KAFKA_TEST_BROKERS")
	if raw == "" {
		t.Skip("KAFKA_TEST_BROKERS not set")
	}
	brokers := strings.Split(raw, ",")
	topic := "sms-requests-test-" + uuid.NewString()[:8]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := EnsureTopic(ctx, brokers, topic, 1); err != nil {
		t.Fatalf("EnsureTopic() error: %v", err)
	}

	log := logging.Discard()
	prod := NewProducer(brokers, topic, log)
	t.Cleanup(func() { _ = prod.Close() })
	cons := NewConsumer(brokers, topic, "test-"+topic, log)
	t.Cleanup(func() { _ = cons.Close() })

	msg, _ := domain.NewMessage("+15551230000", "+15559876543", "hi", time.Now())
	if err := prod.Publish(ctx, domain.NewEnvelope(msg)); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	got := make(chan domain.Envelope, 1)
	go func() {
		_ = cons.Consume(ctx, func(ctx context.Context, body []byte) error {
			env, err := domain.DecodeEnvelope(body)
			if err == nil {
				got <- env
			}
			return nil
		})
	}()

	select {
	case env := <-got:
		if env.MessageID != msg.ID {
			t.Fatalf("expected %s, got %s", msg.ID, env.MessageID)
		}
	case <-ctx.Done():
		t.Fatalf("envelope not consumed: %v", ctx.Err())
	}
}
