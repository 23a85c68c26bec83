// Package kafka carries envelopes over a Kafka topic, keyed by message id.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"golang-sms-gateway/internal/domain"

	"github.com/segmentio/kafka-go"
)

// Producer implements ports.EnvelopePublisher. Writes are synchronous so a
// broker failure is returned from Publish.
type Producer struct {
	writer *kafka.Writer
	log    *slog.Logger
}

func NewProducer(brokers []string, topic string, log *slog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		ErrorLogger:  errorLogger(log.With("kafka_component", "producer")),
	}

	log.Info("kafka producer initialized", "brokers", brokers, "topic", topic)
	return &Producer{writer: writer, log: log}
}

func (p *Producer) Publish(ctx context.Context, env domain.Envelope) error {
	body, err := env.Encode()
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.MessageID.String()),
		Value: body,
		Time:  env.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("produce envelope: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// Consumer implements ports.EnvelopeConsumer with a consumer-group reader.
type Consumer struct {
	reader *kafka.Reader
	log    *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
		ErrorLogger: errorLogger(log.With("kafka_component", "consumer")),
	})

	log.Info("kafka consumer started", "topic", topic, "group_id", groupID, "brokers", brokers)
	return &Consumer{reader: reader, log: log}
}

// Consume fetches messages one by one and commits each offset once the
// handler returned nil. A handler error leaves the offset uncommitted.
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, body []byte) error) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := handler(ctx, m.Value); err != nil {
			c.log.Error("handler error",
				"partition", m.Partition,
				"offset", m.Offset,
				"err", err)
			continue
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.log.Error("commit offset failed",
				"partition", m.Partition,
				"offset", m.Offset,
				"err", err)
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("close kafka consumer: %w", err)
	}
	return nil
}

// EnsureTopic creates topic through the cluster controller if it does not exist yet.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

func errorLogger(log *slog.Logger) kafka.Logger {
	return kafka.LoggerFunc(func(msg string, args ...interface{}) {
		log.Error(fmt.Sprintf(msg, args...))
	})
}
