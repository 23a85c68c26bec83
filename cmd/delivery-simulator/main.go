package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-sms-gateway/internal/adapters/callback/httpclient"
	"golang-sms-gateway/internal/adapters/queue/kafka"
	"golang-sms-gateway/internal/adapters/queue/rabbitmq"
	"golang-sms-gateway/internal/app"
	cfg "golang-sms-gateway/internal/config"
	"golang-sms-gateway/internal/logging"
	"golang-sms-gateway/internal/metrics"
	"golang-sms-gateway/internal/ports"
	"golang-sms-gateway/internal/transport"

	"github.com/joho/godotenv"
)

// prefetch bounds the unacked envelopes RabbitMQ pushes to this consumer.
const prefetch = 50

func main() {
	_ = godotenv.Load()

	log := logging.New(logging.FromEnv())
	if err := run(log); err != nil {
		log.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	conf, err := cfg.FromEnv(":8082")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Adapters ─────────────────────────────────────────────────────────────
	consumer, closeConsumer, err := openConsumer(ctx, conf.Queue, log)
	if err != nil {
		return err
	}
	defer closeConsumer()

	reporter := httpclient.New(conf.Callback.ServiceURL, conf.Callback.Timeout)

	reg := metrics.NewRegistry()
	reg.Publish("simulator")

	// ── Simulator ────────────────────────────────────────────────────────────
	sim := app.NewDeliverySimulator(app.SimulatorConfig{
		MinDelay:    conf.Simulator.MinDelay,
		MaxDelay:    conf.Simulator.MaxDelay,
		SuccessRate: conf.Simulator.SuccessRate,
	}, reporter, reg, logging.WithComponent(log, "delivery-simulator"))

	admin := transport.NewAdminServer("delivery-simulator", log)

	errChan := make(chan error, 2)
	go func() {
		if err := admin.Listen(conf.HTTPAddr); err != nil {
			errChan <- err
		}
	}()
	go func() {
		if err := consumer.Consume(ctx, sim.HandleEnvelope); err != nil && ctx.Err() == nil {
			errChan <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	log.Info("delivery-simulator started",
		"queue", conf.Queue.Driver,
		"callback", conf.Callback.ServiceURL,
		"success_rate", conf.Simulator.SuccessRate,
		"admin_addr", conf.HTTPAddr,
	)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errChan:
		stop()
	}

	// In-flight envelopes see the cancelled context and stop without reporting.
	sim.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := admin.ShutdownWithContext(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to shutdown gracefully: %w", err))
	}

	log.Info("delivery-simulator stopped")
	return runErr
}

func openConsumer(ctx context.Context, q cfg.QueueConfig, log *slog.Logger) (ports.EnvelopeConsumer, func(), error) {
	switch q.Driver {
	case "kafka":
		if err := kafka.EnsureTopic(ctx, q.KafkaBrokers, q.KafkaTopic, 3); err != nil {
			return nil, nil, fmt.Errorf("ensure kafka topic: %w", err)
		}
		consumer := kafka.NewConsumer(q.KafkaBrokers, q.KafkaTopic, q.KafkaGroupID, log)
		return consumer, func() { _ = consumer.Close() }, nil
	case "rabbitmq":
		consumer, err := rabbitmq.NewConsumer(q.AMQPURL, prefetch, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect rabbitmq consumer: %w", err)
		}
		return consumer, consumer.Close, nil
	default:
		return nil, nil, errors.New("unsupported queue driver " + q.Driver)
	}
}
