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

	"golang-sms-gateway/internal/adapters/cache/redis"
	"golang-sms-gateway/internal/adapters/db/gormrepo"
	"golang-sms-gateway/internal/adapters/db/memory"
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

func main() {
	_ = godotenv.Load()

	log := logging.New(logging.FromEnv())
	if err := run(log); err != nil {
		log.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	conf, err := cfg.FromEnv(":8080")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Adapters ─────────────────────────────────────────────────────────────
	repo, closeRepo, err := openRepository(ctx, conf.Database)
	if err != nil {
		return err
	}
	defer closeRepo()

	publisher, closePublisher, err := openPublisher(ctx, conf.Queue, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	reg := metrics.NewRegistry()
	reg.Publish("sms")

	opts := []app.Option{}
	if conf.Redis.Enabled {
		rdb, err := redis.NewClient(ctx, conf.Redis.Address, conf.Redis.Password, conf.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		opts = append(opts, app.WithOutcomeGuard(redis.NewOutcomeGuard(rdb, conf.Redis.TTL)))
		log.Info("outcome guard enabled", "addr", conf.Redis.Address, "ttl", conf.Redis.TTL)
	}

	// ── Application service ──────────────────────────────────────────────────
	svc := app.NewSMSService(repo, publisher, reg, logging.WithComponent(log, "sms-service"), opts...)

	fiberApp, rateLimiter := transport.NewServer(transport.ServerConfig{
		AppName:           "sms-api",
		AllowedOrigins:    conf.Security.Origins(),
		RateLimit:         conf.Security.RateLimit,
		InternalRateLimit: conf.Security.InternalRateLimit,
		RateWindow:        conf.Security.RateWindow,
		AccessLog:         true,
	}, transport.NewHandler(svc, log), log)
	defer rateLimiter.Stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("sms-api started", "addr", conf.HTTPAddr,
			"database", conf.Database.Driver, "queue", conf.Queue.Driver)
		if err := fiberApp.Listen(conf.HTTPAddr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown gracefully: %w", err)
	}

	log.Info("sms-api stopped gracefully")
	return nil
}

func openRepository(ctx context.Context, db cfg.DatabaseConfig) (ports.MessageRepository, func(), error) {
	if db.Driver == "memory" {
		return memory.New(), func() {}, nil
	}

	repo, err := gormrepo.Open(db.Driver, db.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", db.Driver, err)
	}
	if db.Driver == "sqlite" {
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
	}
	return repo, func() { _ = repo.Close() }, nil
}

func openPublisher(ctx context.Context, q cfg.QueueConfig, log *slog.Logger) (ports.EnvelopePublisher, func(), error) {
	switch q.Driver {
	case "kafka":
		if err := kafka.EnsureTopic(ctx, q.KafkaBrokers, q.KafkaTopic, 3); err != nil {
			return nil, nil, fmt.Errorf("ensure kafka topic: %w", err)
		}
		producer := kafka.NewProducer(q.KafkaBrokers, q.KafkaTopic, log)
		return producer, func() { _ = producer.Close() }, nil
	case "rabbitmq":
		publisher, err := rabbitmq.NewPublisher(q.AMQPURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect rabbitmq publisher: %w", err)
		}
		return publisher, publisher.Close, nil
	default:
		return nil, nil, errors.New("unsupported queue driver " + q.Driver)
	}
}
