package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-sms-gateway/internal/adapters/db/gormrepo"
	"golang-sms-gateway/internal/app"
	cfg "golang-sms-gateway/internal/config"
	"golang-sms-gateway/internal/domain"
	"golang-sms-gateway/internal/logging"
	"golang-sms-gateway/internal/metrics"
	"golang-sms-gateway/internal/ports"
	"golang-sms-gateway/internal/transport"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log := logging.New(logging.FromEnv())

	conf, err := cfg.FromEnv(":8083")
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}
	if conf.Database.Driver == "memory" {
		// The in-memory store lives inside the API process.
		log.Error("pending-reaper needs a shared database", "driver", conf.Database.Driver)
		os.Exit(1)
	}

	// ── Adapters ─────────────────────────────────────────────────────────────
	repo, err := gormrepo.Open(conf.Database.Driver, conf.Database.URL)
	if err != nil {
		log.Error("connect database", "driver", conf.Database.Driver, "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	reg := metrics.NewRegistry()
	reg.Publish("reaper")

	// ── Application service ──────────────────────────────────────────────────
	// The reaper never submits, so it gets no publisher.
	svc := app.NewSMSService(repo, noPublisher{}, reg, logging.WithComponent(log, "pending-reaper"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	admin := transport.NewAdminServer("pending-reaper", log)
	go func() {
		if err := admin.Listen(conf.HTTPAddr); err != nil {
			log.Error("admin server", "err", err)
		}
	}()
	defer admin.Shutdown()

	ticker := time.NewTicker(conf.Reaper.Interval)
	defer ticker.Stop()

	log.Info("pending-reaper started",
		"interval", conf.Reaper.Interval.String(),
		"max_age", conf.Reaper.MaxAge.String(),
		"batch_size", conf.Reaper.BatchSize,
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down pending-reaper")
			return

		case <-ticker.C:
			reap(ctx, svc, conf.Reaper, log)
		}
	}
}

func reap(ctx context.Context, svc *app.SMSService, rc cfg.ReaperConfig, log *slog.Logger) {
	n, err := svc.ExpireStalePending(ctx, rc.MaxAge, rc.BatchSize)
	if err != nil {
		log.Error("expire stale pending messages", "err", err)
		return
	}
	if n > 0 {
		log.Info("expired stale pending messages", "count", n)
	}
}

var errNoPublisher = errors.New("pending-reaper does not publish")

type noPublisher struct{}

var _ ports.EnvelopePublisher = noPublisher{}

func (noPublisher) Publish(context.Context, domain.Envelope) error { return errNoPublisher }
