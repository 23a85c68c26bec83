// Command sms-standalone runs the coordinator and the delivery simulator in
// one process, connected by an in-memory queue. Nothing is persisted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-sms-gateway/internal/adapters/callback/httpclient"
	"golang-sms-gateway/internal/adapters/db/memory"
	queuemem "golang-sms-gateway/internal/adapters/queue/memory"
	"golang-sms-gateway/internal/app"
	cfg "golang-sms-gateway/internal/config"
	"golang-sms-gateway/internal/logging"
	"golang-sms-gateway/internal/metrics"
	"golang-sms-gateway/internal/transport"

	"github.com/joho/godotenv"
)

const queueBuffer = 1024

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

	ln, err := net.Listen("tcp", conf.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.HTTPAddr, err)
	}
	selfURL := "http://" + loopback(ln.Addr())

	reg := metrics.NewRegistry()
	reg.Publish("sms")

	queue := queuemem.NewChannel(queueBuffer, logging.WithComponent(log, "queue"))
	defer queue.Close()

	svc := app.NewSMSService(memory.New(), queue, reg, logging.WithComponent(log, "sms-service"))
	sim := app.NewDeliverySimulator(app.SimulatorConfig{
		MinDelay:    conf.Simulator.MinDelay,
		MaxDelay:    conf.Simulator.MaxDelay,
		SuccessRate: conf.Simulator.SuccessRate,
	}, httpclient.New(selfURL, conf.Callback.Timeout), reg, logging.WithComponent(log, "delivery-simulator"))

	fiberApp, rateLimiter := transport.NewServer(transport.ServerConfig{
		AppName:           "sms-standalone",
		AllowedOrigins:    conf.Security.Origins(),
		RateLimit:         conf.Security.RateLimit,
		InternalRateLimit: conf.Security.InternalRateLimit,
		RateWindow:        conf.Security.RateWindow,
		AccessLog:         true,
	}, transport.NewHandler(svc, log), log)
	defer rateLimiter.Stop()

	errChan := make(chan error, 1)
	go func() {
		if err := fiberApp.Listener(ln); err != nil {
			errChan <- err
		}
	}()
	go func() {
		_ = queue.Consume(ctx, sim.HandleEnvelope)
	}()

	log.Info("sms-standalone started", "addr", ln.Addr().String(), "callback", selfURL)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errChan:
		return err
	}

	sim.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown gracefully: %w", err)
	}

	log.Info("sms-standalone stopped gracefully")
	return nil
}

// loopback turns a wildcard listen address into one the simulator can dial.
func loopback(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || tcp.IP.IsUnspecified() {
		_, port, _ := net.SplitHostPort(addr.String())
		return net.JoinHostPort("127.0.0.1", port)
	}
	return tcp.String()
}
