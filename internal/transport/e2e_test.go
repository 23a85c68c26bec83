package transport_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"golang-sms-gateway/internal/adapters/callback/httpclient"
	"golang-sms-gateway/internal/adapters/db/memory"
	queuemem "golang-sms-gateway/internal/adapters/queue/memory"
	"golang-sms-gateway/internal/app"
	"golang-sms-gateway/internal/logging"
	"golang-sms-gateway/internal/metrics"
	"golang-sms-gateway/internal/transport"
)

// startPipeline runs the API on a real listener with an in-process queue and
// a simulator that reports back over HTTP.
func startPipeline(t *testing.T, successRate float64) string {
	t.Helper()

	log := logging.Discard()
	ctx, cancel := context.WithCancel(context.Background())

	queue := queuemem.NewChannel(64, log)
	svc := app.NewSMSService(memory.New(), queue, metrics.Discard, log)
	fiberApp, rl := transport.NewServer(transport.ServerConfig{
		AppName:           "sms-e2e",
		RateLimit:         1000,
		InternalRateLimit: 1000,
		RateWindow:        time.Minute,
	}, transport.NewHandler(svc, log), log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = fiberApp.Listener(ln) }()

	baseURL := "http://" + ln.Addr().String()

	sim := app.NewDeliverySimulator(app.SimulatorConfig{SuccessRate: successRate},
		httpclient.New(baseURL, 2*time.Second), metrics.Discard, log)
	go func() { _ = queue.Consume(ctx, sim.HandleEnvelope) }()

	t.Cleanup(func() {
		cancel()
		queue.Close()
		sim.Wait()
		rl.Stop()
		_ = fiberApp.Shutdown()
	})
	return baseURL
}

func getMessage(t *testing.T, url string) map[string]any {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func awaitTerminal(t *testing.T, url string) map[string]any {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := getMessage(t, url)
		if msg["status"] != "PENDING" {
			return msg
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("message %s never left PENDING", url)
	return nil
}

func submitOverHTTP(t *testing.T, baseURL string) string {
	t.Helper()

	resp, err := http.Post(baseURL+"/v1/messages", "application/json", strings.NewReader(validBody))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		t.Fatalf("expected Location header")
	}
	return baseURL + loc
}

func TestPipeline_Delivered(t *testing.T) {
	baseURL := startPipeline(t, 1.0)

	msg := awaitTerminal(t, submitOverHTTP(t, baseURL))
	if msg["status"] != "SENT" {
		t.Fatalf("expected SENT, got %v", msg["status"])
	}
	if msg["failure_reason"] != nil {
		t.Fatalf("expected null failure_reason, got %v", msg["failure_reason"])
	}
}

func TestPipeline_Failed(t *testing.T) {
	baseURL := startPipeline(t, 0.0)

	msg := awaitTerminal(t, submitOverHTTP(t, baseURL))
	if msg["status"] != "FAILED" {
		t.Fatalf("expected FAILED, got %v", msg["status"])
	}
	reason, _ := msg["failure_reason"].(string)
	if !slices.Contains(app.FailureReasons, reason) {
		t.Fatalf("unexpected failure_reason %q", reason)
	}
}
