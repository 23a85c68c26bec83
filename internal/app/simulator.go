package app

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang-sms-gateway/internal/domain"
	"golang-sms-gateway/internal/ports"
)

// FailureReasons are the simulated provider errors, drawn uniformly.
var FailureReasons = []string{
	"Invalid phone number",
	"Network timeout",
	"Carrier rejected message",
	"Daily quota exceeded",
	"Phone number blocked",
	"Message content violation",
	"Temporary service unavailable",
}

// SimulatorConfig controls simulated latency and success probability.
type SimulatorConfig struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	SuccessRate float64
}

// Random is the subset of *rand.Rand the simulator draws from.
type Random interface {
	Float64() float64
	Int64N(n int64) int64
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) Float64() float64     { return rand.Float64() }
func (globalRandom) Int64N(n int64) int64 { return rand.Int64N(n) }
func (globalRandom) IntN(n int) int       { return rand.IntN(n) }

// DeliverySimulator consumes envelopes and reports a simulated outcome for
// each one. Every envelope is processed on its own goroutine so a slow
// callback never blocks consumption.
type DeliverySimulator struct {
	cfg      SimulatorConfig
	reporter ports.DeliveryReporter
	metrics  ports.Metrics
	log      *slog.Logger

	mu  sync.Mutex // guards rnd
	rnd Random

	wg sync.WaitGroup
}

// SimulatorOption configures a DeliverySimulator.
type SimulatorOption func(*DeliverySimulator)

// WithRandom replaces the process-wide random source, e.g. with a seeded one.
func WithRandom(r Random) SimulatorOption {
	return func(s *DeliverySimulator) { s.rnd = r }
}

func NewDeliverySimulator(
	cfg SimulatorConfig,
	reporter ports.DeliveryReporter,
	metrics ports.Metrics,
	log *slog.Logger,
	opts ...SimulatorOption,
) *DeliverySimulator {
	s := &DeliverySimulator{
		cfg:      cfg,
		reporter: reporter,
		metrics:  metrics,
		log:      log,
		rnd:      globalRandom{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleEnvelope is the queue handler. Undecodable payloads are logged and
// dropped; the handler returns nil so the queue does not redeliver them.
func (s *DeliverySimulator) HandleEnvelope(ctx context.Context, body []byte) error {
	env, err := domain.DecodeEnvelope(body)
	if err != nil {
		s.metrics.IncCounter(MetricDecodeFailed)
		s.log.Error("drop undecodable envelope", "err", err, "size", len(body))
		return nil
	}

	s.wg.Add(1)
	go s.process(ctx, env)
	return nil
}

// Wait blocks until every envelope handed to HandleEnvelope is processed.
func (s *DeliverySimulator) Wait() {
	s.wg.Wait()
}

func (s *DeliverySimulator) process(ctx context.Context, env domain.Envelope) {
	defer s.wg.Done()

	start := time.Now()
	log := s.log.With("msg_id", env.MessageID)

	if !sleep(ctx, s.delay()) {
		log.Warn("processing aborted", "err", ctx.Err())
		return
	}

	report := s.simulate(env)
	if report.Status == domain.StatusSent {
		s.metrics.IncCounter(MetricProcessingSuccess)
	} else {
		s.metrics.IncCounter(MetricProcessingFailure)
	}

	cbStart := time.Now()
	err := s.reporter.Report(ctx, report)
	s.metrics.ObserveDuration(MetricCallbackDuration, time.Since(cbStart))
	s.metrics.ObserveDuration(MetricProcessingDuration, time.Since(start))

	if err != nil {
		// Not retried: the message stays PENDING in the store.
		s.metrics.IncCounter(MetricCallbackFailure)
		s.metrics.IncCounter(MetricProcessingError)
		log.Error("delivery report failed", "status", report.Status, "err", err)
		return
	}

	s.metrics.IncCounter(MetricCallbackSuccess)
	log.Info("delivery reported", "status", report.Status, "reason", report.FailureReason)
}

func (s *DeliverySimulator) delay() time.Duration {
	span := int64(s.cfg.MaxDelay - s.cfg.MinDelay)
	if span <= 0 {
		return s.cfg.MinDelay
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.MinDelay + time.Duration(s.rnd.Int64N(span+1))
}

func (s *DeliverySimulator) simulate(env domain.Envelope) domain.DeliveryReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := domain.DeliveryReport{
		MessageID:   env.MessageID,
		Status:      domain.StatusSent,
		ProcessedAt: time.Now().UTC(),
	}
	if s.rnd.Float64() < s.cfg.SuccessRate {
		return report
	}

	report.Status = domain.StatusFailed
	report.FailureReason = FailureReasons[s.rnd.IntN(len(FailureReasons))]
	return report
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
