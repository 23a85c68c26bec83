package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang-sms-gateway/internal/adapters/db/memory"
	"golang-sms-gateway/internal/app"
	"golang-sms-gateway/internal/domain"
	"golang-sms-gateway/internal/logging"
	"golang-sms-gateway/internal/metrics"
	"golang-sms-gateway/internal/ports"

	"github.com/google/uuid"
)

type fakePublisher struct {
	mu        sync.Mutex
	envelopes []domain.Envelope
	err       error
	panicWith any
	onPublish func(env domain.Envelope)
}

func (f *fakePublisher) Publish(ctx context.Context, env domain.Envelope) error {
	if f.onPublish != nil {
		f.onPublish(env)
	}
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envelopes = append(f.envelopes, env)
	return nil
}

type fakeGuard struct {
	mu       sync.Mutex
	claimed  map[uuid.UUID]bool
	released []uuid.UUID
}

func newFakeGuard() *fakeGuard { return &fakeGuard{claimed: map[uuid.UUID]bool{}} }

func (g *fakeGuard) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.claimed[id] {
		return false, nil
	}
	g.claimed[id] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claimed, id)
	g.released = append(g.released, id)
	return nil
}

var validReq = app.SendRequest{Sender: "+15551230000", Recipient: "+15559876543", Text: "hi"}

func newService(pub ports.EnvelopePublisher, opts ...app.Option) (*app.SMSService, *memory.Repository, *metrics.Registry) {
	repo := memory.New()
	reg := metrics.NewRegistry()
	return app.NewSMSService(repo, pub, reg, logging.Discard(), opts...), repo, reg
}

func TestSubmit_PublishesPendingMessage(t *testing.T) {
	pub := &fakePublisher{}
	svc, repo, reg := newService(pub)
	ctx := context.Background()

	msg, err := svc.Submit(ctx, validReq)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if msg.Status != domain.StatusPending || msg.ID == uuid.Nil {
		t.Fatalf("unexpected message: %+v", msg)
	}

	stored, err := repo.FindByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("FindByID() error: %v", err)
	}
	if stored != msg {
		t.Fatalf("stored message differs from returned one:\n%+v\n%+v", stored, msg)
	}

	if len(pub.envelopes) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(pub.envelopes))
	}
	if env := pub.envelopes[0]; env.MessageID != msg.ID || env.Status != domain.StatusPending || env.Text != "hi" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	if reg.Counter(app.MetricQueued) != 1 || reg.Counter(app.MetricQueueFailed) != 0 {
		t.Fatalf("unexpected counters")
	}
	if reg.TimerCount(app.MetricSendDuration) != 1 {
		t.Fatalf("expected a send duration sample")
	}
}

func TestSubmit_ValidationPersistsNothing(t *testing.T) {
	pub := &fakePublisher{}
	svc, repo, _ := newService(pub)

	_, err := svc.Submit(context.Background(), app.SendRequest{Sender: "nope", Recipient: "+15559876543", Text: " "})

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %+v", verr.Violations)
	}

	st, _ := repo.CountByStatus(context.Background())
	if st.Total != 0 {
		t.Fatalf("expected nothing persisted, got %+v", st)
	}
	if len(pub.envelopes) != 0 {
		t.Fatalf("expected nothing published")
	}
}

func TestSubmit_PublishFailureMarksFailed(t *testing.T) {
	cases := map[string]*fakePublisher{
		"error": {err: errors.New("connection refused")},
		"panic": {panicWith: "nil channel"},
	}

	for name, pub := range cases {
		pub := pub
		t.Run(name, func(t *testing.T) {
			svc, repo, reg := newService(pub)
			ctx := context.Background()

			msg, err := svc.Submit(ctx, validReq)
			if err != nil {
				t.Fatalf("expected success-shaped result, got %v", err)
			}
			if msg.Status != domain.StatusFailed {
				t.Fatalf("expected FAILED, got %s", msg.Status)
			}
			if !strings.HasPrefix(msg.FailureReason, app.QueueFailurePrefix) || len(msg.FailureReason) == len(app.QueueFailurePrefix) {
				t.Fatalf("unexpected failure reason %q", msg.FailureReason)
			}

			stored, _ := repo.FindByID(ctx, msg.ID)
			if stored.Status != domain.StatusFailed || stored.FailureReason != msg.FailureReason {
				t.Fatalf("stored message not FAILED: %+v", stored)
			}

			if reg.Counter(app.MetricQueueFailed) != 1 || reg.Counter(app.MetricQueued) != 0 {
				t.Fatalf("unexpected counters")
			}
		})
	}
}

func TestSubmit_ConcurrentReaderNeverSeesPendingAfterFailedPublish(t *testing.T) {
	repo := memory.New()
	observed := make(chan domain.Message, 1)

	pub := &fakePublisher{err: errors.New("broker down")}
	pub.onPublish = func(env domain.Envelope) {
		go func() {
			m, err := repo.FindByID(context.Background(), env.MessageID)
			if err != nil {
				t.Errorf("reader: %v", err)
			}
			observed <- m
		}()
		time.Sleep(10 * time.Millisecond)
	}

	svc := app.NewSMSService(repo, pub, metrics.Discard, logging.Discard())
	if _, err := svc.Submit(context.Background(), validReq); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	select {
	case m := <-observed:
		if m.Status != domain.StatusFailed {
			t.Fatalf("reader observed %s", m.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("reader never finished")
	}
}

func TestApplyDeliveryOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("sent", func(t *testing.T) {
		svc, repo, reg := newService(&fakePublisher{})
		msg, _ := svc.Submit(ctx, validReq)

		got, err := svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: msg.ID, Status: domain.StatusSent})
		if err != nil {
			t.Fatalf("ApplyDeliveryOutcome() error: %v", err)
		}
		if got.Status != domain.StatusSent || got.FailureReason != "" {
			t.Fatalf("unexpected result: %+v", got)
		}
		stored, _ := repo.FindByID(ctx, msg.ID)
		if stored.Status != domain.StatusSent || !stored.CreatedAt.Equal(msg.CreatedAt) {
			t.Fatalf("unexpected stored message: %+v", stored)
		}
		if reg.Counter(app.MetricSent) != 1 {
			t.Fatalf("expected sms_sent_total=1")
		}
	})

	t.Run("failed", func(t *testing.T) {
		svc, repo, reg := newService(&fakePublisher{})
		msg, _ := svc.Submit(ctx, validReq)

		_, err := svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: msg.ID, Status: domain.StatusFailed, FailureReason: "Daily quota exceeded"})
		if err != nil {
			t.Fatalf("ApplyDeliveryOutcome() error: %v", err)
		}
		stored, _ := repo.FindByID(ctx, msg.ID)
		if stored.Status != domain.StatusFailed || stored.FailureReason != "Daily quota exceeded" {
			t.Fatalf("unexpected stored message: %+v", stored)
		}
		if reg.Counter(app.MetricFailed) != 1 {
			t.Fatalf("expected sms_failed_total=1")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		svc, repo, reg := newService(&fakePublisher{})

		_, err := svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: uuid.New(), Status: domain.StatusSent})
		if !errors.Is(err, domain.ErrMessageNotFound) {
			t.Fatalf("expected ErrMessageNotFound, got %v", err)
		}
		st, _ := repo.CountByStatus(ctx)
		if st.Total != 0 || reg.Counter(app.MetricSent) != 0 {
			t.Fatalf("expected no side effects")
		}
	})

	t.Run("invalid report", func(t *testing.T) {
		svc, _, _ := newService(&fakePublisher{})
		msg, _ := svc.Submit(ctx, validReq)

		_, err := svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: msg.ID, Status: domain.StatusFailed})
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
	})

	t.Run("second outcome wins without guard", func(t *testing.T) {
		svc, repo, _ := newService(&fakePublisher{})
		msg, _ := svc.Submit(ctx, validReq)

		_, _ = svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: msg.ID, Status: domain.StatusSent})
		_, err := svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: msg.ID, Status: domain.StatusFailed, FailureReason: "Network timeout"})
		if err != nil {
			t.Fatalf("expected second outcome to be applied, got %v", err)
		}
		stored, _ := repo.FindByID(ctx, msg.ID)
		if stored.Status != domain.StatusFailed {
			t.Fatalf("expected last write to win, got %s", stored.Status)
		}
	})
}

func TestApplyDeliveryOutcome_WithGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("second outcome conflicts", func(t *testing.T) {
		guard := newFakeGuard()
		svc, repo, _ := newService(&fakePublisher{}, app.WithOutcomeGuard(guard))
		msg, _ := svc.Submit(ctx, validReq)

		if _, err := svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: msg.ID, Status: domain.StatusSent}); err != nil {
			t.Fatalf("first outcome error: %v", err)
		}
		_, err := svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: msg.ID, Status: domain.StatusFailed, FailureReason: "Network timeout"})
		if !errors.Is(err, domain.ErrOutcomeConflict) {
			t.Fatalf("expected ErrOutcomeConflict, got %v", err)
		}
		stored, _ := repo.FindByID(ctx, msg.ID)
		if stored.Status != domain.StatusSent {
			t.Fatalf("expected first outcome kept, got %s", stored.Status)
		}
	})

	t.Run("already terminal", func(t *testing.T) {
		guard := newFakeGuard()
		svc, _, _ := newService(&fakePublisher{err: errors.New("down")}, app.WithOutcomeGuard(guard))
		msg, _ := svc.Submit(ctx, validReq)

		_, err := svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: msg.ID, Status: domain.StatusSent})
		if !errors.Is(err, domain.ErrOutcomeConflict) {
			t.Fatalf("expected ErrOutcomeConflict for FAILED message, got %v", err)
		}
	})

	t.Run("claim released on not found", func(t *testing.T) {
		guard := newFakeGuard()
		svc, _, _ := newService(&fakePublisher{}, app.WithOutcomeGuard(guard))
		id := uuid.New()

		_, err := svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: id, Status: domain.StatusSent})
		if !errors.Is(err, domain.ErrMessageNotFound) {
			t.Fatalf("expected ErrMessageNotFound, got %v", err)
		}
		if len(guard.released) != 1 || guard.released[0] != id {
			t.Fatalf("expected claim released, got %v", guard.released)
		}
	})
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { now = now.Add(time.Second); return now }

	svc, _, _ := newService(&fakePublisher{}, app.WithClock(clock))

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		m, err := svc.Submit(ctx, validReq)
		if err != nil {
			t.Fatalf("Submit() error: %v", err)
		}
		ids = append(ids, m.ID)
	}
	_, _ = svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: ids[0], Status: domain.StatusSent})
	_, _ = svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: ids[1], Status: domain.StatusSent})
	_, _ = svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: ids[2], Status: domain.StatusFailed, FailureReason: "Network timeout"})

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st.Total != 4 || st.Sent != 2 || st.Failed != 1 || st.Pending != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if rate := st.SuccessRate(); rate < 0.666 || rate > 0.667 {
		t.Fatalf("unexpected success rate %v", rate)
	}

	page, err := svc.ListUserMessages(ctx, validReq.Recipient, nil, domain.PageRequest{Page: 0, Size: 3})
	if err != nil {
		t.Fatalf("ListUserMessages() error: %v", err)
	}
	if page.Total != 4 || len(page.Messages) != 3 || page.Messages[0].ID != ids[3] {
		t.Fatalf("unexpected page: total=%d len=%d", page.Total, len(page.Messages))
	}

	failed, err := svc.ListFailedMessages(ctx, domain.PageRequest{Page: 0, Size: 20})
	if err != nil || failed.Total != 1 || failed.Messages[0].ID != ids[2] {
		t.Fatalf("unexpected failed list: %+v %v", failed, err)
	}

	var verr *domain.ValidationError
	if _, err := svc.ListUserMessages(ctx, "not-a-phone", nil, domain.PageRequest{Page: 0, Size: 20}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for bad phone, got %v", err)
	}
	if _, err := svc.ListFailedMessages(ctx, domain.PageRequest{Page: 0, Size: 500}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for bad size, got %v", err)
	}

	if _, err := svc.GetMessage(ctx, uuid.New()); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestExpireStalePending(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	svc, repo, reg := newService(&fakePublisher{}, app.WithClock(clock))

	old, _ := svc.Submit(ctx, validReq)
	done, _ := svc.Submit(ctx, validReq)
	_, _ = svc.ApplyDeliveryOutcome(ctx, domain.DeliveryReport{MessageID: done.ID, Status: domain.StatusSent})

	now = now.Add(20 * time.Minute)
	fresh, _ := svc.Submit(ctx, validReq)

	n, err := svc.ExpireStalePending(ctx, 15*time.Minute, 10)
	if err != nil {
		t.Fatalf("ExpireStalePending() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}

	got, _ := repo.FindByID(ctx, old.ID)
	if got.Status != domain.StatusFailed || !strings.HasPrefix(got.FailureReason, "Delivery outcome not reported within") {
		t.Fatalf("unexpected expired message: %+v", got)
	}
	if got, _ := repo.FindByID(ctx, done.ID); got.Status != domain.StatusSent {
		t.Fatalf("terminal message must not be touched, got %s", got.Status)
	}
	if got, _ := repo.FindByID(ctx, fresh.ID); got.Status != domain.StatusPending {
		t.Fatalf("fresh message must stay PENDING, got %s", got.Status)
	}
	if reg.Counter(app.MetricExpired) != 1 {
		t.Fatalf("expected sms_expired_total=1")
	}
}
