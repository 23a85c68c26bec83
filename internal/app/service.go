package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang-sms-gateway/internal/domain"
	"golang-sms-gateway/internal/ports"

	"github.com/google/uuid"
)

// QueueFailurePrefix starts the failure reason of a message that could not be published.
const QueueFailurePrefix = "Failed to queue message for processing: "

// PublishError wraps any failure of the publish call, including a recovered panic.
type PublishError struct {
	MessageID uuid.UUID
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish message %s: %v", e.MessageID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// SMSService is the send coordinator: it accepts send requests, hands them
// to the queue and applies the delivery outcomes reported back.
type SMSService struct {
	repo      ports.MessageRepository
	publisher ports.EnvelopePublisher
	metrics   ports.Metrics
	guard     ports.OutcomeGuard
	log       *slog.Logger
	now       func() time.Time
}

// Option configures optional SMSService collaborators.
type Option func(*SMSService)

// WithOutcomeGuard rejects a second delivery outcome for the same message
// with domain.ErrOutcomeConflict. Without it the last outcome wins.
func WithOutcomeGuard(g ports.OutcomeGuard) Option {
	return func(s *SMSService) { s.guard = g }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *SMSService) { s.now = now }
}

// NewSMSService wires the service with its dependencies.
func NewSMSService(
	repo ports.MessageRepository,
	publisher ports.EnvelopePublisher,
	metrics ports.Metrics,
	log *slog.Logger,
	opts ...Option,
) *SMSService {
	s := &SMSService{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendRequest is the input for submitting a single SMS.
type SendRequest struct {
	Sender    string
	Recipient string
	Text      string
}

// Submit persists a PENDING message and publishes its envelope. A publish
// failure does not fail the call: the message is stored as FAILED instead.
// Save, publish and the failure update share one transaction, so readers
// never observe the PENDING row of a message whose publish failed.
func (s *SMSService) Submit(ctx context.Context, req SendRequest) (domain.Message, error) {
	msg, err := domain.NewMessage(req.Sender, req.Recipient, req.Text, s.now())
	if err != nil {
		return domain.Message{}, err
	}

	start := time.Now()
	var pubErr error

	err = s.repo.Transact(ctx, func(ctx context.Context, tx ports.MessageRepository) error {
		if err := tx.Save(ctx, msg); err != nil {
			return fmt.Errorf("save message: %w", err)
		}

		pubErr = s.publish(ctx, msg)
		if pubErr == nil {
			return nil
		}

		var pe *PublishError
		reason := pubErr.Error()
		if errors.As(pubErr, &pe) {
			reason = pe.Err.Error()
		}
		msg.MarkFailed(QueueFailurePrefix+reason, s.now())
		if err := tx.Update(ctx, msg); err != nil {
			return fmt.Errorf("mark message failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}

	s.metrics.ObserveDuration(MetricSendDuration, time.Since(start))

	if pubErr != nil {
		s.metrics.IncCounter(MetricQueueFailed)
		s.log.Error("queue publish failed", "msg_id", msg.ID, "err", pubErr)
		return msg, nil
	}

	s.metrics.IncCounter(MetricQueued)
	s.log.Info("message queued", "msg_id", msg.ID, "recipient", msg.Recipient)
	return msg, nil
}

func (s *SMSService) publish(ctx context.Context, msg domain.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PublishError{MessageID: msg.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := s.publisher.Publish(ctx, domain.NewEnvelope(msg)); err != nil {
		return &PublishError{MessageID: msg.ID, Err: err}
	}
	return nil
}

// GetMessage returns domain.ErrMessageNotFound for unknown ids.
func (s *SMSService) GetMessage(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	msg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// ListUserMessages pages through the messages a phone number sent or received.
func (s *SMSService) ListUserMessages(ctx context.Context, phone string, status *domain.Status, page domain.PageRequest) (domain.MessagePage, error) {
	if !domain.ValidPhoneNumber(phone) {
		return domain.MessagePage{}, domain.NewValidationError("userId", "invalid phone number format")
	}
	if err := page.Validate(); err != nil {
		return domain.MessagePage{}, err
	}

	res, err := s.repo.ListByUser(ctx, phone, status, page)
	if err != nil {
		return domain.MessagePage{}, fmt.Errorf("list user messages: %w", err)
	}
	return res, nil
}

// ListFailedMessages pages through FAILED messages, most recently updated first.
func (s *SMSService) ListFailedMessages(ctx context.Context, page domain.PageRequest) (domain.MessagePage, error) {
	if err := page.Validate(); err != nil {
		return domain.MessagePage{}, err
	}

	res, err := s.repo.ListFailed(ctx, page)
	if err != nil {
		return domain.MessagePage{}, fmt.Errorf("list failed messages: %w", err)
	}
	return res, nil
}

// Stats counts messages per status.
func (s *SMSService) Stats(ctx context.Context) (domain.Stats, error) {
	st, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count messages: %w", err)
	}
	return st, nil
}

// ApplyDeliveryOutcome stores the outcome reported by the delivery simulator.
//
// Without an OutcomeGuard a message that is already terminal is overwritten,
// so concurrent or repeated reports for one id are last-write-wins.
func (s *SMSService) ApplyDeliveryOutcome(ctx context.Context, r domain.DeliveryReport) (domain.Message, error) {
	if err := r.Validate(); err != nil {
		return domain.Message{}, err
	}

	if s.guard != nil {
		ok, err := s.guard.Claim(ctx, r.MessageID)
		if err != nil {
			return domain.Message{}, fmt.Errorf("claim outcome: %w", err)
		}
		if !ok {
			return domain.Message{}, domain.ErrOutcomeConflict
		}
	}

	var updated domain.Message
	err := s.repo.Transact(ctx, func(ctx context.Context, tx ports.MessageRepository) error {
		msg, err := tx.FindByID(ctx, r.MessageID)
		if err != nil {
			return err
		}
		if s.guard != nil && msg.Status.Terminal() {
			return domain.ErrOutcomeConflict
		}

		msg.Apply(r, s.now())
		if err := tx.Update(ctx, msg); err != nil {
			return fmt.Errorf("update message: %w", err)
		}
		updated = msg
		return nil
	})
	if err != nil {
		s.releaseClaim(ctx, r.MessageID)
		return domain.Message{}, fmt.Errorf("apply delivery outcome: %w", err)
	}

	if updated.Status == domain.StatusSent {
		s.metrics.IncCounter(MetricSent)
	} else {
		s.metrics.IncCounter(MetricFailed)
	}

	s.log.Info("delivery outcome applied", "msg_id", updated.ID, "status", updated.Status)
	return updated, nil
}

func (s *SMSService) releaseClaim(ctx context.Context, id uuid.UUID) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, id); err != nil {
		s.log.Error("release outcome claim failed", "msg_id", id, "err", err)
	}
}

// ExpireStalePending marks up to limit messages that have stayed PENDING
// longer than maxAge as FAILED. It returns how many were expired.
func (s *SMSService) ExpireStalePending(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	msgs, err := s.repo.ListStalePending(ctx, s.now().Add(-maxAge), limit)
	if err != nil {
		return 0, fmt.Errorf("list stale pending: %w", err)
	}

	reason := fmt.Sprintf("Delivery outcome not reported within %s", maxAge)
	expired := 0
	for _, m := range msgs {
		var changed bool
		err := s.repo.Transact(ctx, func(ctx context.Context, tx ports.MessageRepository) error {
			cur, err := tx.FindByID(ctx, m.ID)
			if err != nil {
				return err
			}
			// An outcome may have arrived since the listing.
			if cur.Status != domain.StatusPending {
				return nil
			}
			cur.MarkFailed(reason, s.now())
			changed = true
			return tx.Update(ctx, cur)
		})
		if err != nil {
			s.log.Error("expire message failed", "msg_id", m.ID, "err", err)
			continue
		}
		if changed {
			expired++
			s.metrics.IncCounter(MetricExpired)
			s.log.Warn("pending message expired", "msg_id", m.ID, "created_at", m.CreatedAt)
		}
	}

	return expired, nil
}
