package ports

import (
	"context"
	"time"

	"golang-sms-gateway/internal/domain"

	"github.com/google/uuid"
)

// MessageRepository defines persistence operations for SMS messages.
type MessageRepository interface {
	// Save inserts a new message.
	Save(ctx context.Context, msg domain.Message) error

	// Update overwrites status, failure reason and updated_at of an existing message.
	// Returns domain.ErrMessageNotFound when no row matches.
	Update(ctx context.Context, msg domain.Message) error

	// FindByID returns domain.ErrMessageNotFound when the id is unknown.
	FindByID(ctx context.Context, id uuid.UUID) (domain.Message, error)

	// ListByUser returns messages where phone is sender or recipient, newest first.
	// A nil status matches every status.
	ListByUser(ctx context.Context, phone string, status *domain.Status, page domain.PageRequest) (domain.MessagePage, error)

	// ListFailed returns FAILED messages, most recently updated first.
	ListFailed(ctx context.Context, page domain.PageRequest) (domain.MessagePage, error)

	// CountByStatus aggregates the whole table.
	CountByStatus(ctx context.Context) (domain.Stats, error)

	// ListStalePending returns up to limit PENDING messages created before olderThan.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Message, error)

	// Transact runs fn inside a single transaction. The repository passed to fn
	// is bound to that transaction; returning an error rolls it back.
	Transact(ctx context.Context, fn func(ctx context.Context, tx MessageRepository) error) error
}
