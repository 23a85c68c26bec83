package domain

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxFailureReasonLength matches the width of the failure_reason column.
const MaxFailureReasonLength = 500

// Message is the core domain entity representing a single SMS.
type Message struct {
	ID            uuid.UUID
	Sender        string
	Recipient     string
	Text          string
	Status        Status
	FailureReason string // Empty unless Status is StatusFailed
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewMessage validates the input and creates a new pending Message.
func NewMessage(sender, recipient, text string, now time.Time) (Message, error) {
	if err := ValidateSendRequest(sender, recipient, text); err != nil {
		return Message{}, err
	}

	now = now.UTC()
	return Message{
		ID:        uuid.New(),
		Sender:    sender,
		Recipient: recipient,
		Text:      text,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkSent moves the message to SENT and clears any failure reason.
func (m *Message) MarkSent(now time.Time) {
	m.Status = StatusSent
	m.FailureReason = ""
	m.UpdatedAt = now.UTC()
}

// MarkFailed moves the message to FAILED with the given reason.
func (m *Message) MarkFailed(reason string, now time.Time) {
	m.Status = StatusFailed
	m.FailureReason = truncate(reason, MaxFailureReasonLength)
	m.UpdatedAt = now.UTC()
}

// Apply sets the outcome carried by a delivery report.
// It does not check whether the message is already terminal.
func (m *Message) Apply(r DeliveryReport, now time.Time) {
	switch r.Status {
	case StatusSent:
		m.MarkSent(now)
	case StatusFailed:
		m.MarkFailed(r.FailureReason, now)
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// Domain errors
var (
	ErrMessageNotFound = errors.New("message not found")
	ErrOutcomeConflict = errors.New("delivery outcome already applied")
)
