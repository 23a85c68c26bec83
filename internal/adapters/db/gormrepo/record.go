package gormrepo

import (
	"fmt"
	"time"

	"golang-sms-gateway/internal/domain"

	"github.com/google/uuid"
)

// messageRecord is the row layout of the messages table.
type messageRecord struct {
	ID            string    `gorm:"type:varchar(36);primaryKey"`
	Sender        string    `gorm:"type:varchar(20);not null;index:idx_messages_sender"`
	Recipient     string    `gorm:"type:varchar(20);not null;index:idx_messages_recipient"`
	Text          string    `gorm:"type:text;not null"`
	Status        string    `gorm:"type:varchar(10);not null;index:idx_messages_status"`
	FailureReason *string   `gorm:"type:varchar(500)"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime:false;index:idx_messages_created_at"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (messageRecord) TableName() string { return "messages" }

func toRecord(m domain.Message) messageRecord {
	rec := messageRecord{
		ID:        m.ID.String(),
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Text:      m.Text,
		Status:    m.Status.String(),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if m.FailureReason != "" {
		reason := m.FailureReason
		rec.FailureReason = &reason
	}
	return rec
}

func (r messageRecord) toDomain() (domain.Message, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("parse message id %q: %w", r.ID, err)
	}
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message %s: %w", r.ID, err)
	}

	m := domain.Message{
		ID:        id,
		Sender:    r.Sender,
		Recipient: r.Recipient,
		Text:      r.Text,
		Status:    status,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.FailureReason != nil {
		m.FailureReason = *r.FailureReason
	}
	return m, nil
}
