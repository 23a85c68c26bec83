package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the snapshot of a Message carried by the queue.
// IsRetry and RetryAt are part of the wire schema but nothing sets them.
type Envelope struct {
	MessageID uuid.UUID  `json:"messageId"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient"`
	Text      string     `json:"text"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	IsRetry   bool       `json:"isRetry"`
	RetryAt   *time.Time `json:"retryAt"`
}

// NewEnvelope copies the fields of m at the time of the call.
func NewEnvelope(m Message) Envelope {
	return Envelope{
		MessageID: m.ID,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Text:      m.Text,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}

// Encode serialises the envelope to JSON.
func (e Envelope) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return b, nil
}

// DecodeEnvelope parses a queue payload and rejects envelopes without an id.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if e.MessageID == uuid.Nil {
		return Envelope{}, errors.New("envelope has no messageId")
	}
	return e, nil
}
