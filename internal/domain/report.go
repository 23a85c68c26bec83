package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeliveryReport is the outcome of one delivery attempt, sent by the
// simulator to the coordinator's callback.
type DeliveryReport struct {
	MessageID     uuid.UUID
	Status        Status
	FailureReason string
	ProcessedAt   time.Time
}

// Validate enforces outcome ∈ {SENT, FAILED} and a reason iff FAILED.
func (r DeliveryReport) Validate() error {
	verr := &ValidationError{}
	if r.MessageID == uuid.Nil {
		verr.add("message_id", "message id is required")
	}
	reason := strings.TrimSpace(r.FailureReason)
	switch r.Status {
	case StatusSent:
		if reason != "" {
			verr.add("failure_reason", "failure reason is only allowed when status is FAILED")
		}
	case StatusFailed:
		if reason == "" {
			verr.add("failure_reason", "failure reason is required when status is FAILED")
		}
	default:
		verr.add("status", "status must be SENT or FAILED")
	}
	return verr.orNil()
}

// PageRequest selects a 0-based page of results.
type PageRequest struct {
	Page int
	Size int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Validate checks the page bounds.
func (p PageRequest) Validate() error {
	verr := &ValidationError{}
	if p.Page < 0 {
		verr.add("page", "page must be greater than or equal to 0")
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		verr.add("size", "size must be between 1 and 100")
	}
	return verr.orNil()
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// MessagePage is one page of messages plus the total number of matches.
type MessagePage struct {
	Messages []Message
	Total    int64
	PageRequest
}

// TotalPages rounds Total up to whole pages.
func (p MessagePage) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

// Stats aggregates message counts by status.
type Stats struct {
	Total   int64
	Pending int64
	Sent    int64
	Failed  int64
}

// SuccessRate is sent/(sent+failed), or 0 when nothing reached a terminal state.
func (s Stats) SuccessRate() float64 {
	processed := s.Sent + s.Failed
	if processed == 0 {
		return 0
	}
	return float64(s.Sent) / float64(processed)
}
