package transport

import (
	"time"

	"golang-sms-gateway/internal/domain"
)

type sendMessageRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

type messageResponse struct {
	ID            string        `json:"id"`
	Sender        string        `json:"sender"`
	Recipient     string        `json:"recipient"`
	Text          string        `json:"text"`
	Status        domain.Status `json:"status"`
	FailureReason *string       `json:"failure_reason"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func toMessageResponse(m domain.Message) messageResponse {
	resp := messageResponse{
		ID:        m.ID.String(),
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Text:      m.Text,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Status == domain.StatusFailed && m.FailureReason != "" {
		reason := m.FailureReason
		resp.FailureReason = &reason
	}
	return resp
}

type messageListResponse struct {
	Messages   []messageResponse `json:"messages"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

func toMessageListResponse(p domain.MessagePage) messageListResponse {
	resp := messageListResponse{
		Messages:   make([]messageResponse, 0, len(p.Messages)),
		TotalCount: p.Total,
		Page:       p.Page,
		PageSize:   p.Size,
		TotalPages: p.TotalPages(),
	}
	for _, m := range p.Messages {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}
	return resp
}

type statsResponse struct {
	TotalMessages   int64   `json:"total_messages"`
	PendingMessages int64   `json:"pending_messages"`
	SentMessages    int64   `json:"sent_messages"`
	FailedMessages  int64   `json:"failed_messages"`
	SuccessRate     float64 `json:"success_rate"`
}

type deliveryReportRequest struct {
	MessageID     string     `json:"message_id"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason"`
	ProcessedAt   *time.Time `json:"processed_at"`
}

type deliveryReportResponse struct {
	MessageID string        `json:"message_id"`
	Status    domain.Status `json:"status"`
}
