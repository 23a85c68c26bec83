package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang-sms-gateway/internal/domain"
)

// ReportPath is the coordinator endpoint that receives delivery outcomes.
const ReportPath = "/v1/internal/delivery-report"

// CallbackError is returned when the coordinator answers with an unexpected status.
type CallbackError struct {
	StatusCode int
	Body       string
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback returned %d body=%q", e.StatusCode, e.Body)
}

// Client implements ports.DeliveryReporter over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the coordinator's base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type reportRequest struct {
	MessageID     string    `json:"message_id"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// Report posts the outcome once. A 404 is returned wrapping
// domain.ErrMessageNotFound; other non-200 answers as *CallbackError.
func (c *Client) Report(ctx context.Context, r domain.DeliveryReport) error {
	body, err := json.Marshal(reportRequest{
		MessageID:     r.MessageID.String(),
		Status:        r.Status.String(),
		FailureReason: r.FailureReason,
		ProcessedAt:   r.ProcessedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal delivery report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ReportPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("report %s: %w", r.MessageID, domain.ErrMessageNotFound)
	default:
		return &CallbackError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
}
