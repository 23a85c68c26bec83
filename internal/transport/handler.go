package transport

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang-sms-gateway/internal/app"
	"golang-sms-gateway/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handler holds all HTTP handlers for the SMS send coordinator.
type Handler struct {
	svc *app.SMSService
	log *slog.Logger
}

// NewHandler wires up a Handler with its dependencies.
func NewHandler(svc *app.SMSService, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts the /v1 routes onto the given router.
// Static message paths are registered before /messages/:id.
func (h *Handler) Register(router fiber.Router) {
	router.Post("/messages", h.SendMessage)
	router.Get("/messages/stats", h.Stats)
	router.Get("/messages/failed", h.FailedMessages)
	router.Get("/messages/:id", h.GetMessage)
	router.Get("/users/:userId/messages", h.UserMessages)
	router.Post("/internal/delivery-report", h.DeliveryReport)
}

// ── Public API ────────────────────────────────────────────────────────────────

// SendMessage accepts a send request.
//
// POST /v1/messages
// Body: { "sender": "...", "recipient": "...", "text": "..." }
//
// Answers 202 even when the message could not be queued; the returned
// status is then FAILED.
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidRequest(c, "malformed request body")
	}

	msg, err := h.svc.Submit(c.UserContext(), app.SendRequest{
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Text:      req.Text,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	c.Location("/v1/messages/" + msg.ID.String())
	return c.Status(fiber.StatusAccepted).JSON(toMessageResponse(msg))
}

// GetMessage returns one message. Unparsable ids are reported as not found.
//
// GET /v1/messages/:id
func (h *Handler) GetMessage(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return notFound(c)
	}

	msg, err := h.svc.GetMessage(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(toMessageResponse(msg))
}

// UserMessages lists messages sent or received by a phone number.
//
// GET /v1/users/:userId/messages?page=0&size=20&status=SENT
func (h *Handler) UserMessages(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var status *domain.Status
	if raw := c.Query("status"); raw != "" {
		st, err := domain.ParseStatus(raw)
		if err != nil {
			return respondError(c, h.log, domain.NewValidationError("status", "status must be one of PENDING, SENT, FAILED"))
		}
		status = &st
	}

	res, err := h.svc.ListUserMessages(c.UserContext(), c.Params("userId"), status, page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(toMessageListResponse(res))
}

// FailedMessages lists FAILED messages, most recently updated first.
//
// GET /v1/messages/failed?page=0&size=20
func (h *Handler) FailedMessages(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	res, err := h.svc.ListFailedMessages(c.UserContext(), page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(toMessageListResponse(res))
}

// Stats returns message counts per status.
//
// GET /v1/messages/stats
func (h *Handler) Stats(c *fiber.Ctx) error {
	st, err := h.svc.Stats(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(statsResponse{
		TotalMessages:   st.Total,
		PendingMessages: st.Pending,
		SentMessages:    st.Sent,
		FailedMessages:  st.Failed,
		SuccessRate:     st.SuccessRate(),
	})
}

// ── Internal callback ─────────────────────────────────────────────────────────

// DeliveryReport receives a delivery outcome from the delivery simulator.
//
// POST /v1/internal/delivery-report
// Body: { "message_id": "...", "status": "SENT"|"FAILED", "failure_reason": "..." }
func (h *Handler) DeliveryReport(c *fiber.Ctx) error {
	var req deliveryReportRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidRequest(c, "malformed request body")
	}

	id, err := uuid.Parse(strings.TrimSpace(req.MessageID))
	if err != nil {
		return respondError(c, h.log, domain.NewValidationError("message_id", "message_id must be a valid UUID"))
	}

	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return respondError(c, h.log, domain.NewValidationError("status", "status must be SENT or FAILED"))
	}

	report := domain.DeliveryReport{
		MessageID:     id,
		Status:        status,
		FailureReason: req.FailureReason,
		ProcessedAt:   time.Now().UTC(),
	}
	if req.ProcessedAt != nil {
		report.ProcessedAt = req.ProcessedAt.UTC()
	}

	msg, err := h.svc.ApplyDeliveryOutcome(c.UserContext(), report)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(deliveryReportResponse{MessageID: msg.ID.String(), Status: msg.Status})
}

// parsePage reads page (default 0) and size (default 20) from the query string.
func parsePage(c *fiber.Ctx) (domain.PageRequest, error) {
	page := domain.PageRequest{Page: 0, Size: domain.DefaultPageSize}
	verr := &domain.ValidationError{}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Violations = append(verr.Violations, domain.Violation{Field: "page", Message: "page must be an integer"})
		} else {
			page.Page = n
		}
	}
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Violations = append(verr.Violations, domain.Violation{Field: "size", Message: "size must be an integer"})
		} else {
			page.Size = n
		}
	}

	if len(verr.Violations) > 0 {
		return domain.PageRequest{}, verr
	}
	if err := page.Validate(); err != nil {
		return domain.PageRequest{}, err
	}
	return page, nil
}
