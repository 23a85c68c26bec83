package transport

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang-sms-gateway/internal/domain"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried in problem bodies.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeNotFound        = "MESSAGE_NOT_FOUND"
	CodeOutcomeConflict = "OUTCOME_CONFLICT"
	CodeInternal        = "INTERNAL_ERROR"
)

// problem is an RFC 7807 error body.
type problem struct {
	Type       string             `json:"type,omitempty"`
	Title      string             `json:"title"`
	Status     int                `json:"status"`
	Detail     string             `json:"detail"`
	Instance   string             `json:"instance,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	ErrorCode  string             `json:"error_code,omitempty"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

func writeProblem(c *fiber.Ctx, p problem) error {
	p.Instance = c.Path()
	p.Timestamp = time.Now().UTC()
	return c.Status(p.Status).JSON(p, "application/problem+json")
}

// respondError maps service errors to problem bodies.
func respondError(c *fiber.Ctx, log *slog.Logger, err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return writeProblem(c, problem{
			Type:       "/problems/validation-error",
			Title:      "Validation Failed",
			Status:     fiber.StatusBadRequest,
			Detail:     "Request validation failed",
			ErrorCode:  CodeValidation,
			Violations: verr.Violations,
		})

	case errors.Is(err, domain.ErrMessageNotFound):
		return notFound(c)

	case errors.Is(err, domain.ErrOutcomeConflict):
		return writeProblem(c, problem{
			Type:      "/problems/outcome-conflict",
			Title:     "Conflict",
			Status:    fiber.StatusConflict,
			Detail:    "A delivery outcome was already applied to this message",
			ErrorCode: CodeOutcomeConflict,
		})

	default:
		log.Error("request failed", "path", c.Path(), "method", c.Method(), "err", err)
		return writeProblem(c, problem{
			Type:      "/problems/internal-error",
			Title:     "Internal Server Error",
			Status:    fiber.StatusInternalServerError,
			Detail:    "An unexpected error occurred",
			ErrorCode: CodeInternal,
		})
	}
}

func notFound(c *fiber.Ctx) error {
	return writeProblem(c, problem{
		Type:      "/problems/message-not-found",
		Title:     "Not Found",
		Status:    fiber.StatusNotFound,
		Detail:    "Message not found",
		ErrorCode: CodeNotFound,
	})
}

func invalidRequest(c *fiber.Ctx, detail string) error {
	return writeProblem(c, problem{
		Type:      "/problems/invalid-request",
		Title:     "Bad Request",
		Status:    fiber.StatusBadRequest,
		Detail:    detail,
		ErrorCode: CodeInvalidRequest,
	})
}

// ErrorHandler renders errors that escape handlers (unknown routes, body
// limits, recovered panics) as problem bodies.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := CodeInvalidRequest
			if fe.Code >= fiber.StatusInternalServerError {
				code = CodeInternal
			}
			return writeProblem(c, problem{
				Title:     httpStatusText(fe.Code),
				Status:    fe.Code,
				Detail:    fe.Message,
				ErrorCode: code,
			})
		}
		return respondError(c, log, err)
	}
}

func httpStatusText(code int) string {
	if msg := http.StatusText(code); msg != "" {
		return msg
	}
	return "Error"
}
