package domain

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTextLength is the longest accepted message body, in characters.
const MaxTextLength = 1600

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// Violation describes one rejected field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when input fails field-level validation.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Violations = append(e.Violations, Violation{Field: field, Message: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a ValidationError with a single violation.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Violations: []Violation{{Field: field, Message: msg}}}
}

// ValidPhoneNumber reports whether s looks like an international phone number.
func ValidPhoneNumber(s string) bool {
	return phonePattern.MatchString(s)
}

// ValidateSendRequest checks sender, recipient and text and collects every violation.
func ValidateSendRequest(sender, recipient, text string) error {
	verr := &ValidationError{}
	checkPhone(verr, "sender", sender)
	checkPhone(verr, "recipient", recipient)
	checkText(verr, text)
	return verr.orNil()
}

func checkPhone(verr *ValidationError, field, v string) {
	switch {
	case strings.TrimSpace(v) == "":
		verr.add(field, field+" phone number is required")
	case !ValidPhoneNumber(v):
		verr.add(field, "invalid "+field+" phone number format. Use international format (e.g., +1234567890)")
	}
}

func checkText(verr *ValidationError, text string) {
	if strings.TrimSpace(text) == "" {
		verr.add("text", "message text is required")
		return
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		verr.add("text", "message text must be between 1 and 1600 characters")
		return
	}
	for _, r := range text {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if !unicode.IsPrint(r) {
			verr.add("text", "message text must contain printable characters only")
			return
		}
	}
}
