package response

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/apperr"
)

// Envelope is the uniform success wrapper for API responses.
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorBody is the uniform error wrapper: a generic message per error
// class, the detailed error string, the HTTP status and a timestamp.
type ErrorBody struct {
	Error      string    `json:"error"`
	Details    string    `json:"details"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// OK sends a 200 with the data wrapped in the success envelope.
func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(Envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// OKWithMessage sends a 200 with data and a human-readable message.
func OKWithMessage(c *fiber.Ctx, data interface{}, message string) error {
	return c.JSON(Envelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Error maps the error's kind onto its fixed HTTP status and sends the
// error body. Untyped errors are treated as Internal.
func Error(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	return c.Status(status).JSON(ErrorBody{
		Error:      kind.String(),
		Details:    err.Error(),
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return fiber.StatusBadRequest
	case apperr.Service:
		return fiber.StatusBadGateway
	case apperr.ServiceUnavailable:
		return fiber.StatusServiceUnavailable
	case apperr.RateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}
