package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/apperr"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/pkg/response"
)

type chatService interface {
	Reply(message string) string
}

// ChatHandler serves the mocked chat endpoint.
type ChatHandler struct {
	svc chatService
}

func NewChatHandler(svc chatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, apperr.Wrap(apperr.Validation, err, "parse chat request"))
	}
	if strings.TrimSpace(req.Message) == "" {
		return response.Error(c, apperr.New(apperr.Validation, "message is required"))
	}

	return response.OK(c, fiber.Map{
		"reply":     h.svc.Reply(req.Message),
		"timestamp": time.Now().UTC(),
	})
}
