package http

import (
	"github.com/NeuralTrust/TrustBoundary/pkg/handlers/http/request"
	"github.com/NeuralTrust/TrustBoundary/pkg/sanitizer"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type sanitizeSystemPromptHandler struct {
	logger  *logrus.Logger
	options sanitizer.Options
}

func NewSanitizeSystemPromptHandler(logger *logrus.Logger, options sanitizer.Options) Handler {
	return &sanitizeSystemPromptHandler{
		logger:  logger,
		options: options,
	}
}

func (h *sanitizeSystemPromptHandler) Handle(c *fiber.Ctx) error {
	var req request.SanitizeSystemPromptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	base := h.options
	base.MaxLength = sanitizer.DefaultSystemPromptMaxLength
	opts, err := sanitizer.MergeClientSettings(base, req.Options)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sanitized := sanitizer.SanitizeSystemPrompt(req.Prompt, sanitizer.WithOptions(opts))
	h.logger.WithField("modified", sanitized != req.Prompt).Debug("system prompt sanitized")

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"sanitized":    sanitized,
		"was_modified": sanitized != req.Prompt,
	})
}
