package http

import (
	"time"

	"github.com/NeuralTrust/TrustBoundary/pkg/middleware"
	"github.com/NeuralTrust/TrustBoundary/pkg/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type rateLimitStatusHandler struct {
	logger  *logrus.Logger
	limiter *ratelimit.Limiter
}

func NewRateLimitStatusHandler(logger *logrus.Logger, limiter *ratelimit.Limiter) Handler {
	return &rateLimitStatusHandler{
		logger:  logger,
		limiter: limiter,
	}
}

// Handle reports the caller's quota for an action without consuming it. The
// identifier query parameter overrides the caller's own identity.
func (h *rateLimitStatusHandler) Handle(c *fiber.Ctx) error {
	action := c.Params("action")
	policy, ok := h.limiter.Preset(action)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown rate limit action"})
	}

	identifier := c.Query("identifier")
	if identifier == "" {
		identifier = middleware.Identifier(c)
	}

	result := h.limiter.GetRateLimitStatus(c.UserContext(), identifier, action, policy)
	middleware.SetRateLimitHeaders(c, result)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"action":    action,
		"allowed":   result.Allowed,
		"remaining": result.Remaining,
		"limit":     result.Limit,
		"window":    policy.Window().String(),
		"reset_at":  result.ResetAt().UTC().Format(time.RFC3339),
	})
}
