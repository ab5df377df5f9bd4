package http

import (
	"strconv"

	domain "github.com/NeuralTrust/TrustBoundary/pkg/domain/errors"
	"github.com/NeuralTrust/TrustBoundary/pkg/handlers/http/request"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/auditlogs"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/prometheus"
	"github.com/NeuralTrust/TrustBoundary/pkg/sanitizer"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type SanitizeHandlerDeps struct {
	Logger       *logrus.Logger
	Options      sanitizer.Options
	AuditService auditlogs.Service
}

type sanitizeHandler struct {
	logger       *logrus.Logger
	options      sanitizer.Options
	auditService auditlogs.Service
}

func NewSanitizeHandler(deps SanitizeHandlerDeps) Handler {
	return &sanitizeHandler{
		logger:       deps.Logger,
		options:      deps.Options,
		auditService: deps.AuditService,
	}
}

// Handle cleans untrusted chat input. Blocked input gets a 422 with a generic
// message; everything else returns the full sanitization result.
func (h *sanitizeHandler) Handle(c *fiber.Ctx) error {
	var req request.SanitizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	opts, err := sanitizer.MergeClientSettings(h.options, req.Options)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result := sanitizer.SanitizeWithOptions(req.Text, opts)
	sanitizer.LogResult(h.logger, req.Text, result, logrus.Fields{"path": c.Path()})
	prometheus.SanitizerResultsTotal.
		WithLabelValues(string(result.RiskLevel), strconv.FormatBool(result.ShouldBlock)).
		Inc()

	if result.ShouldBlock {
		h.emit(c, req.Text, result, auditlogs.EventTypeInputBlocked, auditlogs.StatusBlocked)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":      domain.InputBlockedMessage,
			"risk_level": result.RiskLevel,
		})
	}
	if result.RiskLevel == sanitizer.RiskHigh {
		h.emit(c, req.Text, result, auditlogs.EventTypeInputFlagged, auditlogs.StatusFlagged)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *sanitizeHandler) emit(c *fiber.Ctx, input string, result sanitizer.Result, eventType, status string) {
	if h.auditService == nil {
		return
	}
	h.auditService.Emit(c, auditlogs.Event{
		Event: auditlogs.EventInfo{
			Type:        eventType,
			Category:    auditlogs.CategoryRunTimeSecurity,
			Description: string(result.RiskLevel) + " risk chat input",
			Status:      status,
		},
		Target: auditlogs.Target{
			Type: auditlogs.TargetTypeChatInput,
			ID:   c.Path(),
		},
		Context: auditlogs.Context{
			InputPreview: sanitizer.Preview(input),
		},
	})
}
