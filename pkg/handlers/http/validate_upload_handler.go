package http

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strconv"

	"github.com/NeuralTrust/TrustBoundary/pkg/common"
	"github.com/NeuralTrust/TrustBoundary/pkg/filetype"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/auditlogs"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/httpx"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/prometheus"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	uploadOutcomeAccepted = "accepted"
	uploadOutcomeRejected = "rejected"
	uploadOutcomeTooLarge = "too_large"
)

type ValidateUploadHandlerDeps struct {
	Logger       *logrus.Logger
	MaxSizeBytes int64
	AuditService auditlogs.Service
}

type validateUploadHandler struct {
	logger       *logrus.Logger
	maxSizeBytes int64
	auditService auditlogs.Service
}

func NewValidateUploadHandler(deps ValidateUploadHandlerDeps) Handler {
	return &validateUploadHandler{
		logger:       deps.Logger,
		maxSizeBytes: deps.MaxSizeBytes,
		auditService: deps.AuditService,
	}
}

// ClaimedMimeType prefers the explicit claim header over Content-Type.
func ClaimedMimeType(c *fiber.Ctx) string {
	if claimed := c.Get(common.ClaimedMimeTypeHeader); claimed != "" {
		return claimed
	}
	return c.Get(fiber.HeaderContentType)
}

// Handle checks the request body against its claimed type. Content-Encoding is
// undone first so the verdict is about the decoded file. Only the leading
// bytes decide the verdict; the rest is read to size and digest it.
func (h *validateUploadHandler) Handle(c *fiber.Ctx) error {
	var raw io.Reader = c.Context().RequestBodyStream()
	if raw == nil {
		raw = bytes.NewReader(c.Request().Body())
	}

	body, err := httpx.NewDecodingReader(raw, c.Get(fiber.HeaderContentEncoding))
	if err != nil {
		if errors.Is(err, httpx.ErrUnsupportedEncoding) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	defer func() {
		if err := body.Close(); err != nil {
			h.logger.WithError(err).Debug("failed to release upload decoder")
		}
	}()

	inspection, err := filetype.Inspect(body, ClaimedMimeType(c))
	if err != nil {
		h.logger.WithError(err).Error("failed to inspect upload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to read upload"})
	}

	detected := inspection.DetectedMimeType
	if detected == "" {
		detected = "unknown"
	}

	if !inspection.Valid {
		prometheus.UploadValidationsTotal.WithLabelValues(uploadOutcomeRejected, detected).Inc()
		h.logger.WithFields(logrus.Fields{
			"claimed":  inspection.ClaimedMimeType,
			"detected": inspection.DetectedMimeType,
			"reason":   inspection.Reason,
		}).Warn("upload rejected")
		h.emit(c, inspection.Result)
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error":              inspection.Reason,
			"claimed_mime_type":  inspection.ClaimedMimeType,
			"detected_mime_type": inspection.DetectedMimeType,
		})
	}

	hash := sha256.New()
	reader := io.Reader(inspection.Body)
	if h.maxSizeBytes > 0 {
		reader = io.LimitReader(reader, h.maxSizeBytes+1)
	}
	size, err := io.Copy(hash, reader)
	if err != nil {
		h.logger.WithError(err).Error("failed to read upload body")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to read upload"})
	}
	if h.maxSizeBytes > 0 && size > h.maxSizeBytes {
		prometheus.UploadValidationsTotal.WithLabelValues(uploadOutcomeTooLarge, detected).Inc()
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "upload exceeds " + strconv.FormatInt(h.maxSizeBytes, 10) + " bytes",
		})
	}

	prometheus.UploadValidationsTotal.WithLabelValues(uploadOutcomeAccepted, detected).Inc()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"valid":              true,
		"claimed_mime_type":  inspection.ClaimedMimeType,
		"detected_mime_type": inspection.DetectedMimeType,
		"size_bytes":         size,
		"sha256":             hex.EncodeToString(hash.Sum(nil)),
	})
}

func (h *validateUploadHandler) emit(c *fiber.Ctx, result filetype.Result) {
	if h.auditService == nil {
		return
	}
	h.auditService.Emit(c, auditlogs.Event{
		Event: auditlogs.EventInfo{
			Type:         auditlogs.EventTypeUploadRejected,
			Category:     auditlogs.CategoryRunTimeSecurity,
			Description:  "upload content does not match its claimed type",
			Status:       auditlogs.StatusBlocked,
			ErrorMessage: result.Reason,
		},
		Target: auditlogs.Target{
			Type: auditlogs.TargetTypeUpload,
			ID:   result.ClaimedMimeType,
			Name: result.DetectedMimeType,
		},
	})
}
