package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(c *fiber.Ctx) error
}

type HandlerTransport interface {
	GetTransport() HandlerTransport
}

type HandlerTransportDTO struct {
	SanitizeHandler             Handler
	SanitizeSystemPromptHandler Handler
	ValidateUploadHandler       Handler
	RateLimitStatusHandler      Handler
	GetVersionHandler           Handler
}

func (t *HandlerTransportDTO) GetTransport() HandlerTransport {
	return t
}
