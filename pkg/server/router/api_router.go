package router

import (
	"errors"

	handlers "github.com/NeuralTrust/TrustBoundary/pkg/handlers/http"
	"github.com/NeuralTrust/TrustBoundary/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

var (
	ErrInvalidHandlerTransport = errors.New("invalid handler transport")
)

const (
	VersionPath              = "/version"
	SanitizePath             = "/sanitize"
	SanitizeSystemPromptPath = "/sanitize/system-prompt"
	ValidateUploadPath       = "/uploads/validate"
	RateLimitStatusPath      = "/rate-limits/:action"
)

type apiRouter struct {
	middlewareTransport *middleware.Transport
	handlerTransport    handlers.HandlerTransport
}

func NewAPIRouter(
	middlewareTransport *middleware.Transport,
	handlerTransport handlers.HandlerTransport,
) ServerRouter {
	return &apiRouter{
		middlewareTransport: middlewareTransport,
		handlerTransport:    handlerTransport,
	}
}

func (r *apiRouter) BuildRoutes(router *fiber.App) error {
	handlerTransport, ok := r.handlerTransport.GetTransport().(*handlers.HandlerTransportDTO)
	if !ok {
		return ErrInvalidHandlerTransport
	}

	router.Get(VersionPath, handlerTransport.GetVersionHandler.Handle)

	v1 := router.Group("/api/v1")
	{
		if m := r.middlewareTransport.GetMiddlewares(); m != nil {
			v1.Use(m...)
		}

		v1.Post(SanitizePath, withMiddleware(
			r.middlewareTransport.AICommandRateLimitMiddleware,
			handlerTransport.SanitizeHandler,
		)...)
		v1.Post(SanitizeSystemPromptPath, handlerTransport.SanitizeSystemPromptHandler.Handle)
		v1.Post(ValidateUploadPath, withMiddleware(
			r.middlewareTransport.FileUploadRateLimitMiddleware,
			handlerTransport.ValidateUploadHandler,
		)...)
		v1.Get(RateLimitStatusPath, handlerTransport.RateLimitStatusHandler.Handle)
	}
	return nil
}

func withMiddleware(m middleware.Middleware, h handlers.Handler) []fiber.Handler {
	if m == nil {
		return []fiber.Handler{h.Handle}
	}
	return []fiber.Handler{m.Middleware(), h.Handle}
}
