package middleware

import "github.com/gofiber/fiber/v2"

type Middleware interface {
	Middleware() fiber.Handler
}

type Transport struct {
	PanicRecoverMiddleware Middleware
	RequestIDMiddleware    Middleware
	MetricsMiddleware      Middleware

	// Route scoped, not returned by GetMiddlewares.
	AICommandRateLimitMiddleware  Middleware
	FileUploadRateLimitMiddleware Middleware
}

// GetMiddlewares returns the global middlewares in execution order.
func (t *Transport) GetMiddlewares() []interface{} {
	var handlers []interface{}
	for _, m := range []Middleware{t.PanicRecoverMiddleware, t.RequestIDMiddleware, t.MetricsMiddleware} {
		if m != nil {
			handlers = append(handlers, m.Middleware())
		}
	}
	return handlers
}
