package middleware

import (
	"context"

	"github.com/NeuralTrust/TrustBoundary/pkg/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type requestIDMiddleware struct {
	uuidProvider func() uuid.UUID
}

func NewRequestIDMiddleware(uuidProvider func() uuid.UUID) Middleware {
	if uuidProvider == nil {
		uuidProvider = uuid.New
	}
	return &requestIDMiddleware{uuidProvider: uuidProvider}
}

// Middleware keeps a caller supplied request id or assigns a new one.
func (m *requestIDMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(common.RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = m.uuidProvider().String()
		}
		c.Locals(string(common.RequestIDContextKey), id)
		c.SetUserContext(context.WithValue(c.UserContext(), common.RequestIDContextKey, id))
		c.Set(common.RequestIDHeader, id)
		return c.Next()
	}
}
