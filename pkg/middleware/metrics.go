package middleware

import (
	"strconv"
	"time"

	"github.com/NeuralTrust/TrustBoundary/pkg/infra/prometheus"
	"github.com/gofiber/fiber/v2"
)

type metricsMiddleware struct {
	now func() time.Time
}

func NewMetricsMiddleware() Middleware {
	return &metricsMiddleware{now: time.Now}
}

func (m *metricsMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !prometheus.Config.EnableLatency {
			return c.Next()
		}
		start := m.now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		prometheus.RequestLatency.
			WithLabelValues(route, strconv.Itoa(status)).
			Observe(float64(m.now().Sub(start).Milliseconds()))
		return err
	}
}
