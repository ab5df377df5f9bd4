package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/NeuralTrust/TrustBoundary/pkg/common"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/auditlogs"
	"github.com/NeuralTrust/TrustBoundary/pkg/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type rateLimitMiddleware struct {
	logger       *logrus.Logger
	limiter      *ratelimit.Limiter
	audit        auditlogs.Service
	action       string
	timeProvider func() time.Time
}

type RateLimitOpts struct {
	Audit        auditlogs.Service
	TimeProvider func() time.Time
}

// NewRateLimitMiddleware limits requests with the named preset, keyed by
// Identifier.
func NewRateLimitMiddleware(logger *logrus.Logger, limiter *ratelimit.Limiter, action string, opts *RateLimitOpts) Middleware {
	m := &rateLimitMiddleware{
		logger:       logger,
		limiter:      limiter,
		action:       action,
		timeProvider: time.Now,
	}
	if opts != nil {
		m.audit = opts.Audit
		if opts.TimeProvider != nil {
			m.timeProvider = opts.TimeProvider
		}
	}
	return m
}

// Identifier is the X-User-ID header when present, else the client IP.
func Identifier(c *fiber.Ctx) string {
	if id := c.Get(common.UserIDHeader); id != "" {
		return "user:" + id
	}
	return "ip:" + c.IP()
}

func (m *rateLimitMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := Identifier(c)
		c.Locals(string(common.IdentifierContextKey), identifier)

		result, err := m.limiter.Check(c.UserContext(), identifier, m.action)
		if err != nil {
			m.logger.WithError(err).WithField("action", m.action).Error("rate limit preset misconfigured")
			return c.Next()
		}

		SetRateLimitHeaders(c, result)
		c.Locals(string(common.RateLimitContextKey), result)
		if result.Allowed {
			return c.Next()
		}

		retryAfter := int(math.Ceil(result.RetryAfter(m.timeProvider()).Seconds()))
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))

		if m.audit != nil {
			m.audit.Emit(c, auditlogs.Event{
				Event: auditlogs.EventInfo{
					Type:        auditlogs.EventTypeRateLimitExceeded,
					Category:    auditlogs.CategoryRunTimeSecurity,
					Description: m.action + " rate limit exceeded",
					Status:      auditlogs.StatusBlocked,
				},
				Target: auditlogs.Target{
					Type: auditlogs.TargetTypeAction,
					ID:   m.action,
				},
			})
		}

		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":       result.Err(m.action).Error(),
			"retry_after": retryAfter,
		})
	}
}

func SetRateLimitHeaders(c *fiber.Ctx, result ratelimit.Result) {
	c.Set(common.RateLimitLimitHeader, strconv.Itoa(result.Limit))
	c.Set(common.RateLimitRemainingHeader, strconv.Itoa(result.Remaining))
	c.Set(common.RateLimitResetHeader, strconv.FormatInt(result.ResetAt().Unix(), 10))
}
