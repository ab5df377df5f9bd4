package ratelimit

import (
	"context"
	"fmt"
	"time"

	domain "github.com/NeuralTrust/TrustBoundary/pkg/domain/errors"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/prometheus"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "ratelimit"

const (
	outcomeAllowed  = "allowed"
	outcomeDenied   = "denied"
	outcomeFailOpen = "fail_open"
)

type Result struct {
	Allowed   bool  `json:"allowed"`
	Remaining int   `json:"remaining"`
	Limit     int   `json:"limit"`
	ResetMs   int64 `json:"reset_ms"`
}

// ResetAt is the instant the oldest hit in the window expires.
func (r Result) ResetAt() time.Time {
	return fromUnixMs(r.ResetMs)
}

// Err returns a RateLimitExceededError for denied results.
func (r Result) Err(action string) error {
	if r.Allowed {
		return nil
	}
	return domain.NewRateLimitExceededError(action, r.Limit, r.ResetAt())
}

// RetryAfter is zero for allowed results and at least one second otherwise.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	return (&domain.RateLimitExceededError{ResetAt: r.ResetAt()}).RetryAfter(now)
}

type Limiter struct {
	store        Store
	logger       *logrus.Logger
	presets      map[string]Policy
	timeProvider func() time.Time
	uuidProvider func() uuid.UUID
}

type LimiterOpts struct {
	TimeProvider func() time.Time
	UuidProvider func() uuid.UUID
	Presets      map[string]Policy
}

func NewLimiter(store Store, logger *logrus.Logger, opts *LimiterOpts) *Limiter {
	timeProvider := time.Now
	uuidProvider := uuid.New
	presets := DefaultPresets()
	if opts != nil {
		if opts.TimeProvider != nil {
			timeProvider = opts.TimeProvider
		}
		if opts.UuidProvider != nil {
			uuidProvider = opts.UuidProvider
		}
		if opts.Presets != nil {
			presets = opts.Presets
		}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Limiter{
		store:        store,
		logger:       logger,
		presets:      presets,
		timeProvider: timeProvider,
		uuidProvider: uuidProvider,
	}
}

func Key(action, identifier string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, action, identifier)
}

func (l *Limiter) Preset(name string) (Policy, bool) {
	p, ok := l.presets[name]
	return p, ok
}

// Check applies the named preset. Unknown presets are a programming error and
// are reported rather than failing open.
func (l *Limiter) Check(ctx context.Context, identifier, preset string) (Result, error) {
	policy, ok := l.presets[preset]
	if !ok {
		return Result{}, fmt.Errorf("unknown rate limit preset %q", preset)
	}
	return l.CheckRateLimit(ctx, identifier, preset, policy), nil
}

// CheckRateLimit records a hit for identifier under action and reports whether
// it fits the policy window. Store failures fail open.
func (l *Limiter) CheckRateLimit(ctx context.Context, identifier, action string, policy Policy) Result {
	now := l.timeProvider()
	window := policy.Window()
	key := Key(action, identifier)
	member := fmt.Sprintf("%d:%s", unixMs(now), l.uuidProvider().String())

	count, err := l.store.ExecWindow(ctx, WindowBatch{
		Key:         key,
		EvictBefore: now.Add(-window),
		Entry:       Entry{Member: member, At: now},
		TTL:         window + time.Second,
	})
	if err != nil {
		return l.failOpen(err, action, identifier, policy, now)
	}

	if count < int64(policy.Limit) {
		l.observe(action, outcomeAllowed)
		return Result{
			Allowed:   true,
			Remaining: policy.Limit - int(count) - 1,
			Limit:     policy.Limit,
			ResetMs:   unixMs(now.Add(window)),
		}
	}

	// The tentative insert is retracted in its own round trip. Concurrent readers
	// may briefly see one extra hit.
	if err := l.store.Remove(ctx, key, member); err != nil {
		l.logger.WithError(err).WithFields(logrus.Fields{
			"action": action,
			"key":    key,
		}).Warn("failed to retract rate limit entry")
	}

	resetAt := now.Add(window)
	oldest, found, err := l.store.Oldest(ctx, key, now.Add(-window))
	if err != nil {
		l.logger.WithError(err).WithField("action", action).Warn("failed to read rate limit window start")
	} else if found {
		resetAt = oldest.Add(window)
	}

	l.observe(action, outcomeDenied)
	l.logger.WithFields(logrus.Fields{
		"action":     action,
		"identifier": identifier,
		"limit":      policy.Limit,
		"window":     window.String(),
		"reset_at":   resetAt.UTC().Format(time.RFC3339),
	}).Info("rate limit exceeded")

	return Result{
		Allowed:   false,
		Remaining: 0,
		Limit:     policy.Limit,
		ResetMs:   unixMs(resetAt),
	}
}

// GetRateLimitStatus reports the window state without recording a hit.
func (l *Limiter) GetRateLimitStatus(ctx context.Context, identifier, action string, policy Policy) Result {
	now := l.timeProvider()
	window := policy.Window()
	key := Key(action, identifier)
	since := now.Add(-window)

	count, err := l.store.CountSince(ctx, key, since)
	if err != nil {
		l.logger.WithError(err).WithField("action", action).Warn("rate limit store unavailable, reporting full quota")
		return Result{Allowed: true, Remaining: policy.Limit, Limit: policy.Limit, ResetMs: unixMs(now.Add(window))}
	}

	resetAt := now.Add(window)
	if count > 0 {
		if oldest, found, err := l.store.Oldest(ctx, key, since); err == nil && found {
			resetAt = oldest.Add(window)
		}
	}

	remaining := policy.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count < int64(policy.Limit),
		Remaining: remaining,
		Limit:     policy.Limit,
		ResetMs:   unixMs(resetAt),
	}
}

func (l *Limiter) failOpen(err error, action, identifier string, policy Policy, now time.Time) Result {
	l.observe(action, outcomeFailOpen)
	l.logger.WithError(err).WithFields(logrus.Fields{
		"action":     action,
		"identifier": identifier,
	}).Warn("rate limit store unavailable, allowing request")
	return Result{
		Allowed:   true,
		Remaining: policy.Limit,
		Limit:     policy.Limit,
		ResetMs:   unixMs(now.Add(policy.Window())),
	}
}

func (l *Limiter) observe(action, outcome string) {
	prometheus.RateLimitDecisionsTotal.WithLabelValues(action, outcome).Inc()
}
