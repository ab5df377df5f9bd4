package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidationRejected = errors.New("validation rejected")
	ErrInputBlocked       = errors.New("input blocked")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	// ErrDecryptionFailed never reaches callers of the encryption service; it is
	// recovered internally and only shows up in logs.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// InputBlockedMessage is returned to clients when strict mode rejects chat input.
// It intentionally does not name the matched patterns.
const InputBlockedMessage = "Your message could not be processed because it violates the content policy"

type ValidationRejectedError struct {
	ClaimedMimeType  string
	DetectedMimeType string
	Reason           string
}

func (e *ValidationRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidationRejected.Error(), e.Reason)
}

func (e *ValidationRejectedError) Unwrap() error {
	return ErrValidationRejected
}

func NewValidationRejectedError(claimed, detected, reason string) error {
	return &ValidationRejectedError{
		ClaimedMimeType:  claimed,
		DetectedMimeType: detected,
		Reason:           reason,
	}
}

type InputBlockedError struct {
	RiskLevel string
}

func (e *InputBlockedError) Error() string {
	return InputBlockedMessage
}

func (e *InputBlockedError) Unwrap() error {
	return ErrInputBlocked
}

func NewInputBlockedError(riskLevel string) error {
	return &InputBlockedError{RiskLevel: riskLevel}
}

type RateLimitExceededError struct {
	Action  string
	Limit   int
	ResetAt time.Time
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded, resets at %s", e.Action, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitExceededError) Unwrap() error {
	return ErrRateLimitExceeded
}

// RetryAfter is rounded up to whole seconds and never below one.
func (e *RateLimitExceededError) RetryAfter(now time.Time) time.Duration {
	wait := e.ResetAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	return wait.Truncate(time.Second) + secondCeil(wait)
}

func secondCeil(d time.Duration) time.Duration {
	if d%time.Second == 0 {
		return 0
	}
	return time.Second
}

func NewRateLimitExceededError(action string, limit int, resetAt time.Time) error {
	return &RateLimitExceededError{
		Action:  action,
		Limit:   limit,
		ResetAt: resetAt,
	}
}
