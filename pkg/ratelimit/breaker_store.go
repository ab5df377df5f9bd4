package ratelimit

import (
	"context"
	"time"

	"github.com/NeuralTrust/TrustBoundary/pkg/infra/breaker"
)

// BreakerStore fails fast while the wrapped store keeps erroring, so the
// limiter can fail open without waiting on a dead backend.
type BreakerStore struct {
	next Store
	cb   breaker.CircuitBreaker
}

func NewBreakerStore(next Store, cb breaker.CircuitBreaker) *BreakerStore {
	return &BreakerStore{next: next, cb: cb}
}

func (s *BreakerStore) ExecWindow(ctx context.Context, batch WindowBatch) (int64, error) {
	var count int64
	err := s.cb.Execute(func() error {
		var err error
		count, err = s.next.ExecWindow(ctx, batch)
		return err
	})
	return count, err
}

func (s *BreakerStore) Remove(ctx context.Context, key, member string) error {
	return s.cb.Execute(func() error {
		return s.next.Remove(ctx, key, member)
	})
}

func (s *BreakerStore) Oldest(ctx context.Context, key string, since time.Time) (time.Time, bool, error) {
	var (
		oldest time.Time
		found  bool
	)
	err := s.cb.Execute(func() error {
		var err error
		oldest, found, err = s.next.Oldest(ctx, key, since)
		return err
	})
	return oldest, found, err
}

func (s *BreakerStore) CountSince(ctx context.Context, key string, since time.Time) (int64, error) {
	var count int64
	err := s.cb.Execute(func() error {
		var err error
		count, err = s.next.CountSince(ctx, key, since)
		return err
	})
	return count, err
}
