package ratelimit

import (
	"context"
	"sort"
	"time"

	"github.com/NeuralTrust/TrustBoundary/pkg/infra/cache"
)

const defaultMemoryTTL = time.Hour

// MemoryStore keeps windows in process memory. It is only correct for a single
// instance; the TTL map lock makes each batch atomic.
type MemoryStore struct {
	windows *cache.TTLMap
}

type MemoryStoreOption func(*MemoryStore)

func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.windows.WithClock(now)
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{windows: cache.NewTTLMap(defaultMemoryTTL)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) ExecWindow(_ context.Context, batch WindowBatch) (int64, error) {
	var count int64
	s.windows.Update(batch.Key, func(value interface{}, ok bool) (interface{}, time.Duration, bool) {
		var entries []Entry
		if ok {
			entries = evict(value.([]Entry), batch.EvictBefore)
		}
		count = int64(len(entries))
		entries = append(entries, batch.Entry)
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].At.Before(entries[j].At) })
		return entries, batch.TTL, true
	})
	return count, nil
}

func (s *MemoryStore) Remove(_ context.Context, key, member string) error {
	s.windows.Update(key, func(value interface{}, ok bool) (interface{}, time.Duration, bool) {
		if !ok {
			return nil, 0, false
		}
		current := value.([]Entry)
		kept := make([]Entry, 0, len(current))
		for _, e := range current {
			if e.Member != member {
				kept = append(kept, e)
			}
		}
		return kept, 0, len(kept) > 0
	})
	return nil
}

func (s *MemoryStore) Oldest(_ context.Context, key string, since time.Time) (time.Time, bool, error) {
	for _, e := range s.snapshot(key) {
		if !e.At.Before(since) {
			return e.At, true, nil
		}
	}
	return time.Time{}, false, nil
}

func (s *MemoryStore) CountSince(_ context.Context, key string, since time.Time) (int64, error) {
	var count int64
	for _, e := range s.snapshot(key) {
		if !e.At.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) snapshot(key string) []Entry {
	value, ok := s.windows.Get(key)
	if !ok {
		return nil
	}
	entries := value.([]Entry)
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// evict drops entries strictly older than before and returns a new slice.
func evict(entries []Entry, before time.Time) []Entry {
	kept := make([]Entry, 0, len(entries)+1)
	for _, e := range entries {
		if !e.At.Before(before) {
			kept = append(kept, e)
		}
	}
	return kept
}
