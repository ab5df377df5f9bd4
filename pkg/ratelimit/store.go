package ratelimit

import (
	"context"
	"time"
)

// Entry is one timestamped hit inside a window.
type Entry struct {
	Member string
	At     time.Time
}

// WindowBatch is the evict, count, insert and expire sequence for one key.
type WindowBatch struct {
	Key         string
	EvictBefore time.Time
	Entry       Entry
	TTL         time.Duration
}

// Store is the shared state behind the limiter. ExecWindow must run the whole
// batch atomically and return the count observed before the insert.
type Store interface {
	ExecWindow(ctx context.Context, batch WindowBatch) (int64, error)
	Remove(ctx context.Context, key, member string) error
	// Oldest returns the earliest entry timestamp at or after since.
	Oldest(ctx context.Context, key string, since time.Time) (time.Time, bool, error)
	CountSince(ctx context.Context, key string, since time.Time) (int64, error)
}

func unixMs(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

func fromUnixMs(ms int64) time.Time {
	return time.Unix(0, ms*int64(time.Millisecond))
}
