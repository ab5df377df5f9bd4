package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) ExecWindow(ctx context.Context, batch WindowBatch) (int64, error) {
	pipe := s.client.TxPipeline()

	pipe.ZRemRangeByScore(ctx, batch.Key, "-inf", "("+strconv.FormatInt(unixMs(batch.EvictBefore), 10))
	card := pipe.ZCard(ctx, batch.Key)
	pipe.ZAdd(ctx, batch.Key, &redis.Z{
		Score:  float64(unixMs(batch.Entry.At)),
		Member: batch.Entry.Member,
	})
	pipe.Expire(ctx, batch.Key, batch.TTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}
	return card.Val(), nil
}

func (s *RedisStore) Remove(ctx context.Context, key, member string) error {
	if err := s.client.ZRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("failed to remove rate limit entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Oldest(ctx context.Context, key string, since time.Time) (time.Time, bool, error) {
	entries, err := s.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:    strconv.FormatInt(unixMs(since), 10),
		Max:    "+inf",
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read oldest rate limit entry: %w", err)
	}
	if len(entries) == 0 {
		return time.Time{}, false, nil
	}
	return fromUnixMs(int64(entries[0].Score)), true, nil
}

func (s *RedisStore) CountSince(ctx context.Context, key string, since time.Time) (int64, error) {
	count, err := s.client.ZCount(ctx, key, strconv.FormatInt(unixMs(since), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limit entries: %w", err)
	}
	return count, nil
}
