package ratelimit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/NeuralTrust/TrustBoundary/pkg/ratelimit"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_ExecWindowPipeline(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := ratelimit.NewRedisStore(db)

	now := time.Unix(1700000000, 0)
	key := ratelimit.Key("login", "user-1")
	batch := ratelimit.WindowBatch{
		Key:         key,
		EvictBefore: now.Add(-time.Minute),
		Entry:       ratelimit.Entry{Member: "1700000000000:abc", At: now},
		TTL:         61 * time.Second,
	}

	mock.ExpectTxPipeline()
	mock.ExpectZRemRangeByScore(key, "-inf", "(1699999940000").SetVal(1)
	mock.ExpectZCard(key).SetVal(4)
	mock.ExpectZAdd(key, &redis.Z{Score: float64(1700000000000), Member: "1700000000000:abc"}).SetVal(1)
	mock.ExpectExpire(key, 61*time.Second).SetVal(true)
	mock.ExpectTxPipelineExec()

	count, err := store.ExecWindow(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_ReadsAndRemoval(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := ratelimit.NewRedisStore(db)
	ctx := context.Background()

	key := ratelimit.Key("ai_command", "10.0.0.1")
	since := time.Unix(1700000000, 0)

	mock.ExpectZRem(key, "m1").SetVal(1)
	mock.ExpectZCount(key, "1700000000000", "+inf").SetVal(7)
	mock.ExpectZRangeByScoreWithScores(key, &redis.ZRangeBy{
		Min:   "1700000000000",
		Max:   "+inf",
		Count: 1,
	}).SetVal([]redis.Z{{Score: float64(1700000005000), Member: "m2"}})

	require.NoError(t, store.Remove(ctx, key, "m1"))

	count, err := store.CountSince(ctx, key, since)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	oldest, found, err := store.Oldest(ctx, key, since)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, since.Add(5*time.Second), oldest)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_WrapsErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := ratelimit.NewRedisStore(db)
	key := ratelimit.Key("login", "u")

	mock.ExpectZCount(key, "0", "+inf").SetErr(errors.New("boom"))
	_, err := store.CountSince(context.Background(), key, time.Unix(0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count rate limit entries")
}

func TestLimiter_RedisMockSequence(t *testing.T) {
	db, mock := redismock.NewClientMock()
	logger, _ := test.NewNullLogger()

	now := time.Unix(1700000000, 0)
	fixed := uuid.MustParse("5f1b7a8e-9a6b-4d4c-8b8a-6a2f0c1d2e3f")
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(db), logger, &ratelimit.LimiterOpts{
		TimeProvider: func() time.Time { return now },
		UuidProvider: func() uuid.UUID { return fixed },
	})
	policy := ratelimit.Policy{Limit: 5, WindowSeconds: 3600}
	key := "ratelimit:api_key_creation:user-9"
	member := fmt.Sprintf("%d:%s", now.UnixMilli(), fixed.String())

	mock.ExpectTxPipeline()
	mock.ExpectZRemRangeByScore(key, "-inf", fmt.Sprintf("(%d", now.Add(-time.Hour).UnixMilli())).SetVal(0)
	mock.ExpectZCard(key).SetVal(5)
	mock.ExpectZAdd(key, &redis.Z{Score: float64(now.UnixMilli()), Member: member}).SetVal(1)
	mock.ExpectExpire(key, time.Hour+time.Second).SetVal(true)
	mock.ExpectTxPipelineExec()
	mock.ExpectZRem(key, member).SetVal(1)
	oldest := now.Add(-20 * time.Minute)
	mock.ExpectZRangeByScoreWithScores(key, &redis.ZRangeBy{
		Min:   fmt.Sprintf("%d", now.Add(-time.Hour).UnixMilli()),
		Max:   "+inf",
		Count: 1,
	}).SetVal([]redis.Z{{Score: float64(oldest.UnixMilli()), Member: "old"}})

	result := limiter.CheckRateLimit(context.Background(), "user-9", "api_key_creation", policy)

	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, oldest.Add(time.Hour).UnixMilli(), result.ResetMs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLimiter_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter := newLimiter(ratelimit.NewRedisStore(client), clock)
	policy := ratelimit.Policy{Limit: 4, WindowSeconds: 60}
	ctx := context.Background()

	remaining := []int{3, 2, 1, 0}
	for _, want := range remaining {
		result := limiter.CheckRateLimit(ctx, "tenant", "ai_command", policy)
		require.True(t, result.Allowed)
		assert.Equal(t, want, result.Remaining)
		clock.Advance(100 * time.Millisecond)
	}

	denied := limiter.CheckRateLimit(ctx, "tenant", "ai_command", policy)
	assert.False(t, denied.Allowed)
	assert.Equal(t, time.Unix(1700000060, 0).UnixMilli(), denied.ResetMs)

	key := ratelimit.Key("ai_command", "tenant")
	members, err := client.ZCard(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(4), members)
	assert.Equal(t, 61*time.Second, mr.TTL(key))

	status := limiter.GetRateLimitStatus(ctx, "tenant", "ai_command", policy)
	assert.False(t, status.Allowed)

	clock.Advance(61 * time.Second)
	assert.True(t, limiter.CheckRateLimit(ctx, "tenant", "ai_command", policy).Allowed)
	members, err = client.ZCard(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), members)
}

func TestLimiter_FailsOpenWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter := newLimiter(ratelimit.NewRedisStore(client), clock)

	result := limiter.CheckRateLimit(context.Background(), "u", "login", ratelimit.Policy{Limit: 1, WindowSeconds: 60})
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Remaining)
}
