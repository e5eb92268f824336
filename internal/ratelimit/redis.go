package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyspace = "renderlog:rl:"

// NewRedis creates a limiter backed by a shared Redis instance, for
// deployments running multiple query API replicas. A nil client degrades
// to the noop limiter.
func NewRedis(client *redis.Client, logger *slog.Logger) *Limiter {
	if client == nil {
		return NewNoop(logger)
	}
	return &Limiter{backend: &redisBackend{client: client}, logger: logger}
}

// redisBackend counts requests in a sorted set per key, scored by
// nanosecond timestamp. Entries older than the window are pruned on each
// call, giving a true sliding window shared across instances.
type redisBackend struct {
	client *redis.Client
}

func (b *redisBackend) take(ctx context.Context, key string, limit int, dur time.Duration) (Result, error) {
	now := time.Now()
	k := redisKeyspace + key
	cutoff := strconv.FormatInt(now.Add(-dur).UnixNano(), 10)

	pipe := b.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "0", cutoff)
	card := pipe.ZCard(ctx, k)
	oldest := pipe.ZRangeWithScores(ctx, k, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis pipeline: %w", err)
	}

	used := int(card.Val())
	if used >= limit {
		resetAt := now.Add(dur)
		if vals := oldest.Val(); len(vals) > 0 {
			resetAt = time.Unix(0, int64(vals[0].Score)).Add(dur)
		}
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	member := strconv.FormatInt(now.UnixNano(), 10)
	add := b.client.TxPipeline()
	add.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixNano()), Member: member})
	add.Expire(ctx, k, dur)
	if _, err := add.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis record: %w", err)
	}

	return Result{Allowed: true, Remaining: limit - used - 1, ResetAt: now.Add(dur)}, nil
}

func (b *redisBackend) close() error { return b.client.Close() }
