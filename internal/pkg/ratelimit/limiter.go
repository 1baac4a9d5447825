package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/docsmithhq/docsmith/internal/pkg/cache"
	"github.com/docsmithhq/docsmith/internal/pkg/env"
)

// ErrRateLimited is distinct from quota denial so clients can tell
// "slow down" apart from "upgrade your plan".
var ErrRateLimited = errors.New("rate limited")

const keyPrefix = "ratelimit:"

// Limiter is a sliding-window counter keyed by caller identity, with
// separate per-minute and per-hour ceilings. It is independent of billing
// tier and also shields the webhook endpoint.
type Limiter struct {
	client    *redis.Client
	perMinute int64
	perHour   int64
	now       func() time.Time
}

// NewLimiter creates a limiter with explicit ceilings.
func NewLimiter(client *redis.Client, perMinute, perHour int64) *Limiter {
	return &Limiter{
		client:    client,
		perMinute: perMinute,
		perHour:   perHour,
		now:       time.Now,
	}
}

// NewLimiterFromEnv creates a limiter over the shared cache client with
// ceilings from RATE_LIMIT_PER_MINUTE / RATE_LIMIT_PER_HOUR.
func NewLimiterFromEnv() *Limiter {
	perMinute, err := strconv.ParseInt(env.GetEnv("RATE_LIMIT_PER_MINUTE", "60"), 10, 64)
	if err != nil || perMinute <= 0 {
		perMinute = 60
	}
	perHour, err := strconv.ParseInt(env.GetEnv("RATE_LIMIT_PER_HOUR", "1000"), 10, 64)
	if err != nil || perHour <= 0 {
		perHour = 1000
	}
	return NewLimiter(cache.GetClient(), perMinute, perHour)
}

// Allow checks both ceilings for the given caller key. It returns
// ErrRateLimited on denial and nil otherwise. Redis being unreachable fails
// open: the tier gate behind us still enforces quotas.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if err := l.allowWindow(ctx, key, time.Minute, l.perMinute); err != nil {
		return err
	}
	return l.allowWindow(ctx, key, time.Hour, l.perHour)
}

// allowWindow implements the sliding window: the current fixed bucket plus
// the previous bucket weighted by how much of it still overlaps the window.
func (l *Limiter) allowWindow(ctx context.Context, key string, window time.Duration, limit int64) error {
	now := l.now()
	cur := now.Truncate(window)
	prev := cur.Add(-window)

	curKey := bucketKey(key, window, cur)
	prevKey := bucketKey(key, window, prev)

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, curKey)
	pipe.Expire(ctx, curKey, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Errorf("[RateLimit] Redis unavailable, failing open: %v", err)
		return nil
	}
	count := incr.Val()

	prevCount, err := l.client.Get(ctx, prevKey).Int64()
	if err != nil && err != redis.Nil {
		log.Errorf("[RateLimit] Redis unavailable, failing open: %v", err)
		return nil
	}

	overlap := 1 - float64(now.Sub(cur))/float64(window)
	weighted := float64(prevCount)*overlap + float64(count)
	if weighted > float64(limit) {
		return ErrRateLimited
	}
	return nil
}

func bucketKey(key string, window time.Duration, bucket time.Time) string {
	return fmt.Sprintf("%s%s:%d:%d", keyPrefix, key, int64(window.Seconds()), bucket.Unix())
}
