// Package ratelimit caps how often one client may trigger a summarization.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"go-summarizer/internal/config"
)

// Limiter decides whether the client identified by key may proceed.
// An error means the decision could not be made; Allow then reports true.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// New picks the limiter for cfg: none when PerMinute is 0, Redis-backed
// when rdb is set, in-process otherwise. Either way at most PerMinute
// requests from one client get through at once.
func New(cfg config.RateLimitConfig, rdb *redis.Client) Limiter {
	if cfg.PerMinute <= 0 {
		return Unlimited{}
	}
	if rdb != nil {
		return NewRedisLimiter(rdb, cfg.PerMinute, time.Minute)
	}
	// Burst never exceeds PerMinute so both backends admit the same count.
	burst := min(cfg.Burst, cfg.PerMinute)
	if burst <= 0 {
		burst = 1
	}
	return NewMemoryLimiter(rate.Limit(float64(cfg.PerMinute)/60), burst)
}

// Unlimited allows everything.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) {
	return true, nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key.
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func NewMemoryLimiter(limit rate.Limit, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1), nil
}

// Cleanup forgets keys not seen for idle and returns how many were dropped.
func (l *MemoryLimiter) Cleanup(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	dropped := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			dropped++
		}
	}
	return dropped
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (l *MemoryLimiter) StartCleanup(ctx context.Context, interval, idle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup(idle)
			}
		}
	}()
}

// RedisLimiter counts requests per key in fixed windows shared by every
// server instance using the same Redis.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

const keyFmt = "ratelimit:%s:%d"

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf(keyFmt, key, bucket)

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("rate limit counter: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}
