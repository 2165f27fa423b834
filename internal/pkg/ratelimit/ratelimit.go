package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/macabanto/wordnet/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

// ErrWaitAborted is returned when the context is canceled while waiting
// for a token.
var ErrWaitAborted = errors.New("rate limit wait aborted")

// DefaultKey is the shared bucket used by every worker process, so the
// requests/sec cap is global across the fleet rather than per worker.
const DefaultKey = "wordnet:ratelimit:global"

// 令牌桶状态保存在一个 Redis hash 里，由 Lua 脚本原子地补充和扣减，
// 多个 worker 并发调用也不会超发。
const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

if rate <= 0 or burst <= 0 then
  return {1, 0}
end

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local elapsed = math.max(0, now - ts)
tokens = math.min(burst, tokens + (elapsed * rate) / 1000.0)

local wait_ms = 0
if tokens >= 1 then
  tokens = tokens - 1
else
  wait_ms = math.ceil((1 - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 2000.0))

if wait_ms == 0 then
  return {1, 0}
end
return {0, wait_ms}
`

// Limiter is a Redis-backed token bucket shared by all workers. A nil
// *Limiter is valid and never waits, so callers can leave rate limiting
// disabled without branching.
type Limiter struct {
	rdb    *redis.Client
	key    string
	rate   float64
	burst  float64
	script *redis.Script
}

// New creates a shared limiter allowing rate tokens/sec with the given burst.
// Returns nil (disabled) when rate or burst is non-positive.
func New(rdb *redis.Client, key string, rate, burst float64) *Limiter {
	if rate <= 0 || burst <= 0 {
		return nil
	}
	if key == "" {
		key = DefaultKey
	}
	return &Limiter{
		rdb:    rdb,
		key:    key,
		rate:   rate,
		burst:  burst,
		script: redis.NewScript(tokenBucketLua),
	}
}

// Acquire blocks until a token is available or ctx is canceled.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}

	const jitterMax = 10 * time.Millisecond
	start := time.Now()
	for {
		allowed, waitMs, err := l.tryAcquire(ctx)
		if err != nil {
			return err
		}
		if allowed {
			metrics.RateLimitWaitDuration.Observe(time.Since(start).Seconds())
			return nil
		}

		wait := time.Duration(waitMs) * time.Millisecond
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		wait += time.Duration(rand.Int63n(int64(jitterMax)))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			metrics.RateLimitTimeoutTotal.Inc()
			return ErrWaitAborted
		case <-timer.C:
		}
	}
}

func (l *Limiter) tryAcquire(ctx context.Context) (bool, int64, error) {
	now := time.Now().UnixMilli()
	res, err := l.script.Run(ctx, l.rdb, []string{l.key}, l.rate, l.burst, now).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 2 {
		return false, 0, errors.New("ratelimit: invalid script result")
	}
	return toInt64(values[0]) == 1, toInt64(values[1]), nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
