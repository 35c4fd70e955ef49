package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimiter throttles login attempts per client IP with a fixed window
// counter in Redis. The counter and its TTL move atomically through a Lua
// script, so concurrent attempts cannot overshoot the limit.
type RateLimiter struct {
	client *goredis.Client
	limit  int
	window time.Duration
}

// RateLimitResult is the outcome of one check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetIn   time.Duration
}

func NewRateLimiter(client *goredis.Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{client: client, limit: limit, window: window}
}

var rateLimitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	end
	return {0, 0, ttl}
`)

// AllowAuth counts one authentication attempt from ip.
func (r *RateLimiter) AllowAuth(ctx context.Context, ip string) (RateLimitResult, error) {
	res, err := rateLimitScript.Run(ctx, r.client, []string{"ratelimit:" + ip + ":auth"}, r.limit, int(r.window.Seconds())).Result()
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 3 {
		return RateLimitResult{}, fmt.Errorf("unexpected rate limit reply")
	}
	return RateLimitResult{
		Allowed:   vals[0].(int64) == 1,
		Remaining: int(vals[1].(int64)),
		Limit:     r.limit,
		ResetIn:   time.Duration(vals[2].(int64)) * time.Second,
	}, nil
}
