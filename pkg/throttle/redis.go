package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed sliding window throttler, suitable when several
// processes must share one budget per key.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// RedisConfig holds configuration for the Redis throttler
type RedisConfig struct {
	// Client is the Redis client to use
	Client *redis.Client
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Window is the sliding window duration
	Window time.Duration
	// Prefix is the key prefix for Redis keys
	Prefix string
}

// DefaultRedisConfig allows 100 requests per minute.
func DefaultRedisConfig(client *redis.Client) RedisConfig {
	return RedisConfig{
		Client: client,
		Limit:  100,
		Window: time.Minute,
		Prefix: "throttle:",
	}
}

// NewRedis creates a Redis throttler.
func NewRedis(config RedisConfig) (*Redis, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	if config.Window <= 0 {
		return nil, errors.New("window must be greater than 0")
	}

	return &Redis{
		client: config.Client,
		limit:  config.Limit,
		window: config.Window,
		prefix: config.Prefix,
	}, nil
}

// allowScript atomically trims the window, counts entries and records the
// access when under the limit.
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)

	if current < limit then
		redis.call('ZADD', key, now, now)
		redis.call('EXPIRE', key, window)
		return {1, current + 1}
	else
		return {0, current}
	end
`)

// Allow checks and records an access for the key within the sliding window.
func (r *Redis) Allow(ctx context.Context, key string) (*Info, error) {
	redisKey := r.prefix + key
	now := time.Now()
	windowStart := now.Add(-r.window)

	result, err := allowScript.Run(ctx, r.client, []string{redisKey},
		now.UnixNano(),
		windowStart.UnixNano(),
		r.limit,
		int(r.window.Seconds()),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("redis throttle check failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 2 {
		return nil, errors.New("unexpected redis script result")
	}
	allowed, ok := resultSlice[0].(int64)
	if !ok {
		return nil, errors.New("invalid allowed value from redis")
	}
	count, ok := resultSlice[1].(int64)
	if !ok {
		return nil, errors.New("invalid count value from redis")
	}

	remaining := r.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Info{
		Limit:     r.limit,
		Remaining: remaining,
		ResetAt:   now.Add(r.window),
		Allowed:   allowed == 1,
	}, nil
}

// Reset clears all recorded accesses for the key.
func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
