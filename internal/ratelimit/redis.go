package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "stockroom:rl:"

var allowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Redis is a fixed-window counter shared by every replica.
type Redis struct {
	client redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

// NewRedis counts limit events per window in Redis under prefix+key.
func NewRedis(client redis.Scripter, limit int, window time.Duration, prefix string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	if window < time.Millisecond {
		window = time.Second
	}
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{client: client, limit: limit, window: window, prefix: prefix}, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	if r.limit <= 0 {
		return Decision{Allowed: true, Limit: r.limit}, nil
	}
	res, err := allowScript.Run(ctx, r.client, []string{r.prefix + key}, r.window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, err
	}
	return parseDecision(res, r.limit, r.window)
}

// parseDecision interprets the script reply {count, pttl}.
func parseDecision(res any, limit int, window time.Duration) (Decision, error) {
	values, ok := res.([]any)
	if !ok || len(values) < 2 {
		return Decision{}, errors.New("ratelimit: unexpected redis response")
	}
	current, ok := values[0].(int64)
	if !ok {
		return Decision{}, errors.New("ratelimit: invalid redis counter")
	}
	ttl := window
	if ms, ok := values[1].(int64); ok && ms > 0 {
		ttl = time.Duration(ms) * time.Millisecond
	}

	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{Allowed: current <= int64(limit), Limit: limit, Remaining: remaining}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}
