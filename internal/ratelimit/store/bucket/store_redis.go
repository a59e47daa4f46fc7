package bucket

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"usergate/internal/ratelimit/models"
	dErrors "usergate/pkg/domain-errors"
)

// allowScript performs the check-and-increment atomically on the Redis side so
// two concurrent checks for the same key can never both take the last permit.
// Denied checks leave the counter untouched.
//
// KEYS[1] = bucket key, ARGV[1] = limit, ARGV[2] = window millis.
// Returns {allowed, count, pttl_millis}.
var allowScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
  return {0, current, redis.call("PTTL", KEYS[1])}
end
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {1, count, redis.call("PTTL", KEYS[1])}
`)

// RedisBucketStore implements BucketStore against a shared Redis instance so
// limits hold across service replicas. Every call is bounded by a timeout; an
// unreachable store surfaces as an error for the service's fail mode to decide.
type RedisBucketStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedisBucketStore wraps a Redis client. timeout bounds each store call.
func NewRedisBucketStore(client redis.UniversalClient, timeout time.Duration) *RedisBucketStore {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return &RedisBucketStore{client: client, timeout: timeout}
}

// Allow checks and consumes a permit for the key's current window.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := allowScript.Run(ctx, s.client, []string{key}, limit, window.Milliseconds()).Slice()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unreachable")
	}
	if len(raw) != 3 {
		return nil, dErrors.New(dErrors.CodeInternal, "unexpected rate limit script reply")
	}

	allowed := toInt64(raw[0]) == 1
	count := toInt64(raw[1])
	ttl := time.Duration(toInt64(raw[2])) * time.Millisecond
	if ttl <= 0 {
		ttl = window
	}

	now := time.Now()
	resetAt := now.Add(ttl)

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	result := &models.RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !allowed {
		result.RetryAfter = retryAfterSeconds(now, resetAt)
	}
	return result, nil
}

// Reset clears the counter for a key.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unreachable")
	}
	return nil
}

func toInt64(v any) int64 {
	n, _ := v.(int64)
	return n
}
