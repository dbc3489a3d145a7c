package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	burstKeyPrefix = "quota:ai:minute:"
	windowDuration = 60 * time.Second
	keyTTL         = 90 * time.Second
)

// slideWindow trims the window, counts it and records the call only when
// the count is below the cap, all in one round trip so concurrent calls
// cannot both take the last slot.
//
// KEYS[1] window key; ARGV: window start ms, now ms, member, cap, ttl ms.
var slideWindow = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local n = redis.call('ZCARD', KEYS[1])
if n >= tonumber(ARGV[4]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RateLimiter is a Redis sorted-set sliding window that caps how many AI
// calls a user may start per minute, independent of the daily plan limit.
type RateLimiter struct {
	rdb redis.Cmdable
	now func() time.Time
}

// NewRateLimiter creates a new Redis-based rate limiter.
func NewRateLimiter(rdb redis.Cmdable) *RateLimiter {
	return &RateLimiter{rdb: rdb, now: time.Now}
}

// CheckAndIncrement records one call and returns true while the user is
// under maxPerMinute. Denied calls are not recorded.
func (rl *RateLimiter) CheckAndIncrement(ctx context.Context, userID uuid.UUID, maxPerMinute int) (bool, error) {
	now := rl.now()
	ok, err := slideWindow.Run(ctx, rl.rdb, []string{burstKeyPrefix + userID.String()},
		msString(now.Add(-windowDuration)),
		msString(now),
		uuid.NewString(),
		maxPerMinute,
		keyTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("sliding window script: %w", err)
	}
	return ok == 1, nil
}

// GetMinuteUsage returns the current number of calls in the sliding window.
func (rl *RateLimiter) GetMinuteUsage(ctx context.Context, userID uuid.UUID) (int, error) {
	now := rl.now()
	count, err := rl.rdb.ZCount(ctx, burstKeyPrefix+userID.String(),
		"("+msString(now.Add(-windowDuration)), msString(now)).Result()
	if err != nil {
		return 0, fmt.Errorf("getting minute usage: %w", err)
	}
	return int(count), nil
}

func msString(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
