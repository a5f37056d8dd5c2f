package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutConfig holds configuration for the account lockout limiter.
type LockoutConfig struct {
	Threshold  int
	Duration   time.Duration
	CounterTTL time.Duration
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// recordFailureLua increments the failure counter and converts it into a lock
// when the threshold is reached.
// KEYS[1] = lockout key
// ARGV[1] = now (unix ms)
// ARGV[2] = threshold
// ARGV[3] = lock duration (ms)
// ARGV[4] = counter ttl (ms)
//
// Returns {justLocked(0|1), lockedUntil(ms)}.
var recordFailureLua = redis.NewScript(`
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local duration = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local r = redis.call('HMGET', KEYS[1], 'failures', 'locked_until')
local failures = 0
if r[1] then failures = tonumber(r[1]) end
local lockedUntil = 0
if r[2] then lockedUntil = tonumber(r[2]) end

if lockedUntil > now then
  return {0, lockedUntil}
end

failures = failures + 1
if failures >= threshold then
  lockedUntil = now + duration
  redis.call('HSET', KEYS[1], 'failures', 0, 'locked_until', lockedUntil)
  if duration > ttl then ttl = duration end
  redis.call('PEXPIRE', KEYS[1], ttl)
  return {1, lockedUntil}
end

redis.call('HSET', KEYS[1], 'failures', failures)
redis.call('PEXPIRE', KEYS[1], ttl)
return {0, 0}
`)

// LockoutLimiter tracks consecutive failed logins per email address and
// locks the address once the configured threshold is reached.
type LockoutLimiter struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockoutLimiter creates a new lockout limiter.
func NewLockoutLimiter(redisClient redis.UniversalClient, cfg LockoutConfig) *LockoutLimiter {
	return &LockoutLimiter{redis: redisClient, config: cfg}
}

func (l *LockoutLimiter) key(email string) string {
	return "alo:" + email
}

// CheckLockout returns the lock deadline for email, or the zero time when the
// address is not locked at now.
func (l *LockoutLimiter) CheckLockout(ctx context.Context, email string, now time.Time) (time.Time, error) {
	v, err := l.redis.HGet(ctx, l.key(email), "locked_until").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: corrupt lock deadline %q", ErrLockoutUnavailable, v)
	}
	until := time.UnixMilli(ms)
	if !until.After(now) {
		return time.Time{}, nil
	}
	return until, nil
}

// RecordFailure increments the failure counter for email. When this failure
// reaches the threshold the address is locked until now+Duration, the counter
// restarts and justLocked is true. Failures recorded while a lock is active
// report the existing deadline without extending it.
func (l *LockoutLimiter) RecordFailure(ctx context.Context, email string, now time.Time) (lockedUntil time.Time, justLocked bool, err error) {
	res, err := recordFailureLua.Run(ctx, l.redis, []string{l.key(email)},
		now.UnixMilli(),
		l.config.Threshold,
		l.config.Duration.Milliseconds(),
		l.config.CounterTTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if len(res) != 2 {
		return time.Time{}, false, fmt.Errorf("%w: unexpected reply", ErrLockoutUnavailable)
	}
	if res[1] > 0 {
		lockedUntil = time.UnixMilli(res[1])
	}
	return lockedUntil, res[0] == 1, nil
}

// Reset clears the failure counter and any active lock for email.
func (l *LockoutLimiter) Reset(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, l.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// FailureCount returns the current consecutive failure count for email.
func (l *LockoutLimiter) FailureCount(ctx context.Context, email string) (int, error) {
	count, err := l.redis.HGet(ctx, l.key(email), "failures").Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return count, nil
}
