package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is returned when the limiter cannot reach Redis.
// Callers must treat it as a denial.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// Config holds rate limiter tuning parameters.
type Config struct {
	Window        time.Duration
	Threshold     int
	BlockDuration time.Duration
}

// Decision is the outcome of a [Limiter.Check].
type Decision struct {
	Allowed           bool
	AttemptsRemaining int
	BlockedUntil      time.Time
}

// Limiter throttles login attempts per client identifier using Redis hashes.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// checkLua evaluates the record for one identifier and, when the attempt is
// allowed, reserves it by incrementing the counter in the same step.
// KEYS[1] = record key
// ARGV[1] = now (unix ms)
// ARGV[2] = window (ms)
// ARGV[3] = threshold
// ARGV[4] = block duration (ms)
// ARGV[5] = key ttl (ms)
//
// Returns {allowed(0|1), remaining, blockedUntil(ms)}.
var checkLua = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local threshold = tonumber(ARGV[3])
local block = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local r = redis.call('HMGET', KEYS[1], 'attempts', 'last', 'blocked')
local attempts = tonumber(r[1]) or 0
local last = tonumber(r[2]) or 0
local blocked = tonumber(r[3]) or 0

if blocked > now then
  return {0, 0, blocked}
end

if blocked > 0 or now - last > window then
  redis.call('DEL', KEYS[1])
  attempts = 0
end

if attempts >= threshold then
  blocked = now + block
  redis.call('HSET', KEYS[1], 'blocked', blocked)
  redis.call('PEXPIRE', KEYS[1], ttl)
  return {0, 0, blocked}
end

attempts = attempts + 1
redis.call('HSET', KEYS[1], 'attempts', attempts, 'last', now)
redis.call('PEXPIRE', KEYS[1], ttl)
return {1, threshold - attempts, 0}
`)

// recordLua applies the outcome of a reserved attempt. A failure only
// refreshes the timestamp; the attempt was counted by checkLua.
// KEYS[1] = record key
// ARGV[1] = success (0|1)
// ARGV[2] = now (unix ms)
// ARGV[3] = key ttl (ms)
var recordLua = redis.NewScript(`
if ARGV[1] == '1' then
  redis.call('DEL', KEYS[1])
  return 0
end

if redis.call('HEXISTS', KEYS[1], 'attempts') == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'last', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Identifier derives the opaque client key from IP and user agent.
// The raw values never reach the store.
func Identifier(salt, ip, userAgent string) string {
	sum := sha256.Sum256([]byte(salt + "|" + ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}

// Check reports whether identifier may attempt a login at now. An allowed
// attempt is charged before Check returns, so concurrent callers can never
// exceed the threshold between Check and Record. A record whose threshold is
// exhausted is converted into a block.
func (l *Limiter) Check(ctx context.Context, identifier string, now time.Time) (Decision, error) {
	res, err := checkLua.Run(ctx, l.redis, []string{key(identifier)},
		now.UnixMilli(),
		l.config.Window.Milliseconds(),
		l.config.Threshold,
		l.config.BlockDuration.Milliseconds(),
		l.ttl().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("%w: unexpected check reply", ErrStoreUnavailable)
	}

	d := Decision{
		Allowed:           res[0] == 1,
		AttemptsRemaining: int(res[1]),
	}
	if d.AttemptsRemaining < 0 {
		d.AttemptsRemaining = 0
	}
	if res[2] > 0 {
		d.BlockedUntil = time.UnixMilli(res[2])
	}
	return d, nil
}

// Record applies the outcome of an attempt reserved by Check. Success clears
// the record; a failure keeps the reserved charge and refreshes its timestamp.
func (l *Limiter) Record(ctx context.Context, identifier string, success bool, now time.Time) error {
	flag := "0"
	if success {
		flag = "1"
	}
	err := recordLua.Run(ctx, l.redis, []string{key(identifier)},
		flag,
		now.UnixMilli(),
		l.ttl().Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Attempts returns the stored attempt counter for an identifier.
// Missing records return zero.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	v, err := l.redis.HGet(ctx, key(identifier), "attempts").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

func (l *Limiter) ttl() time.Duration {
	if l.config.BlockDuration > l.config.Window {
		return l.config.BlockDuration
	}
	return l.config.Window
}

func key(identifier string) string {
	return "arl:" + identifier
}
