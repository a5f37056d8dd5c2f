package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrResetRateLimited indicates too many reset requests in the current window.
	ErrResetRateLimited = errors.New("reset rate limited")
	// ErrResetRedisUnavailable indicates the reset limiter could not reach Redis.
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

// PasswordResetConfig bounds password reset requests per email and per IP.
type PasswordResetConfig struct {
	EnableIPThrottle bool
	MaxRequests      int
	Window           time.Duration
}

// fixedWindowLua counts one request in the current window.
// KEYS[1] = window key
// ARGV[1] = key ttl (ms)
//
// Returns the request count within the window.
var fixedWindowLua = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// PasswordResetLimiter throttles reset requests with fixed windows keyed by
// the normalized email, whether or not it belongs to an account.
type PasswordResetLimiter struct {
	redis  redis.UniversalClient
	config PasswordResetConfig
}

// NewPasswordResetLimiter creates a reset request limiter.
func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	return &PasswordResetLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRequest counts one reset request for email, and for ip when the IP
// throttle is on and ip is known. It returns ErrResetRateLimited once either
// key exceeds MaxRequests in the window containing now.
func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, ip string, now time.Time) error {
	bucket := l.bucket(now)
	if err := l.enforceFixedWindow(ctx, "aprq:"+email+":"+bucket); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, "aprqip:"+ip+":"+bucket); err != nil {
			return err
		}
	}
	return nil
}

func (l *PasswordResetLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := fixedWindowLua.Run(ctx, l.redis, []string{key}, l.config.Window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	if count > int64(l.config.MaxRequests) {
		return ErrResetRateLimited
	}
	return nil
}

func (l *PasswordResetLimiter) bucket(now time.Time) string {
	window := l.config.Window.Milliseconds()
	if window <= 0 {
		window = 1
	}
	return strconv.FormatInt(now.UnixMilli()/window, 10)
}
