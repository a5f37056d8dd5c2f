package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrResetNotFound         = errors.New("reset record not found")
	ErrResetExpired          = errors.New("reset record expired")
	ErrResetUsed             = errors.New("reset record already used")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

const (
	resetRecordPrefix = "aprt:"
	resetIndexPrefix  = "apra:"
)

// PasswordResetRecord is the stored state of one reset token.
type PasswordResetRecord struct {
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
	UsedAt    time.Time
}

// issueResetLua replaces every outstanding token of an account with a new one.
// KEYS[1] = account index key
// KEYS[2] = new record key
// ARGV[1] = account id
// ARGV[2] = token digest
// ARGV[3] = now (unix ms)
// ARGV[4] = expires at (unix ms)
// ARGV[5] = ttl (ms)
var issueResetLua = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
for _, m in ipairs(members) do
  redis.call('DEL', 'aprt:' .. m)
end
redis.call('DEL', KEYS[1])

redis.call('HSET', KEYS[2], 'account_id', ARGV[1], 'expires_at', ARGV[4], 'used', 0, 'created_at', ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[5])
redis.call('SADD', KEYS[1], ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// consumeResetLua marks a token used when it is unused and unexpired, then
// deletes every other token of the same account.
// KEYS[1] = record key
// ARGV[1] = token digest
// ARGV[2] = now (unix ms)
//
// Returns the account id, or an error string: "not_found", "used", "expired".
var consumeResetLua = redis.NewScript(`
local r = redis.call('HMGET', KEYS[1], 'account_id', 'expires_at', 'used')
if not r[1] then
  return {err='not_found'}
end
if r[3] == '1' then
  return {err='used'}
end
local now = tonumber(ARGV[2])
if tonumber(r[2]) <= now then
  return {err='expired'}
end

redis.call('HSET', KEYS[1], 'used', 1, 'used_at', now)

local idx = 'apra:' .. r[1]
local members = redis.call('SMEMBERS', idx)
for _, m in ipairs(members) do
  if m ~= ARGV[1] then
    redis.call('DEL', 'aprt:' .. m)
  end
end
redis.call('DEL', idx)
return r[1]
`)

// PasswordResetStore persists reset token records in Redis.
type PasswordResetStore struct {
	redis redis.UniversalClient
}

// NewPasswordResetStore creates a store on redisClient.
func NewPasswordResetStore(redisClient redis.UniversalClient) *PasswordResetStore {
	return &PasswordResetStore{redis: redisClient}
}

// Issue stores a new active record for accountID and invalidates every token
// the account held before.
func (s *PasswordResetStore) Issue(ctx context.Context, accountID, digest string, now time.Time, ttl time.Duration) error {
	err := issueResetLua.Run(ctx, s.redis,
		[]string{resetIndexPrefix + accountID, resetRecordPrefix + digest},
		accountID,
		digest,
		now.UnixMilli(),
		now.Add(ttl).UnixMilli(),
		ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

// Get loads the record for digest.
func (s *PasswordResetStore) Get(ctx context.Context, digest string) (*PasswordResetRecord, error) {
	fields, err := s.redis.HGetAll(ctx, resetRecordPrefix+digest).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	if len(fields) == 0 || fields["account_id"] == "" {
		return nil, ErrResetNotFound
	}

	rec := &PasswordResetRecord{
		AccountID: fields["account_id"],
		ExpiresAt: parseMillis(fields["expires_at"]),
		CreatedAt: parseMillis(fields["created_at"]),
		Used:      fields["used"] == "1",
		UsedAt:    parseMillis(fields["used_at"]),
	}
	return rec, nil
}

// Consume atomically redeems digest at now and returns the owning account.
func (s *PasswordResetStore) Consume(ctx context.Context, digest string, now time.Time) (string, error) {
	accountID, err := consumeResetLua.Run(ctx, s.redis,
		[]string{resetRecordPrefix + digest},
		digest,
		now.UnixMilli(),
	).Text()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return "", ErrResetNotFound
		case "used":
			return "", ErrResetUsed
		case "expired":
			return "", ErrResetExpired
		}
		return "", fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return accountID, nil
}

// InvalidateAll deletes every outstanding token of accountID.
func (s *PasswordResetStore) InvalidateAll(ctx context.Context, accountID string) error {
	idx := resetIndexPrefix + accountID
	members, err := s.redis.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, resetRecordPrefix+m)
	}
	keys = append(keys, idx)
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

func parseMillis(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
