package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrHistoryUnavailable indicates the history backend is unreachable.
	ErrHistoryUnavailable = errors.New("password history backend unavailable")
)

// Store persists previous password hashes per account.
type Store interface {
	RecentHashes(ctx context.Context, accountID string, n int) ([]string, error)
	AppendHash(ctx context.Context, accountID, hash string, at time.Time) error
}

// VerifyFunc reports whether plaintext matches an encoded hash. It must
// compare in constant time.
type VerifyFunc func(plaintext, encodedHash string) (bool, error)

// Enforcer answers reuse questions against a [Store].
type Enforcer struct {
	store  Store
	verify VerifyFunc
	depth  int
}

// NewEnforcer builds an Enforcer consulting the depth most recent entries.
func NewEnforcer(store Store, verify VerifyFunc, depth int) *Enforcer {
	return &Enforcer{store: store, verify: verify, depth: depth}
}

// WasRecentlyUsed reports whether candidate matches any of the most recent
// entries for accountID. Every entry is checked so the call time does not
// depend on which entry matched.
func (e *Enforcer) WasRecentlyUsed(ctx context.Context, accountID, candidate string) (bool, error) {
	if e.depth <= 0 {
		return false, nil
	}
	hashes, err := e.store.RecentHashes(ctx, accountID, e.depth)
	if err != nil {
		return false, err
	}

	used := false
	for _, h := range hashes {
		ok, err := e.verify(candidate, h)
		if err != nil {
			// Entries written under an unknown scheme cannot match.
			continue
		}
		if ok {
			used = true
		}
	}
	return used, nil
}

// Record appends the hash an account is moving away from.
func (e *Enforcer) Record(ctx context.Context, accountID, previousHash string, at time.Time) error {
	if previousHash == "" {
		return nil
	}
	return e.store.AppendHash(ctx, accountID, previousHash, at)
}

type entry struct {
	Hash      string `json:"hash"`
	CreatedAt int64  `json:"created_at"`
}

// RedisStore keeps history in a capped Redis list per account.
type RedisStore struct {
	redis     redis.UniversalClient
	retention int
}

// NewRedisStore creates a RedisStore keeping at most retention entries.
func NewRedisStore(redisClient redis.UniversalClient, retention int) *RedisStore {
	if retention <= 0 {
		retention = 1
	}
	return &RedisStore{redis: redisClient, retention: retention}
}

func (s *RedisStore) key(accountID string) string {
	return "aph:" + accountID
}

// RecentHashes returns up to n hashes, newest first.
func (s *RedisStore) RecentHashes(ctx context.Context, accountID string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := s.redis.LRange(ctx, s.key(accountID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}

	hashes := make([]string, 0, len(raw))
	for _, r := range raw {
		var e entry
		if err := json.Unmarshal([]byte(r), &e); err != nil || e.Hash == "" {
			continue
		}
		hashes = append(hashes, e.Hash)
	}
	return hashes, nil
}

// AppendHash pushes hash to the front of the list and trims it to the
// retention cap in one transaction.
func (s *RedisStore) AppendHash(ctx context.Context, accountID, hash string, at time.Time) error {
	payload, err := json.Marshal(entry{Hash: hash, CreatedAt: at.Unix()})
	if err != nil {
		return err
	}

	key := s.key(accountID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(s.retention-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}
	return nil
}

// Clear removes all history for accountID.
func (s *RedisStore) Clear(ctx context.Context, accountID string) error {
	if err := s.redis.Del(ctx, s.key(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}
	return nil
}
