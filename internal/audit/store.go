package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrStoreUnavailable indicates the audit backend is unreachable.
	ErrStoreUnavailable = errors.New("audit store unavailable")
	// ErrInvalidEvent is returned for events outside the closed type set.
	ErrInvalidEvent = errors.New("invalid audit event")
)

const (
	globalKey     = "aae:all"
	accountPrefix = "aae:a:"
)

// Query selects stored events, newest first.
type Query struct {
	// AccountID restricts the query to one account. Empty queries the
	// global stream.
	AccountID string
	// Type restricts results to one event type. Required with AccountID.
	Type  Type
	Since time.Time
	Limit int
}

// RedisStore keeps events in Redis sorted sets scored by timestamp: one
// global set plus one set per (account, type).
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore creates a RedisStore on redisClient.
func NewRedisStore(redisClient redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func accountKey(accountID string, t Type) string {
	return accountPrefix + accountID + ":" + string(t)
}

// Append stores event and returns it with its assigned ID.
func (s *RedisStore) Append(ctx context.Context, event Event) (Event, error) {
	if !event.Type.Valid() {
		return event, fmt.Errorf("%w: type %q", ErrInvalidEvent, event.Type)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		id, err := ulid.New(ulid.Timestamp(event.Timestamp), ulid.DefaultEntropy())
		if err != nil {
			return event, err
		}
		event.ID = id.String()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return event, err
	}
	member := redis.Z{Score: float64(event.Timestamp.UnixMilli()), Member: payload}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, globalKey, member)
		if event.AccountID != "" {
			pipe.ZAdd(ctx, accountKey(event.AccountID, event.Type), member)
		}
		return nil
	})
	if err != nil {
		return event, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return event, nil
}

// Query returns events matching q, newest first.
func (s *RedisStore) Query(ctx context.Context, q Query) ([]Event, error) {
	key := globalKey
	if q.AccountID != "" {
		if !q.Type.Valid() {
			return nil, fmt.Errorf("%w: account queries need a type", ErrInvalidEvent)
		}
		key = accountKey(q.AccountID, q.Type)
	}

	rng := &redis.ZRangeBy{Min: minScore(q.Since), Max: "+inf"}
	// Global queries filter by type after the fetch, so the limit is applied
	// post-filter.
	if q.Limit > 0 && (q.AccountID != "" || q.Type == "") {
		rng.Count = int64(q.Limit)
	}

	raw, err := s.redis.ZRevRangeByScore(ctx, key, rng).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			continue
		}
		if q.Type != "" && ev.Type != q.Type {
			continue
		}
		events = append(events, ev)
		if q.Limit > 0 && len(events) >= q.Limit {
			break
		}
	}
	return events, nil
}

// Count returns how many events of type t accountID has at or after since.
func (s *RedisStore) Count(ctx context.Context, accountID string, t Type, since time.Time) (int64, error) {
	n, err := s.redis.ZCount(ctx, accountKey(accountID, t), minScore(since), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

func minScore(since time.Time) string {
	if since.IsZero() {
		return "-inf"
	}
	return strconv.FormatInt(since.UnixMilli(), 10)
}
