package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainVerify treats the stored hash as "h:"+plaintext so tests stay fast.
func plainVerify(plaintext, encoded string) (bool, error) {
	return encoded == "h:"+plaintext, nil
}

func newTestStore(t *testing.T, retention int) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisStore(rdb, retention)
}

func TestLastFiveRejectedSixthAllowed(t *testing.T) {
	_, store := newTestStore(t, 24)
	e := NewEnforcer(store, plainVerify, 5)
	ctx := context.Background()
	now := time.Now()

	// p0 is the oldest, p5 the newest.
	for i := 0; i <= 5; i++ {
		require.NoError(t, e.Record(ctx, "acct", fmt.Sprintf("h:p%d", i), now.Add(time.Duration(i)*time.Minute)))
	}

	for i := 1; i <= 5; i++ {
		used, err := e.WasRecentlyUsed(ctx, "acct", fmt.Sprintf("p%d", i))
		require.NoError(t, err)
		assert.Truef(t, used, "p%d is within the last five", i)
	}

	used, err := e.WasRecentlyUsed(ctx, "acct", "p0")
	require.NoError(t, err)
	assert.False(t, used, "sixth most recent password may be reused")
}

func TestRetentionTrimsList(t *testing.T) {
	mr, store := newTestStore(t, 3)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, store.AppendHash(ctx, "acct", fmt.Sprintf("h:%d", i), time.Now()))
	}

	items, err := mr.List("aph:acct")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	hashes, err := store.RecentHashes(ctx, "acct", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"h:9", "h:8", "h:7"}, hashes)
}

func TestEmptyHistory(t *testing.T) {
	_, store := newTestStore(t, 24)
	e := NewEnforcer(store, plainVerify, 5)

	used, err := e.WasRecentlyUsed(context.Background(), "nobody", "anything")
	require.NoError(t, err)
	assert.False(t, used)
	require.NoError(t, e.Record(context.Background(), "nobody", "", time.Now()))
}

func TestVerifyErrorsSkipEntry(t *testing.T) {
	_, store := newTestStore(t, 24)
	calls := 0
	e := NewEnforcer(store, func(p, h string) (bool, error) {
		calls++
		if h == "broken" {
			return false, fmt.Errorf("unknown scheme")
		}
		return h == "h:"+p, nil
	}, 5)
	ctx := context.Background()
	require.NoError(t, store.AppendHash(ctx, "acct", "h:old", time.Now()))
	require.NoError(t, store.AppendHash(ctx, "acct", "broken", time.Now()))

	used, err := e.WasRecentlyUsed(ctx, "acct", "old")
	require.NoError(t, err)
	assert.True(t, used)
	assert.Equal(t, 2, calls)
}

func TestHistoryRedisDown(t *testing.T) {
	mr, store := newTestStore(t, 24)
	mr.Close()
	e := NewEnforcer(store, plainVerify, 5)

	_, err := e.WasRecentlyUsed(context.Background(), "acct", "x")
	require.ErrorIs(t, err, ErrHistoryUnavailable)
}
