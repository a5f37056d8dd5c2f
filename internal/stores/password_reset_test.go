package stores

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResetStore(t *testing.T) (*miniredis.Miniredis, *PasswordResetStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewPasswordResetStore(rdb)
}

func TestIssueAndGet(t *testing.T) {
	_, s := newTestResetStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.Issue(ctx, "acct-1", "d1", now, time.Hour))

	rec, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", rec.AccountID)
	assert.False(t, rec.Used)
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), rec.ExpiresAt.UnixMilli())
	assert.Equal(t, now.UnixMilli(), rec.CreatedAt.UnixMilli())
	assert.True(t, rec.UsedAt.IsZero())
}

func TestIssueInvalidatesPrevious(t *testing.T) {
	mr, s := newTestResetStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Issue(ctx, "acct-1", "d1", now, time.Hour))
	require.NoError(t, s.Issue(ctx, "acct-1", "d2", now, time.Hour))

	_, err := s.Get(ctx, "d1")
	require.ErrorIs(t, err, ErrResetNotFound)
	_, err = s.Get(ctx, "d2")
	require.NoError(t, err)

	members, err := mr.Members("apra:acct-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, members)
}

func TestConsumeOnce(t *testing.T) {
	_, s := newTestResetStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Issue(ctx, "acct-1", "d1", now, time.Hour))

	id, err := s.Consume(ctx, "d1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "acct-1", id)

	rec, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, rec.Used)
	assert.Equal(t, now.Add(time.Minute).UnixMilli(), rec.UsedAt.UnixMilli())

	_, err = s.Consume(ctx, "d1", now.Add(2*time.Minute))
	require.ErrorIs(t, err, ErrResetUsed)
}

func TestConsumeExpired(t *testing.T) {
	_, s := newTestResetStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Issue(ctx, "acct-1", "d1", now, time.Hour))

	_, err := s.Consume(ctx, "d1", now.Add(time.Hour))
	require.ErrorIs(t, err, ErrResetExpired)
}

func TestConsumeUnknown(t *testing.T) {
	_, s := newTestResetStore(t)
	_, err := s.Consume(context.Background(), "missing", time.Now())
	require.ErrorIs(t, err, ErrResetNotFound)
}

func TestConcurrentConsumeSingleWinner(t *testing.T) {
	_, s := newTestResetStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Issue(ctx, "acct-1", "d1", now, time.Hour))

	const workers = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Consume(ctx, "d1", now)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, ErrResetUsed) {
				losses++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, losses)
}

func TestInvalidateAll(t *testing.T) {
	mr, s := newTestResetStore(t)
	ctx := context.Background()
	require.NoError(t, s.Issue(ctx, "acct-1", "d1", time.Now(), time.Hour))

	require.NoError(t, s.InvalidateAll(ctx, "acct-1"))
	assert.False(t, mr.Exists("aprt:d1"))
	assert.False(t, mr.Exists("apra:acct-1"))
}

func TestRecordsExpireWithTTL(t *testing.T) {
	mr, s := newTestResetStore(t)
	ctx := context.Background()
	require.NoError(t, s.Issue(ctx, "acct-1", "d1", time.Now(), time.Hour))

	mr.FastForward(61 * time.Minute)
	_, err := s.Get(ctx, "d1")
	require.ErrorIs(t, err, ErrResetNotFound)
}
