package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testConfig() Config {
	return Config{Window: 15 * time.Minute, Threshold: 5, BlockDuration: 30 * time.Minute}
}

func TestCheckUnknownIdentifierAllowed(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := New(rdb, testConfig())

	d, err := l.Check(context.Background(), "client", time.Now())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.AttemptsRemaining)
	assert.True(t, d.BlockedUntil.IsZero())
}

func TestSixthAttemptBlocked(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := New(rdb, testConfig())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		d, err := l.Check(ctx, "client", now)
		require.NoError(t, err)
		require.Truef(t, d.Allowed, "attempt %d should be allowed", i+1)
		require.NoError(t, l.Record(ctx, "client", false, now))
		now = now.Add(time.Minute)
	}

	d, err := l.Check(ctx, "client", now)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, now.Add(30*time.Minute).UnixMilli(), d.BlockedUntil.UnixMilli())

	// Still blocked just before the deadline, even though the window has passed.
	d, err = l.Check(ctx, "client", now.Add(29*time.Minute))
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = l.Check(ctx, "client", now.Add(31*time.Minute))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.AttemptsRemaining)
}

func TestRemainingCountsDown(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := New(rdb, testConfig())
	ctx := context.Background()
	now := time.Now()

	for _, want := range []int{4, 3, 2} {
		d, err := l.Check(ctx, "client", now)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, want, d.AttemptsRemaining)
	}

	n, err := l.Attempts(ctx, "client")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRecordFailureKeepsReservedCount(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := New(rdb, testConfig())
	ctx := context.Background()
	now := time.Now()

	_, err := l.Check(ctx, "client", now)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, "client", false, now))
	require.NoError(t, l.Record(ctx, "client", false, now))

	n, err := l.Attempts(ctx, "client")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, l.Record(ctx, "other", false, now))
	n, err = l.Attempts(ctx, "other")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWindowElapsedResets(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := New(rdb, testConfig())
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 4; i++ {
		_, err := l.Check(ctx, "client", now)
		require.NoError(t, err)
	}

	later := now.Add(16 * time.Minute)
	d, err := l.Check(ctx, "client", later)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.AttemptsRemaining)

	n, err := l.Attempts(ctx, "client")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSuccessClearsRecord(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := New(rdb, testConfig())
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		_, err := l.Check(ctx, "client", now)
		require.NoError(t, err)
	}
	require.NoError(t, l.Record(ctx, "client", true, now))
	assert.False(t, mr.Exists("arl:client"))
}

func TestCheckSetsExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := New(rdb, testConfig())
	ctx := context.Background()

	_, err := l.Check(ctx, "client", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, mr.TTL("arl:client"))

	mr.SetTTL("arl:client", time.Minute)
	require.NoError(t, l.Record(ctx, "client", false, time.Now()))
	assert.Equal(t, 30*time.Minute, mr.TTL("arl:client"))
}

func TestConcurrentChecksNeverExceedThreshold(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := New(rdb, testConfig())
	ctx := context.Background()
	now := time.Now()

	const callers = 40
	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			d, err := l.Check(ctx, "client", now)
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 5, allowed.Load())
	n, err := l.Attempts(ctx, "client")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestRedisDownFailsClosed(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := New(rdb, testConfig())
	mr.Close()

	_, err := l.Check(context.Background(), "client", time.Now())
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, l.Record(context.Background(), "client", false, time.Now()), ErrStoreUnavailable)
}

func TestIdentifierHidesInputs(t *testing.T) {
	id := Identifier("", "203.0.113.9", "curl/8.0")
	assert.Len(t, id, 64)
	assert.NotContains(t, id, "203.0.113.9")
	assert.NotEqual(t, id, Identifier("", "203.0.113.9", "curl/8.1"))
	assert.NotEqual(t, id, Identifier("pepper", "203.0.113.9", "curl/8.0"))
}

func TestBlockedOnlyAfterThresholdProperty(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var run int

	rapid.Check(t, func(rt *rapid.T) {
		threshold := rapid.IntRange(1, 10).Draw(rt, "threshold")
		failures := rapid.IntRange(0, 15).Draw(rt, "failures")
		run++
		id := "prop-" + time.Duration(run).String()
		l := New(rdb, Config{Window: 15 * time.Minute, Threshold: threshold, BlockDuration: 30 * time.Minute})

		now := base
		for i := 0; i < failures; i++ {
			d, err := l.Check(ctx, id, now)
			if err != nil {
				rt.Fatalf("check: %v", err)
			}
			if !d.Allowed {
				if i < threshold {
					rt.Fatalf("blocked after %d failures with threshold %d", i, threshold)
				}
				return
			}
			if err := l.Record(ctx, id, false, now); err != nil {
				rt.Fatalf("record: %v", err)
			}
			now = now.Add(10 * time.Second)
		}

		d, err := l.Check(ctx, id, now)
		if err != nil {
			rt.Fatalf("check: %v", err)
		}
		if d.Allowed != (failures < threshold) {
			rt.Fatalf("failures=%d threshold=%d allowed=%v", failures, threshold, d.Allowed)
		}
	})
}
