package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealevel-monitor/dashboard/services/api/observability"
	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

type payload struct {
	Level string  `json:"level"`
	Value float64 `json:"value"`
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (failingBackend) Delete(context.Context, string) error { return nil }

func (failingBackend) Close() error { return nil }

func TestManager_PutGetRoundTrip(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	m := NewManager[payload](NewMemoryBackend(MemoryOptions{}), nil, discard, metrics)
	ctx := context.Background()

	_, ok := m.Get(ctx, "plan")
	assert.False(t, ok)

	m.Put(ctx, "plan", sealevel.LevelDaily, payload{Level: "daily", Value: 0.318})

	got, ok := m.Get(ctx, "plan")
	require.True(t, ok)
	assert.Equal(t, payload{Level: "daily", Value: 0.318}, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")))
}

func TestManager_TTLDependsOnLevel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewManager[payload](NewMemoryBackend(MemoryOptions{Clock: clock}), DefaultTTLs(), discard, observability.NewMetricsForTesting())
	ctx := context.Background()

	m.Put(ctx, "raw", sealevel.LevelRaw, payload{Level: "raw"})
	m.Put(ctx, "weekly", sealevel.LevelWeekly, payload{Level: "weekly"})

	clock.Advance(2 * time.Minute)

	_, ok := m.Get(ctx, "raw")
	assert.False(t, ok)
	_, ok = m.Get(ctx, "weekly")
	assert.True(t, ok)

	clock.Advance(6 * time.Hour)
	_, ok = m.Get(ctx, "weekly")
	assert.False(t, ok)
}

func TestDefaultTTLs_NonDecreasingWithCoarseness(t *testing.T) {
	ttls := DefaultTTLs()
	for i := 1; i < len(sealevel.Levels); i++ {
		assert.GreaterOrEqual(t, ttls[sealevel.Levels[i]], ttls[sealevel.Levels[i-1]])
	}
}

func TestManager_FailsOpen(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	m := NewManager[payload](failingBackend{}, nil, discard, metrics)
	ctx := context.Background()

	m.Put(ctx, "k", sealevel.LevelRaw, payload{})
	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)

	v, hit, err := m.Load(ctx, "k", sealevel.LevelRaw, func(context.Context) (payload, error) {
		return payload{Value: 1}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1.0, v.Value)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheErrors.WithLabelValues("get")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheErrors.WithLabelValues("set")))
}

func TestManager_LoadCachesResult(t *testing.T) {
	m := NewManager[payload](NewMemoryBackend(MemoryOptions{}), nil, discard, observability.NewMetricsForTesting())
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) (payload, error) {
		calls++
		return payload{Value: 0.5}, nil
	}

	_, hit, err := m.Load(ctx, "k", sealevel.LevelHourly, fn)
	require.NoError(t, err)
	assert.False(t, hit)

	v, hit, err := m.Load(ctx, "k", sealevel.LevelHourly, fn)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 0.5, v.Value)
	assert.Equal(t, 1, calls)
}

func TestManager_LoadDoesNotCacheErrors(t *testing.T) {
	m := NewManager[payload](NewMemoryBackend(MemoryOptions{}), nil, discard, observability.NewMetricsForTesting())
	ctx := context.Background()
	boom := errors.New("store down")

	_, _, err := m.Load(ctx, "k", sealevel.LevelRaw, func(context.Context) (payload, error) {
		return payload{}, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestManager_LoadCoalescesConcurrentMisses(t *testing.T) {
	m := NewManager[payload](NewMemoryBackend(MemoryOptions{}), nil, discard, observability.NewMetricsForTesting())
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (payload, error) {
		calls.Add(1)
		<-release
		return payload{Value: 2}, nil
	}

	const n = 8
	var wg sync.WaitGroup
	var started sync.WaitGroup
	started.Add(n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			v, _, err := m.Load(ctx, "same", sealevel.LevelDaily, fn)
			assert.NoError(t, err)
			assert.Equal(t, 2.0, v.Value)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestManager_LoadWaiterRecomputesAfterLeaderDeadline(t *testing.T) {
	m := NewManager[payload](NewMemoryBackend(MemoryOptions{}), nil, discard, observability.NewMetricsForTesting())

	var calls atomic.Int32
	fn := func(ctx context.Context) (payload, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return payload{}, ctx.Err()
		}
		return payload{Value: 3}, nil
	}

	leaderCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	leaderDone := make(chan error, 1)
	go func() {
		_, _, err := m.Load(leaderCtx, "same", sealevel.LevelDaily, fn)
		leaderDone <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	v, hit, err := m.Load(context.Background(), "same", sealevel.LevelDaily, fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3.0, v.Value)
	assert.ErrorIs(t, <-leaderDone, context.DeadlineExceeded)
	assert.Equal(t, int32(2), calls.Load())
}

func TestManager_LoadDoesNotRetryOwnTimeout(t *testing.T) {
	m := NewManager[payload](NewMemoryBackend(MemoryOptions{}), nil, discard, observability.NewMetricsForTesting())

	var calls atomic.Int32
	_, _, err := m.Load(context.Background(), "k", sealevel.LevelDaily, func(context.Context) (payload, error) {
		calls.Add(1)
		return payload{}, fmt.Errorf("read: %w", context.DeadlineExceeded)
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnavailableError_Unwraps(t *testing.T) {
	inner := errors.New("timeout")
	err := error(&UnavailableError{Op: "get", Key: "k", Err: inner})
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "cache get k")
}
