package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/crisisfeed/internal/observability"
)

func newTestMemo(t *testing.T) (*Memo, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 2, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMemo(NewMemoryCache(time.Hour, time.Hour), clock, logger, observability.NewMetricsForTesting()), clock
}

func counter(n *int) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) {
		*n++
		return []string{"a", "b"}, nil
	}
}

func TestGetOrCompute_RoundTrip(t *testing.T) {
	ctx := context.Background()
	memo, clock := newTestMemo(t)
	calls := 0

	v, fromCache, err := GetOrCompute(ctx, memo, "svc:op:x", "updates", 10*time.Minute, counter(&calls))
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, []string{"a", "b"}, v)

	clock.Advance(9 * time.Minute)
	v, fromCache, err = GetOrCompute(ctx, memo, "svc:op:x", "updates", 10*time.Minute, counter(&calls))
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, []string{"a", "b"}, v)
	assert.Equal(t, 1, calls, "compute runs once within ttl")

	clock.Advance(2 * time.Minute)
	_, fromCache, err = GetOrCompute(ctx, memo, "svc:op:x", "updates", 10*time.Minute, counter(&calls))
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 2, calls, "compute runs again after ttl")
}

func TestGetOrCompute_HitCount(t *testing.T) {
	ctx := context.Background()
	memo, _ := newTestMemo(t)
	calls := 0

	for i := 0; i < 4; i++ {
		_, _, err := GetOrCompute(ctx, memo, "k", "updates", time.Minute, counter(&calls))
		require.NoError(t, err)
	}

	entry, ok := memo.Lookup(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 4, entry.HitCount, "three hits above plus this lookup")
	assert.Equal(t, "updates", entry.Source)
}

func TestGetOrCompute_ErrorPropagates(t *testing.T) {
	ctx := context.Background()
	memo, _ := newTestMemo(t)
	boom := errors.New("boom")

	_, _, err := GetOrCompute(ctx, memo, "k", "updates", time.Minute, func(context.Context) ([]string, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := memo.Lookup(ctx, "k")
	assert.False(t, ok, "failures are not cached")
}

func TestGetOrCompute_NilNotStored(t *testing.T) {
	ctx := context.Background()
	memo, _ := newTestMemo(t)
	calls := 0

	compute := func(context.Context) ([]string, error) {
		calls++
		return nil, nil
	}
	for i := 0; i < 2; i++ {
		v, fromCache, err := GetOrCompute(ctx, memo, "k", "updates", time.Minute, compute)
		require.NoError(t, err)
		assert.Nil(t, v)
		assert.False(t, fromCache)
	}
	assert.Equal(t, 2, calls)
}

func TestGetOrCompute_EmptyListIsStored(t *testing.T) {
	ctx := context.Background()
	memo, _ := newTestMemo(t)
	calls := 0

	compute := func(context.Context) ([]string, error) {
		calls++
		return []string{}, nil
	}
	for i := 0; i < 2; i++ {
		_, _, err := GetOrCompute(ctx, memo, "k", "updates", time.Minute, compute)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

func TestMemo_InvalidateSource(t *testing.T) {
	ctx := context.Background()
	memo, _ := newTestMemo(t)

	require.NoError(t, memo.Store(ctx, "updates:a", "updates", 1, time.Minute))
	require.NoError(t, memo.Store(ctx, "updates:b", "updates", 2, time.Minute))
	require.NoError(t, memo.Store(ctx, "posts:a", "posts", 3, time.Minute))

	removed, err := memo.InvalidateSource(ctx, "updates")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok := memo.Lookup(ctx, "updates:a")
	assert.False(t, ok)
	_, ok = memo.Lookup(ctx, "posts:a")
	assert.True(t, ok)
}

func TestMemo_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCache(time.Hour, time.Hour)
	memo := NewMemo(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	require.NoError(t, store.Set(ctx, "k", []byte("not json"), time.Minute))
	_, ok := memo.Lookup(ctx, "k")
	assert.False(t, ok)

	_, found := store.Get(ctx, "k")
	assert.False(t, found, "corrupt entry is removed")
}

func TestGetOrCompute_Concurrent(t *testing.T) {
	ctx := context.Background()
	memo, _ := newTestMemo(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := GetOrCompute(ctx, memo, "k", "updates", time.Minute, func(context.Context) ([]string, error) {
				return []string{"x"}, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, []string{"x"}, v)
		}()
	}
	wg.Wait()
}
