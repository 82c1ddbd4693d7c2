package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omni/points-indexer/cache"
)

func TestReadThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var calls int32
	errOdd := errors.New("odd")
	c := cache.NewReadThrough[int, int](0, func(_ context.Context, key int) (int, error) {
		atomic.AddInt32(&calls, 1)
		if key%2 == 1 {
			return 0, errOdd
		}
		return key * 10, nil
	})

	for i := 0; i < 3; i++ {
		v, err := c.Get(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, 20, v)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err := c.Get(ctx, 3)
	require.ErrorIs(t, err, errOdd)
	require.Equal(t, 1, c.Len())

	c.Invalidate(2)
	require.Equal(t, 0, c.Len())
	_, err = c.Get(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestReadThrough_TTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var calls int32
	c := cache.NewReadThrough[string, int32](time.Millisecond, func(_ context.Context, _ string) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	})
	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int32(1), v)

	time.Sleep(5 * time.Millisecond)
	c.Purge()
	require.Equal(t, 0, c.Len())

	v, err = c.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int32(2), v)
}

func TestReadThrough_EvictsExpiredOnWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.NewReadThrough[int, int](24*time.Hour, func(_ context.Context, key int) (int, error) {
		return key, nil
	})
	c.SetClock(func() time.Time { return now })

	for i := 0; i < 10000; i++ {
		_, err := c.Get(ctx, i)
		require.NoError(t, err)
	}
	require.Equal(t, 10000, c.Len())

	now = now.Add(48 * time.Hour)
	for i := 10000; i < 10010; i++ {
		_, err := c.Get(ctx, i)
		require.NoError(t, err)
	}
	require.Equal(t, 10, c.Len())
}

func TestCoalescer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var c cache.Coalescer[int]
	var calls int32
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Do(ctx, "key", func(context.Context) (int, error) {
				if atomic.AddInt32(&calls, 1) == 1 {
					close(started)
				}
				<-release
				return 42, nil
			})
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	<-started
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, []int{42, 42, 42, 42, 42}, results)
	require.LessOrEqual(t, atomic.LoadInt32(&calls), int32(5))
	require.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestCoalescer_ContextCancelled(t *testing.T) {
	t.Parallel()

	var c cache.Coalescer[int]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := make(chan struct{})
	defer close(block)
	_, err := c.Do(ctx, "key", func(context.Context) (int, error) {
		<-block
		return 1, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
