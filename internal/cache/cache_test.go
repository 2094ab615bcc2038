package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New(10, map[EntryType]time.Duration{EntryRetrieval: time.Minute})
	var calls int32

	compute := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	v1, err := c.GetOrCompute(context.Background(), EntryRetrieval, "k1", compute)
	require.NoError(t, err)
	require.Equal(t, "value", v1)

	v2, err := c.GetOrCompute(context.Background(), EntryRetrieval, "k1", compute)
	require.NoError(t, err)
	require.Equal(t, "value", v2)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call must hit the cache, not recompute")
}

func TestGetOrComputeExpiresPastTTL(t *testing.T) {
	c := New(10, map[EntryType]time.Duration{EntryRetrieval: 10 * time.Millisecond})
	var calls int32
	compute := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	_, err := c.GetOrCompute(context.Background(), EntryRetrieval, "k1", compute)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = c.GetOrCompute(context.Background(), EntryRetrieval, "k1", compute)
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls), "expired entry must recompute")
}

func TestLRUEvictsOldestBeyondMaxEntries(t *testing.T) {
	c := New(2, map[EntryType]time.Duration{EntryRetrieval: time.Minute})
	noop := func(v any) func(context.Context) (any, error) {
		return func(context.Context) (any, error) { return v, nil }
	}

	_, _ = c.GetOrCompute(context.Background(), EntryRetrieval, "a", noop("a"))
	_, _ = c.GetOrCompute(context.Background(), EntryRetrieval, "b", noop("b"))
	_, _ = c.GetOrCompute(context.Background(), EntryRetrieval, "c", noop("c"))

	require.Equal(t, 2, c.Snapshot().Entries)

	var aRecomputed int32
	_, _ = c.GetOrCompute(context.Background(), EntryRetrieval, "a", func(context.Context) (any, error) {
		atomic.AddInt32(&aRecomputed, 1)
		return "a2", nil
	})
	require.Equal(t, int32(1), aRecomputed, "a should have been evicted as least recently used")
}

func TestGetOrComputeSingleflightsConcurrentCalls(t *testing.T) {
	c := New(10, map[EntryType]time.Duration{EntryRetrieval: time.Minute})
	var calls int32

	compute := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrCompute(context.Background(), EntryRetrieval, "shared", compute)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent calls for the same key must compute at most once")
}

func TestSnapshotReportsEntryCount(t *testing.T) {
	c := New(10, map[EntryType]time.Duration{EntryContext: time.Minute})
	require.Equal(t, 0, c.Snapshot().Entries)

	_, _ = c.GetOrCompute(context.Background(), EntryContext, "x", func(context.Context) (any, error) { return 1, nil })
	require.Equal(t, 1, c.Snapshot().Entries)
}
