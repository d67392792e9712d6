package blockcache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/testutil"
)

// Each worker owns a disjoint range of blocks, so it knows exactly what
// every read must return even while others force evictions.
func TestConcurrent_DisjointOwners(t *testing.T) {
	ctx := context.Background()
	const (
		workers   = 8
		perWorker = 6
		capacity  = 10
		ops       = 400
	)
	f := newFixture(t, capacity, blockcache.WithFlushConcurrency(3))
	f.fault.SetDelay(50 * time.Microsecond)

	var g errgroup.Group
	final := make([]map[blockcache.BlockID]uint64, workers)
	for w := range workers {
		g.Go(func() error {
			rng := testutil.NewRNG(int64(w))
			last := make(map[blockcache.BlockID]uint64)
			base := blockcache.BlockID(w * perWorker)

			for i := 1; i <= ops; i++ {
				id := base + rng.Uint64n(perWorker)
				switch {
				case rng.Float64() < 0.5:
					if err := f.cache.Write(ctx, id, testutil.PatternBlock(id, uint64(i), testBlockSize)); err != nil {
						return err
					}
					last[id] = uint64(i)
				case rng.Float64() < 0.05:
					if err := f.cache.FlushAll(ctx); err != nil {
						return err
					}
				default:
					got, err := f.cache.Read(ctx, id)
					if err != nil {
						return err
					}
					gen, written := last[id]
					if !written {
						assert.Equal(t, make([]byte, testBlockSize), got, "block %d never written", id)
						continue
					}
					gotID, gotGen, ok := testutil.DecodePattern(got)
					assert.True(t, ok, "block %d payload", id)
					assert.Equal(t, id, gotID)
					assert.Equal(t, gen, gotGen, "block %d returned stale data", id)
				}
				assert.LessOrEqual(t, f.cache.Len(), capacity)
			}
			final[w] = last
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, f.cache.Close(ctx))
	for _, last := range final {
		for id, gen := range last {
			assert.Equal(t, testutil.PatternBlock(id, gen, testBlockSize), f.mem.Block(id), "block %d", id)
		}
	}
}

// Readers racing a writer on the same block must never observe the block
// going back in time, even while a second block keeps evicting it.
func TestConcurrent_ReadersNeverSeeOlderData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.fault.SetDelay(20 * time.Microsecond)

	const gens = 300
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for gen := uint64(1); gen <= gens; gen++ {
			assert.NoError(t, f.cache.Write(ctx, 0, testutil.PatternBlock(0, gen, testBlockSize)))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			_, err := f.cache.Read(ctx, 1)
			assert.NoError(t, err)
		}
	}()

	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var seen uint64
			for {
				select {
				case <-done:
					return
				default:
				}
				got, err := f.cache.Read(ctx, 0)
				if !assert.NoError(t, err) {
					return
				}
				_, gen, ok := testutil.DecodePattern(got)
				if !ok {
					gen = 0
				}
				assert.GreaterOrEqual(t, gen, seen)
				seen = gen
			}
		}()
	}
	wg.Wait()

	got, err := f.cache.Read(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, testutil.PatternBlock(0, gens, testBlockSize), got)
	require.NoError(t, f.cache.Close(ctx))
}

func TestConcurrent_SharedMissSurvivesCallerCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)
	f.fault.SetDelay(100 * time.Millisecond)
	require.NoError(t, f.mem.WriteBlock(ctx, 9, block('m')))

	firstCtx, cancel := context.WithCancel(ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.cache.Read(firstCtx, 9)
		firstErr <- err
	}()
	require.Eventually(t, func() bool {
		return f.count.ReadsOf(9) == 1
	}, time.Second, time.Millisecond)

	type result struct {
		data []byte
		err  error
	}
	second := make(chan result, 1)
	go func() {
		data, err := f.cache.Read(ctx, 9)
		second <- result{data, err}
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	err := <-firstErr
	assert.ErrorIs(t, err, blockcache.ErrStoreReadFailed)
	assert.ErrorIs(t, err, context.Canceled)

	res := <-second
	require.NoError(t, res.err, "another caller's cancellation must not fail this read")
	assert.Equal(t, block('m'), res.data)
	assert.Equal(t, 1, f.count.ReadsOf(9), "one shared store read")
	assert.True(t, f.cache.Contains(9))
}

func TestConcurrent_SharedMissFill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)
	f.fault.SetDelay(20 * time.Millisecond)
	require.NoError(t, f.mem.WriteBlock(ctx, 9, block('m')))

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			got, err := f.cache.Read(ctx, 9)
			if err == nil {
				assert.Equal(t, block('m'), got)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, f.cache.Len())
	assert.LessOrEqual(t, f.count.ReadsOf(9), 8)
	assert.GreaterOrEqual(t, f.count.ReadsOf(9), 1)
}
