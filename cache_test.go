package blockcache_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/blockstore"
	"github.com/hupe1980/blockcache/testutil"
)

const testBlockSize = 64

type fixture struct {
	mem   *blockstore.MemoryStore
	count *blockstore.CountingStore
	fault *blockstore.FaultyStore
	cache *blockcache.Cache
}

// newFixture stacks cache -> counting -> faulty -> memory.
func newFixture(t *testing.T, capacity int, opts ...blockcache.Option) *fixture {
	t.Helper()

	mem := blockstore.NewMemoryStore(testBlockSize, 0)
	fault := blockstore.NewFaultyStore(mem)
	count := blockstore.NewCountingStore(fault)

	c, err := blockcache.New(capacity, count, opts...)
	require.NoError(t, err)

	return &fixture{mem: mem, count: count, fault: fault, cache: c}
}

func block(b byte) []byte {
	return bytes.Repeat([]byte{b}, testBlockSize)
}

func TestNew_Validation(t *testing.T) {
	store := blockstore.NewMemoryStore(testBlockSize, 0)

	_, err := blockcache.New(0, store)
	assert.ErrorIs(t, err, blockcache.ErrInvalidCapacity)

	_, err = blockcache.New(-3, store)
	assert.ErrorIs(t, err, blockcache.ErrInvalidCapacity)

	_, err = blockcache.New(4, nil)
	assert.ErrorIs(t, err, blockcache.ErrNilStore)

	c, err := blockcache.New(4, store)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Capacity())
	assert.Equal(t, testBlockSize, c.BlockSize())
	assert.Equal(t, 0, c.Len())
}

func TestRead_MissThenHit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)
	require.NoError(t, f.mem.WriteBlock(ctx, 3, block('s')))

	got, err := f.cache.Read(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, block('s'), got)
	assert.Equal(t, 1, f.count.ReadsOf(3))

	got, err = f.cache.Read(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, block('s'), got)
	assert.Equal(t, 1, f.count.ReadsOf(3), "second read is served from memory")

	stats := f.cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRatio(), 1e-9)
	assert.Empty(t, f.cache.Dirty(), "miss fills are clean")
}

func TestRead_ReturnsPrivateCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	require.NoError(t, f.cache.Write(ctx, 1, block('a')))

	got, err := f.cache.Read(ctx, 1)
	require.NoError(t, err)
	got[0] = 'z'

	again, err := f.cache.Read(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, block('a'), again)
}

func TestWrite_InvalidLength(t *testing.T) {
	f := newFixture(t, 2)

	err := f.cache.Write(context.Background(), 1, []byte("short"))
	assert.ErrorIs(t, err, blockcache.ErrInvalidBlockSize)
	assert.Equal(t, 0, f.cache.Len())
}

func TestWrite_CallerBufferNotRetained(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	buf := block('a')
	require.NoError(t, f.cache.Write(ctx, 1, buf))
	buf[0] = 'z'

	got, err := f.cache.Read(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, block('a'), got)
}

func TestCapacityInvariant(t *testing.T) {
	ctx := context.Background()
	const capacity = 8
	f := newFixture(t, capacity)
	rng := testutil.NewRNG(99)

	for i := range 2000 {
		id := rng.Uint64n(32)
		if rng.Float64() < 0.4 {
			require.NoError(t, f.cache.Write(ctx, id, testutil.PatternBlock(id, uint64(i), testBlockSize)))
		} else {
			_, err := f.cache.Read(ctx, id)
			require.NoError(t, err)
		}
		require.LessOrEqual(t, f.cache.Len(), capacity)
	}
	assert.Equal(t, capacity, f.cache.Len())
}

func TestHitCorrectness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)

	want := testutil.NewRNG(7).Block(testBlockSize)
	require.NoError(t, f.cache.Write(ctx, 11, want))

	got, err := f.cache.Read(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(0), f.count.Reads())
}

func TestLRUEvictionOrder(t *testing.T) {
	ctx := context.Background()
	const capacity = 4
	f := newFixture(t, capacity)

	for id := range blockcache.BlockID(capacity + 1) {
		_, err := f.cache.Read(ctx, id)
		require.NoError(t, err)
	}
	assert.False(t, f.cache.Contains(0))
	for id := blockcache.BlockID(1); id <= capacity; id++ {
		assert.True(t, f.cache.Contains(id))
	}

	_, err := f.cache.Read(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, f.count.ReadsOf(0), "block 0 was least recently used and had to be refetched")
	assert.False(t, f.cache.Contains(1), "block 1 became the next victim")
}

func TestLRU_AccessRefreshesRecency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	for _, id := range []blockcache.BlockID{1, 2, 3} {
		_, err := f.cache.Read(ctx, id)
		require.NoError(t, err)
	}
	_, err := f.cache.Read(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.cache.Write(ctx, 2, block('w')))

	_, err = f.cache.Read(ctx, 4)
	require.NoError(t, err)

	assert.True(t, f.cache.Contains(1))
	assert.True(t, f.cache.Contains(2))
	assert.False(t, f.cache.Contains(3))
}

func TestWriteBack_NotWriteThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	_, err := f.cache.Read(ctx, 1)
	require.NoError(t, err)
	for i := range 10 {
		require.NoError(t, f.cache.Write(ctx, 1, block(byte('a'+i))))
	}
	assert.Equal(t, int64(0), f.count.Writes())
	assert.Equal(t, []blockcache.BlockID{1}, f.cache.Dirty())

	require.NoError(t, f.cache.Write(ctx, 2, block('x')))
	require.NoError(t, f.cache.Write(ctx, 3, block('y')))

	assert.Equal(t, 1, f.count.WritesOf(1), "eviction writes the latest contents once")
	assert.Equal(t, block('j'), f.mem.Block(1))
}

func TestFlushClearsDirtyState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	for _, id := range []blockcache.BlockID{1, 2, 3} {
		require.NoError(t, f.cache.Write(ctx, id, block(byte(id))))
	}
	require.NoError(t, f.cache.FlushAll(ctx))
	assert.Equal(t, int64(3), f.count.Writes())
	assert.Empty(t, f.cache.Dirty())
	assert.Equal(t, 3, f.cache.Len(), "flush keeps entries resident")

	for _, id := range []blockcache.BlockID{4, 5, 6} {
		_, err := f.cache.Read(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), f.count.Writes(), "evicting flushed blocks writes nothing")

	stats := f.cache.Stats()
	assert.Equal(t, int64(3), stats.Evictions)
	assert.Equal(t, int64(0), stats.DirtyEvictions)
	assert.Equal(t, int64(3), stats.FlushedBlocks)
}

func TestFlushAll_Empty(t *testing.T) {
	f := newFixture(t, 2)

	require.NoError(t, f.cache.FlushAll(context.Background()))
	assert.Equal(t, int64(0), f.count.Writes())
}

func TestNoDataLossOnEviction(t *testing.T) {
	ctx := context.Background()
	const capacity = 4
	f := newFixture(t, capacity)
	rng := testutil.NewRNG(3)

	want := make(map[blockcache.BlockID][]byte)
	for id := range blockcache.BlockID(16) {
		data := rng.Block(testBlockSize)
		want[id] = data
		require.NoError(t, f.cache.Write(ctx, id, data))
	}

	for id := range blockcache.BlockID(16 - capacity) {
		assert.Equal(t, want[id], f.mem.Block(id), "block %d persisted on eviction", id)
	}
	for id, data := range want {
		got, err := f.cache.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, data, got, "block %d", id)
	}
}

func TestScenario_CapacityTwo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	a, b, c := block('A'), block('B'), block('C')

	require.NoError(t, f.cache.Write(ctx, 0, a))
	require.NoError(t, f.cache.Write(ctx, 1, b))
	require.NoError(t, f.cache.Write(ctx, 2, c))

	assert.False(t, f.cache.Contains(0), "oldest block evicted")
	assert.Equal(t, a, f.mem.Block(0))
	assert.Equal(t, 1, f.count.WritesOf(0))

	got, err := f.cache.Read(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, a, got)
	assert.Equal(t, 1, f.count.ReadsOf(0))

	// Refilling block 0 evicted block 1, so B now comes from the store.
	got, err = f.cache.Read(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.Equal(t, b, f.mem.Block(1))

	got, err = f.cache.Read(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, c, f.mem.Block(2))

	assert.LessOrEqual(t, f.cache.Len(), 2)
}

func TestScenario_CapacityTwo_HitsBeforeRefill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	require.NoError(t, f.cache.Write(ctx, 0, block('A')))
	require.NoError(t, f.cache.Write(ctx, 1, block('B')))
	require.NoError(t, f.cache.Write(ctx, 2, block('C')))

	for id, want := range map[blockcache.BlockID][]byte{1: block('B'), 2: block('C')} {
		got, err := f.cache.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, int64(0), f.count.Reads(), "blocks 1 and 2 are hits")
	assert.Equal(t, int64(2), f.cache.Stats().Hits)
}

func TestScenario_CapacityOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	x := block('X')

	require.NoError(t, f.cache.Write(ctx, 5, x))
	require.NoError(t, f.cache.FlushAll(ctx))

	assert.Equal(t, x, f.mem.Block(5))
	assert.True(t, f.cache.Contains(5))
	assert.Empty(t, f.cache.Dirty())

	got, err := f.cache.Read(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, x, got)
	assert.Equal(t, int64(0), f.count.Reads())
	assert.Equal(t, int64(1), f.count.Writes())
}

func TestEvict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)

	require.NoError(t, f.cache.Write(ctx, 1, block('d')))
	_, err := f.cache.Read(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, f.cache.Evict(ctx, 1))
	assert.Equal(t, block('d'), f.mem.Block(1))
	assert.False(t, f.cache.Contains(1))

	require.NoError(t, f.cache.Evict(ctx, 2))
	assert.Equal(t, 1, int(f.count.Writes()), "clean block dropped without a write")

	assert.ErrorIs(t, f.cache.Evict(ctx, 2), blockcache.ErrNotFound)
}

func TestMetricsCollector(t *testing.T) {
	ctx := context.Background()
	metrics := &blockcache.BasicMetricsCollector{}
	f := newFixture(t, 1, blockcache.WithMetricsCollector(metrics))

	require.NoError(t, f.cache.Write(ctx, 1, block('a')))
	_, err := f.cache.Read(ctx, 1)
	require.NoError(t, err)
	_, err = f.cache.Read(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, f.cache.FlushAll(ctx))

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.ReadCount)
	assert.Equal(t, int64(1), stats.ReadHits)
	assert.Equal(t, int64(1), stats.ReadMisses)
	assert.Equal(t, int64(1), stats.WriteCount)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(1), stats.DirtyEvictions)
	assert.Equal(t, int64(1), stats.FlushCount)
	assert.Equal(t, int64(0), stats.FlushedBlocks)
	assert.InDelta(t, 0.5, stats.HitRatio(), 1e-9)
}
