package blockcache

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/blockcache/blockstore"
	"github.com/hupe1980/blockcache/internal/table"
)

// BlockID identifies a block by its position in the backing store.
type BlockID = blockstore.BlockID

// Cache is a fixed-capacity write-back block cache over a blockstore.Store.
//
// Reads are served from memory when the block is resident and filled from
// the store otherwise. Writes only touch memory; a dirty block reaches the
// store when it is evicted, flushed or the cache is closed. When the cache
// is full the least recently used block is evicted.
//
// All methods are safe for concurrent use. Store I/O runs without holding
// the cache lock, on private copies of block data.
type Cache struct {
	mu sync.Mutex
	// cond is broadcast whenever a store write of a resident entry finishes.
	cond   *sync.Cond
	table  *table.Table
	closed bool

	store     blockstore.Store
	blockSize int
	// numBlocks bounds valid ids when the store reports a size; 0 means
	// unbounded.
	numBlocks uint64

	// fills tracks blocks with a miss read in flight. Write bumps gen so a
	// fill that started before it does not install stale data.
	fills map[BlockID]*fill
	sf    singleflight.Group

	opts        options
	memReserved int64

	ops sync.WaitGroup
	// stopFlusher is non-nil while the background flusher runs. Guarded by mu.
	stopFlusher chan struct{}
	flusherDone sync.WaitGroup

	hits           atomic.Int64
	misses         atomic.Int64
	writes         atomic.Int64
	evictions      atomic.Int64
	dirtyEvictions atomic.Int64
	flushes        atomic.Int64
	flushedBlocks  atomic.Int64
	flushFailures  atomic.Int64
}

type fill struct {
	refs int
	gen  uint64
}

// New creates a cache holding at most capacity blocks of store.
//
// The cache owns store from here on; Close flushes and closes it.
func New(capacity int, store blockstore.Store, optFns ...Option) (*Cache, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if store.BlockSize() <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, store.BlockSize())
	}

	tbl, err := table.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", err, capacity)
	}

	o := applyOptions(optFns)

	mem := int64(capacity) * int64(store.BlockSize())
	if err := o.rc.AcquireMemory(mem); err != nil {
		return nil, fmt.Errorf("reserve %d bytes for %d blocks (limit %d, in use %d): %w",
			mem, capacity, o.rc.MemoryLimit(), o.rc.MemoryUsage(), err)
	}

	c := &Cache{
		table:       tbl,
		store:       store,
		blockSize:   store.BlockSize(),
		numBlocks:   blockstore.NumBlocks(store),
		fills:       make(map[BlockID]*fill),
		opts:        o,
		memReserved: mem,
	}
	c.cond = sync.NewCond(&c.mu)

	if o.flushInterval > 0 {
		c.startFlusher(o.flushInterval)
	}

	o.logger.Debug("cache created",
		"capacity", capacity,
		"block_size", c.blockSize,
		"flush_interval", o.flushInterval,
	)
	return c, nil
}

// Capacity returns the maximum number of resident blocks.
func (c *Cache) Capacity() int {
	return c.table.Capacity()
}

// BlockSize returns the size of every block in bytes.
func (c *Cache) BlockSize() int {
	return c.blockSize
}

// Len returns the number of resident blocks.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.Len()
}

// Contains reports whether id is resident. It does not count as an access.
func (c *Cache) Contains(id BlockID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.table.Lookup(id)
	return ok
}

// Resident returns the resident blocks from most to least recently used.
// The last id is the next eviction candidate unless its write-back is in
// flight.
func (c *Cache) Resident() []BlockID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]BlockID, 0, c.table.Len())
	c.table.Each(func(e *table.Entry) bool {
		ids = append(ids, e.ID)
		return true
	})
	return ids
}

// Dirty returns the resident blocks not yet written back, in ascending order.
func (c *Cache) Dirty() []BlockID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.DirtyIDs()
}

// Read returns a copy of block id.
//
// A resident block is returned without touching the store. Otherwise the
// block is read from the store and inserted clean, evicting the least
// recently used block first if the cache is full. A store read failure is
// reported as ErrStoreReadFailed and leaves the cache unchanged; a failed
// write-back of the victim is reported as ErrFlushFailed.
func (c *Cache) Read(ctx context.Context, id BlockID) ([]byte, error) {
	start := time.Now()
	data, hit, err := c.read(ctx, id)
	elapsed := time.Since(start)

	c.opts.metricsCollector.RecordRead(hit, elapsed, err)
	if !hit && err != ErrClosed {
		c.opts.logger.LogMiss(ctx, id, elapsed, err)
	}
	return data, err
}

func (c *Cache) read(ctx context.Context, id BlockID) ([]byte, bool, error) {
	if err := c.checkRange(id); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false, ErrClosed
	}
	c.ops.Add(1)
	defer c.ops.Done()

	if data, ok := c.hitLocked(id); ok {
		c.hits.Add(1)
		return data, true, nil
	}
	c.misses.Add(1)

	for {
		f := c.fills[id]
		if f == nil {
			f = &fill{}
			c.fills[id] = f
		}
		f.refs++
		gen := f.gen

		c.mu.Unlock()
		buf, err := c.fetch(ctx, id)
		c.mu.Lock()

		if err == nil && f.gen == gen {
			if _, resident := c.table.Lookup(id); !resident {
				err = c.reserveLocked(ctx)
			}
		}
		stale := f.gen != gen
		if f.refs--; f.refs == 0 {
			delete(c.fills, id)
		}

		if err != nil {
			return nil, false, err
		}
		// Whatever became resident meanwhile is at least as new as buf.
		if data, ok := c.hitLocked(id); ok {
			return data, false, nil
		}
		if stale {
			continue
		}

		if _, err := c.table.Insert(id, buf, false); err != nil {
			return nil, false, fmt.Errorf("insert block %d: %w", id, err)
		}
		return slices.Clone(buf), false, nil
	}
}

// hitLocked returns a copy of a resident block and records the access.
func (c *Cache) hitLocked(id BlockID) ([]byte, bool) {
	e, ok := c.table.Lookup(id)
	if !ok {
		return nil, false
	}
	_ = c.table.Touch(id)
	return slices.Clone(e.Data), true
}

// fetch reads id from the store. Concurrent misses on the same block share
// one store read; each caller receives a buffer it owns.
//
// The shared read is detached from any single caller's cancellation. Each
// caller stops waiting when its own ctx is done.
func (c *Cache) fetch(ctx context.Context, id BlockID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError(id, err)
	}

	readCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(fillKey(id), func() (any, error) {
		buf := make([]byte, c.blockSize)
		if err := c.store.ReadBlock(readCtx, id, buf); err != nil {
			return nil, err
		}
		return buf, nil
	})

	select {
	case <-ctx.Done():
		return nil, readError(id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, readError(id, res.Err)
		}
		buf := res.Val.([]byte)
		if res.Shared {
			buf = slices.Clone(buf)
		}
		return buf, nil
	}
}

func fillKey(id BlockID) string {
	return strconv.FormatUint(id, 10)
}

// Write replaces the contents of block id with data, which must be exactly
// one block long. The block becomes dirty and most recently used; the store
// is not written. If the block is not resident and the cache is full, the
// least recently used block is evicted first, and a failed write-back of a
// dirty victim is returned as ErrFlushFailed with the cache unchanged.
func (c *Cache) Write(ctx context.Context, id BlockID, data []byte) error {
	start := time.Now()
	err := c.write(ctx, id, data)
	c.opts.metricsCollector.RecordWrite(time.Since(start), err)
	return err
}

func (c *Cache) write(ctx context.Context, id BlockID, data []byte) error {
	if len(data) != c.blockSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidBlockSize, len(data), c.blockSize)
	}
	if err := c.checkRange(id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.ops.Add(1)
	defer c.ops.Done()

	for {
		if e, ok := c.table.Lookup(id); ok {
			c.invalidateFillLocked(id)
			copy(e.Data, data)
			e.Version++
			c.table.MarkDirty(e)
			_ = c.table.Touch(id)
			c.writes.Add(1)
			return nil
		}

		if !c.table.Full() {
			c.invalidateFillLocked(id)
			if _, err := c.table.Insert(id, slices.Clone(data), true); err != nil {
				return fmt.Errorf("insert block %d: %w", id, err)
			}
			c.writes.Add(1)
			return nil
		}

		// evictOneLocked may drop the lock, so residency is checked again.
		if err := c.evictOneLocked(ctx); err != nil {
			return err
		}
	}
}

// checkRange rejects ids the store cannot hold, so an unpersistable dirty
// entry never enters the table.
func (c *Cache) checkRange(id BlockID) error {
	if c.numBlocks > 0 && id >= c.numBlocks {
		return fmt.Errorf("%w: block %d, store has %d blocks", ErrOutOfRange, id, c.numBlocks)
	}
	return nil
}

// invalidateFillLocked makes any miss read of id that is in flight retry
// instead of installing what it read.
func (c *Cache) invalidateFillLocked(id BlockID) {
	if f, ok := c.fills[id]; ok {
		f.gen++
		c.sf.Forget(fillKey(id))
	}
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Capacity       int
	Len            int
	Dirty          int
	Hits           int64
	Misses         int64
	Writes         int64
	Evictions      int64
	DirtyEvictions int64
	Flushes        int64
	FlushedBlocks  int64
	FlushFailures  int64
}

// HitRatio returns Hits / (Hits + Misses), or 0 before the first read.
func (s Stats) HitRatio() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n, dirty := c.table.Len(), c.table.DirtyLen()
	c.mu.Unlock()

	return Stats{
		Capacity:       c.table.Capacity(),
		Len:            n,
		Dirty:          dirty,
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Writes:         c.writes.Load(),
		Evictions:      c.evictions.Load(),
		DirtyEvictions: c.dirtyEvictions.Load(),
		Flushes:        c.flushes.Load(),
		FlushedBlocks:  c.flushedBlocks.Load(),
		FlushFailures:  c.flushFailures.Load(),
	}
}
