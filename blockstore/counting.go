package blockstore

import (
	"context"
	"sync"
	"sync/atomic"
)

// CountingStore wraps a Store and counts the calls made through it.
// Failed calls are counted too.
type CountingStore struct {
	Store

	reads  atomic.Int64
	writes atomic.Int64

	mu        sync.Mutex
	perRead   map[BlockID]int
	perWrite  map[BlockID]int
	lastWrite map[BlockID][]byte
}

// NewCountingStore wraps inner.
func NewCountingStore(inner Store) *CountingStore {
	return &CountingStore{
		Store:     inner,
		perRead:   make(map[BlockID]int),
		perWrite:  make(map[BlockID]int),
		lastWrite: make(map[BlockID][]byte),
	}
}

// ReadBlock implements Store.
func (c *CountingStore) ReadBlock(ctx context.Context, id BlockID, p []byte) error {
	c.reads.Add(1)
	c.mu.Lock()
	c.perRead[id]++
	c.mu.Unlock()
	return c.Store.ReadBlock(ctx, id, p)
}

// WriteBlock implements Store.
func (c *CountingStore) WriteBlock(ctx context.Context, id BlockID, p []byte) error {
	c.writes.Add(1)
	c.mu.Lock()
	c.perWrite[id]++
	c.lastWrite[id] = append(c.lastWrite[id][:0], p...)
	c.mu.Unlock()
	return c.Store.WriteBlock(ctx, id, p)
}

// NumBlocks implements Bounded by delegating to the wrapped store.
func (c *CountingStore) NumBlocks() uint64 { return NumBlocks(c.Store) }

// Reads returns the total number of ReadBlock calls.
func (c *CountingStore) Reads() int64 { return c.reads.Load() }

// Writes returns the total number of WriteBlock calls.
func (c *CountingStore) Writes() int64 { return c.writes.Load() }

// ReadsOf returns the number of ReadBlock calls for id.
func (c *CountingStore) ReadsOf(id BlockID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perRead[id]
}

// WritesOf returns the number of WriteBlock calls for id.
func (c *CountingStore) WritesOf(id BlockID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perWrite[id]
}

// LastWrite returns a copy of the payload of the most recent WriteBlock call
// for id, or nil.
func (c *CountingStore) LastWrite(id BlockID) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.lastWrite[id]; ok {
		return append([]byte(nil), b...)
	}
	return nil
}

// Reset zeroes all counters.
func (c *CountingStore) Reset() {
	c.reads.Store(0)
	c.writes.Store(0)
	c.mu.Lock()
	clear(c.perRead)
	clear(c.perWrite)
	clear(c.lastWrite)
	c.mu.Unlock()
}
