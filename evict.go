package blockcache

import (
	"context"
	"errors"
	"slices"

	"github.com/hupe1980/blockcache/internal/table"
)

// reserveLocked evicts until there is room for one more entry.
// Must be called with c.mu held; the lock is released during store I/O.
func (c *Cache) reserveLocked(ctx context.Context) error {
	for c.table.Full() {
		if err := c.evictOneLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

// evictOneLocked removes the least recently used entry, writing it back
// first if it is dirty. On a failed write-back the entry stays resident and
// dirty with its recency unchanged.
//
// Must be called with c.mu held. It may release the lock, and it may return
// without having evicted anything when the victim was rewritten during its
// write-back or every entry had a write in flight; callers loop on their
// own condition.
func (c *Cache) evictOneLocked(ctx context.Context) error {
	v, err := c.table.SelectVictim()
	if errors.Is(err, table.ErrNoVictim) {
		c.cond.Wait()
		return nil
	}
	if err != nil {
		return err
	}
	_, err = c.removeLocked(ctx, v)
	return err
}

// removeLocked drops e from the table, writing it back first if it is
// dirty. It reports whether e was removed; a dirty entry rewritten while its
// write-back was in flight stays resident.
func (c *Cache) removeLocked(ctx context.Context, e *table.Entry) (bool, error) {
	id, dirty := e.ID, e.Dirty()
	if dirty {
		evicted, err := c.writeBackLocked(ctx, e)
		if err != nil {
			c.recordEviction(ctx, id, true, err)
			return false, err
		}
		if !evicted {
			return false, nil
		}
	} else {
		_, _ = c.table.Remove(id)
	}
	c.recordEviction(ctx, id, dirty, nil)
	return true, nil
}

func (c *Cache) recordEviction(ctx context.Context, id BlockID, dirty bool, err error) {
	if err == nil {
		c.evictions.Add(1)
		if dirty {
			c.dirtyEvictions.Add(1)
		}
	}
	c.opts.metricsCollector.RecordEviction(dirty, err)
	c.opts.logger.LogEviction(ctx, id, dirty, err)
}

// writeBackLocked persists a dirty entry and removes it if it was not
// modified while the store write was in flight. It reports whether the
// entry was removed.
func (c *Cache) writeBackLocked(ctx context.Context, e *table.Entry) (bool, error) {
	buf := slices.Clone(e.Data)
	version := e.Version
	e.Busy = true

	c.mu.Unlock()
	err := c.store.WriteBlock(ctx, e.ID, buf)
	c.mu.Lock()

	e.Busy = false
	c.cond.Broadcast()

	if err != nil {
		return false, writeBackError(e.ID, err)
	}
	if e.Version != version {
		return false, nil
	}
	_, _ = c.table.Remove(e.ID)
	return true, nil
}

// Evict writes block id back if it is dirty and drops it from the cache.
// It returns ErrNotFound when the block is not resident. If the write-back
// fails the block stays resident and dirty.
func (c *Cache) Evict(ctx context.Context, id BlockID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.ops.Add(1)
	defer c.ops.Done()

	for {
		e, ok := c.table.Lookup(id)
		if !ok {
			return ErrNotFound
		}
		if e.Busy {
			c.cond.Wait()
			continue
		}
		removed, err := c.removeLocked(ctx, e)
		if err != nil || removed {
			return err
		}
	}
}
