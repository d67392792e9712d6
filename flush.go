package blockcache

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/blockcache/internal/table"
)

type flushItem struct {
	entry   *table.Entry
	data    []byte
	version uint64
}

// FlushAll writes every dirty block back to the store and marks it clean.
// Blocks stay resident.
//
// Every dirty block is attempted even if some fail. Failed blocks remain
// dirty and are reported in a *PartialFlushError, which matches
// ErrFlushFailed. A block rewritten while its flush was in flight stays
// dirty with the newer contents.
func (c *Cache) FlushAll(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.ops.Add(1)
	c.mu.Unlock()
	defer c.ops.Done()

	return c.flush(ctx)
}

func (c *Cache) flush(ctx context.Context) error {
	start := time.Now()

	c.mu.Lock()
	pending := c.table.DirtyIDs()
	flushed := 0
	var failed map[BlockID]error

	for len(pending) > 0 {
		var (
			batch    []flushItem
			deferred []BlockID
		)
		for _, id := range pending {
			e, ok := c.table.Lookup(id)
			if !ok || !e.Dirty() {
				// Written back by an eviction or a concurrent flush.
				continue
			}
			if e.Busy {
				deferred = append(deferred, id)
				continue
			}
			e.Busy = true
			batch = append(batch, flushItem{entry: e, data: slices.Clone(e.Data), version: e.Version})
		}

		if len(batch) > 0 {
			c.mu.Unlock()
			errs := c.writeBatch(ctx, batch)
			c.mu.Lock()

			for i, it := range batch {
				it.entry.Busy = false
				if errs[i] != nil {
					if failed == nil {
						failed = make(map[BlockID]error)
					}
					failed[it.entry.ID] = errs[i]
					continue
				}
				delete(failed, it.entry.ID)
				// A rewrite during the store write keeps the entry dirty.
				if it.entry.Version == it.version {
					c.table.MarkClean(it.entry)
					flushed++
				}
			}
			c.cond.Broadcast()
		}

		// Entries another writer is persisting are revisited once it is done.
		for c.anyBusyLocked(deferred) {
			c.cond.Wait()
		}
		pending = deferred
	}
	c.mu.Unlock()

	elapsed := time.Since(start)
	c.flushes.Add(1)
	c.flushedBlocks.Add(int64(flushed))
	c.flushFailures.Add(int64(len(failed)))
	c.opts.metricsCollector.RecordFlush(flushed, len(failed), elapsed)
	c.opts.logger.LogFlush(ctx, flushed, len(failed), elapsed)

	if len(failed) > 0 {
		return newPartialFlushError(failed)
	}
	return nil
}

func (c *Cache) anyBusyLocked(ids []BlockID) bool {
	for _, id := range ids {
		if e, ok := c.table.Lookup(id); ok && e.Busy {
			return true
		}
	}
	return false
}

// writeBatch writes the items in parallel and returns one error per item.
func (c *Cache) writeBatch(ctx context.Context, batch []flushItem) []error {
	errs := make([]error, len(batch))

	var g errgroup.Group
	g.SetLimit(c.opts.flushConcurrency)
	for i := range batch {
		g.Go(func() error {
			errs[i] = c.store.WriteBlock(ctx, batch[i].entry.ID, batch[i].data)
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

// startFlusher launches the periodic flusher. Must be called with c.mu held
// or before the cache is shared.
func (c *Cache) startFlusher(interval time.Duration) {
	stop := make(chan struct{})
	c.stopFlusher = stop
	c.flusherDone.Add(1)

	go func() {
		defer c.flusherDone.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.backgroundFlush()
			}
		}
	}()
}

// stopFlusherLocked signals the flusher to exit and returns a wait function.
// Must be called with c.mu held; the returned function must be called
// without it.
func (c *Cache) stopFlusherLocked() func() {
	if c.stopFlusher == nil {
		return func() {}
	}
	close(c.stopFlusher)
	c.stopFlusher = nil
	return c.flusherDone.Wait
}

// backgroundFlush runs one periodic flush. The tick is skipped when the
// resource controller has no background slot free.
func (c *Cache) backgroundFlush() {
	if !c.opts.rc.TryAcquireBackground() {
		return
	}
	defer c.opts.rc.ReleaseBackground()

	ctx := context.Background()
	if err := c.FlushAll(ctx); err != nil && err != ErrClosed {
		c.opts.logger.WarnContext(ctx, "background flush failed", "error", err)
	}
}
