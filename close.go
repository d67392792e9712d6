package blockcache

import "context"

// Close stops the background flusher, writes back every dirty block and
// closes the backing store.
//
// If the flush fails, the store is left open, the error is returned and the
// cache remains usable, background flusher included, so the caller can
// retry. Calling Close on a closed cache is a no-op.
func (c *Cache) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	waitFlusher := c.stopFlusherLocked()
	c.mu.Unlock()

	waitFlusher()
	c.ops.Wait()

	if err := c.flush(ctx); err != nil {
		c.mu.Lock()
		c.closed = false
		if c.opts.flushInterval > 0 {
			c.startFlusher(c.opts.flushInterval)
		}
		c.mu.Unlock()
		c.opts.logger.LogClose(ctx, c.Stats(), err)
		return err
	}

	var firstErr error
	c.opts.rc.ReleaseMemory(c.memReserved)
	if err := c.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	c.opts.logger.LogClose(ctx, c.Stats(), firstErr)
	return firstErr
}
