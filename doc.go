// Package blockcache provides a fixed-capacity write-back block cache.
//
// A Cache sits between a client and a block-addressed backing store
// (see package blockstore). It holds at most Capacity blocks in memory,
// evicts the least recently used block when it needs room, and defers
// writes: a written block is marked dirty and reaches the store only when
// it is evicted, flushed or the cache is closed.
//
// # Quick Start
//
//	store, _ := blockstore.OpenFile("disk.img", func(o *blockstore.FileOptions) {
//	    o.NumBlocks = 1 << 16
//	})
//	c, _ := blockcache.New(1024, store)
//	defer c.Close(ctx)
//
//	buf, _ := c.Read(ctx, 42)      // miss: filled from the store
//	buf[0] = 0xff
//	_ = c.Write(ctx, 42, buf)      // dirty, store untouched
//	_ = c.FlushAll(ctx)            // now persisted
//
// # Guarantees
//
//   - The number of resident blocks never exceeds the capacity.
//   - A read returns the latest data written through the cache, or the
//     store contents if the block was never written.
//   - A dirty block is never dropped before its contents reach the store.
//     If the write-back fails, the block stays resident and dirty and the
//     operation that needed room returns ErrFlushFailed.
//   - A failed store read returns ErrStoreReadFailed and changes nothing.
//
// # Backends
//
// Package blockstore provides a file-backed store with optional direct I/O,
// an in-memory store and test wrappers. Packages blockstore/minio and
// blockstore/s3 store one object per block.
package blockcache
