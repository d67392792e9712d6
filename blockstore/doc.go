// Package blockstore provides the backing stores a block cache reads from
// and writes back to.
//
// A Store is a flat array of fixed-size blocks addressed by BlockID. Block id
// i lives at byte offset i*BlockSize(); there is no header. All transfers are
// whole blocks. Implementations must be safe for concurrent use; callers
// never issue two concurrent writes for the same block.
//
// # Built-in Implementations
//
//   - FileStore: a local file or block device, optionally opened for
//     unbuffered (direct) I/O with block-aligned buffers
//   - MemoryStore: in-process map for tests and simulation
//   - minio.Store, s3.Store: one object per block on S3-compatible storage
//
// # Wrappers
//
//   - CountingStore: counts reads and writes per block
//   - FaultyStore: injects read/write failures and latency
//   - RateLimitedStore: charges every transfer against a resource.Controller
package blockstore
