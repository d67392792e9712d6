// Package resource provides a controller for resources shared by caches.
//
// A Controller governs three things:
//
//   - Memory: the bytes pinned by resident blocks; a cache reserves
//     capacity*blockSize up front and fails fast when over budget
//   - Background workers: slots held by periodic flushers
//   - IO: a token bucket shared by rate-limited backing stores
//
// One Controller may be shared by several caches in the same process.
package resource
