// Package table implements the resident-block table of the cache.
//
// A Table maps block ids to entries and keeps them in recency order:
//
//   - Lookup, Insert, Remove and Touch are O(1)
//   - SelectVictim walks from the least recently used end, skipping entries
//     whose store write is still in flight
//   - Dirty ids are tracked in a roaring bitmap so flushes enumerate only
//     dirty entries
//
// The table performs no locking. The cache holds its mutex around every call.
package table
