// Package testutil provides testing utilities for blockcache.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded random source and helpers for building block
// payloads that can be recognized again after a round trip through a
// cache and its store.
//
// # Block Payloads
//
//	rng := testutil.NewRNG(seed)
//	buf := rng.Block(4096)                  // random contents
//	pat := testutil.PatternBlock(7, 1, 4096) // block 7, generation 1
//	id, gen, ok := testutil.DecodePattern(pat)
package testutil
