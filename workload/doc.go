// Package workload generates synthetic block access sequences.
//
// A Generator yields block ids in [0, n) following a distribution:
//
//	g := workload.Zipf(0.7, 1024, 42) // skewed: low ids are hot
//	for range 10000 {
//	    id := g.Next()
//	    ...
//	}
//
// Generators are deterministic for a given seed and are not safe for
// concurrent use.
package workload
