package testutil

import (
	"encoding/binary"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64n returns a pseudo-random number in [0,n).
func (r *RNG) Uint64n(n uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(r.rand.Int63n(int64(n)))
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Block returns size random bytes.
func (r *RNG) Block(size int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, size)
	_, _ = r.rand.Read(b)
	return b
}

// Blocks returns n random blocks of the given size.
func (r *RNG) Blocks(n, size int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = r.Block(size)
	}
	return out
}

const patternHeader = 16

// PatternBlock returns a block of the given size whose contents identify id
// and gen: the first 16 bytes hold both as little-endian uint64s and the
// remainder repeats a byte derived from them. size must be at least 16.
func PatternBlock(id, gen uint64, size int) []byte {
	b := make([]byte, size)
	binary.LittleEndian.PutUint64(b[0:8], id)
	binary.LittleEndian.PutUint64(b[8:16], gen)
	fill := byte(id*31 + gen)
	for i := patternHeader; i < size; i++ {
		b[i] = fill
	}
	return b
}

// DecodePattern recovers id and gen from a PatternBlock. ok is false when b
// was not produced by PatternBlock, for example a zero block.
func DecodePattern(b []byte) (id, gen uint64, ok bool) {
	if len(b) < patternHeader {
		return 0, 0, false
	}
	id = binary.LittleEndian.Uint64(b[0:8])
	gen = binary.LittleEndian.Uint64(b[8:16])
	fill := byte(id*31 + gen)
	for _, v := range b[patternHeader:] {
		if v != fill {
			return 0, 0, false
		}
	}
	if id == 0 && gen == 0 && fill == 0 {
		// Indistinguishable from a zero block.
		return 0, 0, false
	}
	return id, gen, true
}
