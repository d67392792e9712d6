package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlock(t *testing.T) {
	rng := NewRNG(4711)

	b := rng.Block(64)

	assert.Len(t, b, 64)
	assert.NotEqual(t, make([]byte, 64), b)
}

func TestBlocks(t *testing.T) {
	rng := NewRNG(4711)

	bs := rng.Blocks(4, 32)

	assert.Len(t, bs, 4)
	assert.Len(t, bs[3], 32)
	assert.NotEqual(t, bs[0], bs[1])
}

func TestPatternBlock(t *testing.T) {
	b := PatternBlock(7, 3, 64)

	id, gen, ok := DecodePattern(b)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, uint64(3), gen)

	b[40] ^= 0xff
	_, _, ok = DecodePattern(b)
	assert.False(t, ok, "corrupted payload")

	_, _, ok = DecodePattern(make([]byte, 64))
	assert.False(t, ok, "zero block")
}

func TestUint64n(t *testing.T) {
	rng := NewRNG(1)
	for range 1000 {
		assert.Less(t, rng.Uint64n(10), uint64(10))
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	b1 := rng.Block(16)

	rng.Reset()
	b2 := rng.Block(16)

	assert.Equal(t, b1, b2)
	assert.Equal(t, int64(4711), rng.Seed())
}
