package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerators_StayInRange(t *testing.T) {
	const n = 100
	gens := map[string]Generator{
		"uniform":    Uniform(n, 1),
		"normal":     Normal(50, 40, n, 1),
		"zipf":       Zipf(0.7, n, 1),
		"sequential": Sequential(n),
	}
	for name, g := range gens {
		t.Run(name, func(t *testing.T) {
			for range 10000 {
				assert.Less(t, g.Next(), BlockID(n))
			}
		})
	}
}

func TestDeterministicBySeed(t *testing.T) {
	a := Sequence(Zipf(1.1, 500, 42), 200)
	b := Sequence(Zipf(1.1, 500, 42), 200)
	c := Sequence(Zipf(1.1, 500, 43), 200)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSequential_Wraps(t *testing.T) {
	assert.Equal(t, []BlockID{0, 1, 2, 0, 1}, Sequence(Sequential(3), 5))
}

func TestNormal_CentersOnMean(t *testing.T) {
	g := Normal(50, 10, 1000, 7)

	var sum float64
	const draws = 20000
	for range draws {
		sum += float64(g.Next())
	}
	assert.InDelta(t, 50, sum/draws, 1)
}

func TestNormal_Clamps(t *testing.T) {
	g := Normal(-100, 1, 10, 7)
	for range 100 {
		assert.Equal(t, BlockID(0), g.Next())
	}

	g = Normal(100, 1, 10, 7)
	for range 100 {
		assert.Equal(t, BlockID(9), g.Next())
	}
}

func TestZipf_Skewed(t *testing.T) {
	g := Zipf(1.2, 1000, 3)

	counts := make(map[BlockID]int)
	for range 50000 {
		counts[g.Next()]++
	}
	assert.Greater(t, counts[0], counts[1])
	assert.Greater(t, counts[1], counts[10])
	assert.Greater(t, counts[0], 50000/10, "head of the distribution is hot")
}

func TestZipf_ZeroSkewIsUniform(t *testing.T) {
	g := Zipf(0, 4, 5)

	counts := make([]int, 4)
	for range 40000 {
		counts[g.Next()]++
	}
	for _, c := range counts {
		assert.InDelta(t, 10000, c, 600)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "uniform", cfg: Config{Distribution: DistUniform, NumBlocks: 10}},
		{name: "default", cfg: Config{NumBlocks: 10}},
		{name: "normal defaults", cfg: Config{Distribution: DistNormal, NumBlocks: 10}},
		{name: "zipf upper case", cfg: Config{Distribution: "ZIPF", NumBlocks: 10}},
		{name: "sequential", cfg: Config{Distribution: DistSequential, NumBlocks: 10}},
		{name: "no blocks", cfg: Config{Distribution: DistUniform}, wantErr: true},
		{name: "negative stddev", cfg: Config{Distribution: DistNormal, NumBlocks: 10, StdDev: -1}, wantErr: true},
		{name: "negative skew", cfg: Config{Distribution: DistZipf, NumBlocks: 10, Skew: -1}, wantErr: true},
		{name: "unknown", cfg: Config{Distribution: "pareto", NumBlocks: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Less(t, g.Next(), BlockID(10))
		})
	}
}
