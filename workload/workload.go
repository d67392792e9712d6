package workload

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
)

// BlockID identifies a block.
type BlockID = uint64

// ErrInvalidParameter is returned for out-of-domain distribution parameters.
var ErrInvalidParameter = errors.New("invalid workload parameter")

// Generator yields block ids.
type Generator interface {
	Next() BlockID
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type uniform struct {
	r *rand.Rand
	n uint64
}

// Uniform returns a generator drawing ids uniformly from [0, n).
func Uniform(n, seed uint64) Generator {
	return &uniform{r: newRand(seed), n: max(n, 1)}
}

func (u *uniform) Next() BlockID {
	return u.r.Uint64N(u.n)
}

type normal struct {
	r            *rand.Rand
	mean, stddev float64
	n            uint64
}

// Normal returns a generator drawing ids from a normal distribution with the
// given mean and standard deviation, rounded and clamped to [0, n).
func Normal(mean, stddev float64, n, seed uint64) Generator {
	return &normal{r: newRand(seed), mean: mean, stddev: stddev, n: max(n, 1)}
}

func (g *normal) Next() BlockID {
	v := math.Round(g.mean + g.stddev*g.r.NormFloat64())
	switch {
	case v < 0:
		return 0
	case v >= float64(g.n):
		return g.n - 1
	}
	return BlockID(v)
}

type zipf struct {
	r   *rand.Rand
	cdf []float64
}

// Zipf returns a generator where id k in [0, n) is drawn with probability
// proportional to 1/(k+1)^s. Unlike rand.Zipf, any s > 0 is accepted, so
// mildly skewed workloads (s < 1) can be modeled.
func Zipf(s float64, n, seed uint64) Generator {
	n = max(n, 1)
	cdf := make([]float64, n)
	var sum float64
	for k := range n {
		sum += math.Pow(float64(k+1), -s)
		cdf[k] = sum
	}
	for k := range cdf {
		cdf[k] /= sum
	}
	return &zipf{r: newRand(seed), cdf: cdf}
}

func (z *zipf) Next() BlockID {
	u := z.r.Float64()
	k := sort.SearchFloat64s(z.cdf, u)
	if k >= len(z.cdf) {
		k = len(z.cdf) - 1
	}
	return BlockID(k)
}

type sequential struct {
	next, n uint64
}

// Sequential returns a generator cycling through 0, 1, ..., n-1.
func Sequential(n uint64) Generator {
	return &sequential{n: max(n, 1)}
}

func (s *sequential) Next() BlockID {
	id := s.next
	s.next = (s.next + 1) % s.n
	return id
}

// Sequence draws length ids from g.
func Sequence(g Generator, length int) []BlockID {
	out := make([]BlockID, length)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}

// Distribution names a generator for command-line selection.
type Distribution string

const (
	DistUniform    Distribution = "uniform"
	DistNormal     Distribution = "normal"
	DistZipf       Distribution = "zipf"
	DistSequential Distribution = "sequential"
)

// Config selects and parameterizes a generator.
type Config struct {
	Distribution Distribution
	// NumBlocks bounds generated ids to [0, NumBlocks).
	NumBlocks uint64
	Seed      uint64
	// Mean and StdDev parameterize DistNormal. Zero Mean centers the
	// distribution on NumBlocks/2; zero StdDev uses NumBlocks/10.
	Mean   float64
	StdDev float64
	// Skew is the Zipf exponent. Zero selects 0.7.
	Skew float64
}

// New builds the generator described by cfg.
func New(cfg Config) (Generator, error) {
	if cfg.NumBlocks == 0 {
		return nil, fmt.Errorf("%w: NumBlocks must be positive", ErrInvalidParameter)
	}

	switch Distribution(strings.ToLower(string(cfg.Distribution))) {
	case DistUniform, "":
		return Uniform(cfg.NumBlocks, cfg.Seed), nil
	case DistNormal:
		mean, stddev := cfg.Mean, cfg.StdDev
		if mean == 0 {
			mean = float64(cfg.NumBlocks) / 2
		}
		if stddev == 0 {
			stddev = float64(cfg.NumBlocks) / 10
		}
		if stddev < 0 {
			return nil, fmt.Errorf("%w: stddev %v", ErrInvalidParameter, stddev)
		}
		return Normal(mean, stddev, cfg.NumBlocks, cfg.Seed), nil
	case DistZipf:
		skew := cfg.Skew
		if skew == 0 {
			skew = 0.7
		}
		if skew < 0 || math.IsNaN(skew) {
			return nil, fmt.Errorf("%w: skew %v", ErrInvalidParameter, skew)
		}
		return Zipf(skew, cfg.NumBlocks, cfg.Seed), nil
	case DistSequential:
		return Sequential(cfg.NumBlocks), nil
	default:
		return nil, fmt.Errorf("%w: unknown distribution %q", ErrInvalidParameter, cfg.Distribution)
	}
}
