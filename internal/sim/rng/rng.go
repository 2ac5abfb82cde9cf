// Package rng provides the single seeded generator threaded through every
// stochastic decision of a run. Two runs built from the same seed draw the
// same stream regardless of what else the host process does with randomness.
package rng

import (
	"fmt"
	"math/rand/v2"
)

type Rand struct {
	src *rand.PCG
	r   *rand.Rand
}

func New(seed int64) *Rand {
	src := rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)
	return &Rand{src: src, r: rand.New(src)}
}

// Float64 returns a uniform value in [0, 1).
func (g *Rand) Float64() float64 { return g.r.Float64() }

// IntN returns a uniform value in [0, n). n must be > 0.
func (g *Rand) IntN(n int) int { return g.r.IntN(n) }

// Range returns a uniform int in [lo, hi). Returns lo when hi <= lo.
func (g *Rand) Range(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.r.IntN(hi-lo)
}

func (g *Rand) Uniform(lo, hi float64) float64 { return lo + (hi-lo)*g.r.Float64() }

func (g *Rand) Normal(mean, stddev float64) float64 { return mean + stddev*g.r.NormFloat64() }

// Chance reports whether a Bernoulli(p) trial succeeds.
func (g *Rand) Chance(p float64) bool { return g.r.Float64() < p }

func (g *Rand) Shuffle(n int, swap func(i, j int)) { g.r.Shuffle(n, swap) }

// Weighted samples an index with probability proportional to weights[i].
// Non-positive total weight falls back to a uniform pick. Returns -1 for an
// empty slice.
func (g *Rand) Weighted(weights []float64) int {
	if len(weights) == 0 {
		return -1
	}
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return g.r.IntN(len(weights))
	}
	u := g.r.Float64() * total
	acc := 0.0
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if u < acc {
			return i
		}
	}
	return last
}

// State serialises the generator position for snapshots.
func (g *Rand) State() ([]byte, error) { return g.src.MarshalBinary() }

// Restore rewinds the generator to a position captured by State.
func (g *Rand) Restore(state []byte) error {
	if err := g.src.UnmarshalBinary(state); err != nil {
		return fmt.Errorf("rng restore: %w", err)
	}
	return nil
}
