package memory

import "github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"

// Roller supplies the random draws used by gossip and target selection.
type Roller interface {
	Float64() float64
	Weighted(weights []float64) int
}

// DistanceFunc measures the travel distance between two cells.
type DistanceFunc func(a, b grid.Pos) int

// Criteria is the expected energy left at the record's position on arrival:
// the projected reserve minus the decay accumulated while travelling there.
func Criteria(r Record, now uint64, self grid.Pos, dist DistanceFunc) float64 {
	d := float64(dist(r.Pos, self))
	v := r.ReserveAt(now) - d*r.DecayRate
	if v < 0 {
		return 0
	}
	return v
}

// Select is the epsilon-greedy target policy. With probability 1-epsilon it
// returns the record with the highest criteria (earliest wins ties); with
// probability epsilon it samples record i with probability
// (c_i + 1) / (sum(c) + n). ok is false when the table is empty.
func (t *Table) Select(now uint64, self grid.Pos, dist DistanceFunc, epsilon float64, r Roller) (grid.Pos, bool) {
	if len(t.recs) == 0 {
		return grid.Pos{}, false
	}
	gains := make([]float64, len(t.recs))
	best := 0
	total := 0.0
	for i, rec := range t.recs {
		gains[i] = Criteria(rec, now, self, dist)
		total += gains[i]
		if gains[i] > gains[best] {
			best = i
		}
	}
	if r.Float64() >= epsilon {
		return t.recs[best].Pos, true
	}
	denom := total + float64(len(gains))
	probs := make([]float64, len(gains))
	for i, g := range gains {
		probs[i] = (g + 1) / denom
	}
	idx := r.Weighted(probs)
	if idx < 0 {
		idx = best
	}
	return t.recs[idx].Pos, true
}

// ShareInto copies each record, with probability p, into dst when dst does
// not know that position yet. The copy carries the sharer's observation
// tick, so the recipient inherits a possibly stale belief. It returns the
// number of records copied.
func (t *Table) ShareInto(dst *Table, p float64, r Roller) int {
	if dst == nil || dst == t {
		return 0
	}
	n := 0
	for _, rec := range t.recs {
		if r.Float64() >= p {
			continue
		}
		if dst.AddIfAbsent(rec) {
			n++
		}
	}
	return n
}
