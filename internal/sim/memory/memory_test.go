package memory

import (
	"testing"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/rng"
)

func chebyshev(a, b grid.Pos) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return max(dx, dy)
}

func TestUpsertOverwritesInPlace(t *testing.T) {
	var tb Table
	tb.Upsert(Record{Pos: grid.Pos{X: 1, Y: 1}, Reserve: 10, ObservedAt: 0})
	tb.Upsert(Record{Pos: grid.Pos{X: 2, Y: 2}, Reserve: 20, ObservedAt: 0})
	tb.Upsert(Record{Pos: grid.Pos{X: 1, Y: 1}, Reserve: 5, ObservedAt: 9})

	recs := tb.Records()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Reserve != 5 || recs[0].ObservedAt != 9 {
		t.Fatalf("re-observation must refresh the record: %+v", recs[0])
	}
}

func TestReserveAtProjectsDecay(t *testing.T) {
	r := Record{Reserve: 100, DecayRate: 2, ObservedAt: 10}
	if got := r.ReserveAt(15); got != 90 {
		t.Fatalf("ReserveAt(15)=%v", got)
	}
	if got := r.ReserveAt(5); got != 100 {
		t.Fatalf("observation in the future must not extrapolate backwards: %v", got)
	}
	grow := Record{Reserve: 100, DecayRate: -1, ObservedAt: 0}
	if got := grow.ReserveAt(10); got != 110 {
		t.Fatalf("negative decay should grow the reserve: %v", got)
	}
}

func TestCriteriaClampsAtZero(t *testing.T) {
	r := Record{Pos: grid.Pos{X: 10, Y: 0}, Reserve: 5, DecayRate: 1}
	if got := Criteria(r, 0, grid.Pos{}, chebyshev); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestSelectGreedyWhenEpsilonZero(t *testing.T) {
	var tb Table
	tb.Upsert(Record{Pos: grid.Pos{X: 1, Y: 0}, Reserve: 50, DecayRate: 1})
	tb.Upsert(Record{Pos: grid.Pos{X: 9, Y: 9}, Reserve: 500, DecayRate: 1})
	tb.Upsert(Record{Pos: grid.Pos{X: 2, Y: 2}, Reserve: 100, DecayRate: 0})

	g := rng.New(11)
	for i := 0; i < 100; i++ {
		p, ok := tb.Select(3, grid.Pos{}, chebyshev, 0, g)
		if !ok || p != (grid.Pos{X: 9, Y: 9}) {
			t.Fatalf("expected argmax (9,9), got %v ok=%v", p, ok)
		}
	}
}

func TestSelectGreedyTieKeepsMemoryOrder(t *testing.T) {
	var tb Table
	tb.Upsert(Record{Pos: grid.Pos{X: 3, Y: 3}, Reserve: 10})
	tb.Upsert(Record{Pos: grid.Pos{X: 4, Y: 4}, Reserve: 10})
	if p, _ := tb.Select(0, grid.Pos{}, chebyshev, 0, rng.New(1)); p != (grid.Pos{X: 3, Y: 3}) {
		t.Fatalf("tie should resolve to the first record, got %v", p)
	}
}

func TestSelectEmptyIsNoop(t *testing.T) {
	var tb Table
	if _, ok := tb.Select(0, grid.Pos{}, chebyshev, 0.5, rng.New(1)); ok {
		t.Fatalf("empty memory must not yield a target")
	}
}

func TestSelectExploreReachesZeroCriteriaRecords(t *testing.T) {
	var tb Table
	tb.Upsert(Record{Pos: grid.Pos{X: 1, Y: 1}, Reserve: 0})
	tb.Upsert(Record{Pos: grid.Pos{X: 2, Y: 2}, Reserve: 3})
	g := rng.New(5)
	hits := map[grid.Pos]int{}
	for i := 0; i < 2000; i++ {
		p, _ := tb.Select(0, grid.Pos{}, chebyshev, 1, g)
		hits[p]++
	}
	// Weights are 1/5 and 4/5 after smoothing.
	if hits[grid.Pos{X: 1, Y: 1}] == 0 {
		t.Fatalf("zero-criteria record never sampled: %v", hits)
	}
	if hits[grid.Pos{X: 2, Y: 2}] <= hits[grid.Pos{X: 1, Y: 1}] {
		t.Fatalf("higher criteria should dominate: %v", hits)
	}
}

func TestShareIntoFullCooperation(t *testing.T) {
	var src, dst Table
	src.Upsert(Record{Pos: grid.Pos{X: 1, Y: 1}, Reserve: 7, ObservedAt: 3})
	src.Upsert(Record{Pos: grid.Pos{X: 2, Y: 2}, Reserve: 8, ObservedAt: 4})
	src.Upsert(Record{Pos: grid.Pos{X: 3, Y: 3}, Reserve: 9, ObservedAt: 5})
	dst.Upsert(Record{Pos: grid.Pos{X: 2, Y: 2}, Reserve: 100, ObservedAt: 50})

	n := src.ShareInto(&dst, 1, rng.New(1))
	if n != 2 {
		t.Fatalf("expected 2 copied records, got %d", n)
	}
	for _, r := range src.Records() {
		if !dst.Has(r.Pos) {
			t.Fatalf("recipient missing %v", r.Pos)
		}
	}
	if got, _ := dst.Get(grid.Pos{X: 2, Y: 2}); got.Reserve != 100 {
		t.Fatalf("known positions must not be overwritten: %+v", got)
	}
	if got, _ := dst.Get(grid.Pos{X: 1, Y: 1}); got.ObservedAt != 3 {
		t.Fatalf("copy must keep the sharer's observation tick: %+v", got)
	}
}

func TestShareIntoNoCooperation(t *testing.T) {
	var src, dst Table
	src.Upsert(Record{Pos: grid.Pos{X: 1, Y: 1}})
	if n := src.ShareInto(&dst, 0, rng.New(1)); n != 0 || dst.Len() != 0 {
		t.Fatalf("coop=0 must not share, n=%d", n)
	}
}

func TestForgetKeepsOrder(t *testing.T) {
	var tb Table
	for i := 0; i < 4; i++ {
		tb.Upsert(Record{Pos: grid.Pos{X: i}})
	}
	if !tb.Forget(grid.Pos{X: 1}) || tb.Forget(grid.Pos{X: 1}) {
		t.Fatalf("forget should succeed once")
	}
	recs := tb.Records()
	if len(recs) != 3 || recs[0].Pos.X != 0 || recs[1].Pos.X != 2 || recs[2].Pos.X != 3 {
		t.Fatalf("unexpected order after forget: %+v", recs)
	}
}
