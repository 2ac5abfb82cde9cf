package world

import (
	"testing"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/tuning"
)

func TestDriftFavorsDirection(t *testing.T) {
	w := emptyWorld(t, nil)
	start := grid.Pos{X: 30, Y: 30}
	a := placeAgent(t, w, KindExplorer, start, 100)
	a.Explorer.Drift = 0

	const n = 4000
	aligned := 0
	for i := 0; i < n; i++ {
		if err := w.moveTo(a, start); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if err := w.drift(a); err != nil {
			t.Fatalf("drift: %v", err)
		}
		if w.grid.Distance(a.Pos, start) != 1 {
			t.Fatalf("drift must move one cell, moved to %v", a.Pos)
		}
		if a.Pos.X == start.X+1 {
			aligned++
		}
	}
	// Three aligned cells weigh 0.25 each.
	if frac := float64(aligned) / n; frac < 0.70 || frac > 0.80 {
		t.Fatalf("aligned fraction %v, want about 0.75", frac)
	}
	if a.Explorer.BoundarySteps != 0 {
		t.Fatalf("interior steps must not count as boundary steps")
	}
}

func TestDriftFlipsAfterBoundaryRun(t *testing.T) {
	w := emptyWorld(t, nil)
	corner := grid.Pos{X: 0, Y: 0}
	a := placeAgent(t, w, KindExplorer, corner, 100)
	a.Explorer.Drift = 2

	for i := 1; i <= 15; i++ {
		if err := w.moveTo(a, corner); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if err := w.drift(a); err != nil {
			t.Fatalf("drift: %v", err)
		}
		if !w.grid.InBounds(a.Pos) {
			t.Fatalf("left the grid: %v", a.Pos)
		}
		if i < 15 && a.Explorer.Drift != 2 {
			t.Fatalf("flipped early at step %d", i)
		}
	}
	if a.Explorer.Drift != 0 {
		t.Fatalf("drift should flip to 0 after 15 boundary steps, got %d", a.Explorer.Drift)
	}
}

func TestTorusHasNoBoundary(t *testing.T) {
	tn := tuning.Defaults()
	tn.ReserveCount = 0
	cfg := testConfig()
	cfg.Population = 0
	cfg.Torus = true
	cfg.Tuning = tn
	w := newTestWorld(t, cfg)
	a := placeAgent(t, w, KindExplorer, grid.Pos{X: 0, Y: 0}, 100)

	for i := 0; i < 50; i++ {
		if err := w.drift(a); err != nil {
			t.Fatalf("drift: %v", err)
		}
		if a.Explorer.BoundarySteps != 0 {
			t.Fatalf("torus reported a boundary step at %v", a.Pos)
		}
	}
}

func TestExplorerBorrowsAtBase(t *testing.T) {
	for _, share := range []float64{0, 1} {
		w := emptyWorld(t, nil)
		base := w.Center()
		ex := placeAgent(t, w, KindExplorer, base, 50)
		lender := placeAgent(t, w, KindExploiter, grid.Pos{X: base.X + 1, Y: base.Y}, 200)
		lender.Exploiter.EnergyShareProb = share
		ex.Explorer.ReturningToBase = true
		ex.setTarget(base)

		w.explorerAtBase(ex)

		if share == 1 {
			// The borrower's own mining rate moves, not the lender's.
			if ex.Energy != 50+ex.MiningRate || lender.Energy != 200-ex.MiningRate {
				t.Fatalf("transfer of %v: explorer=%v lender=%v", ex.MiningRate, ex.Energy, lender.Energy)
			}
			if !ex.Explorer.ReturningToBase {
				t.Fatalf("borrower should stay at base while hungry")
			}
			continue
		}
		if ex.Energy != 50 || lender.Energy != 200 {
			t.Fatalf("no transfer expected: explorer=%v lender=%v", ex.Energy, lender.Energy)
		}
		if ex.Explorer.ReturningToBase || ex.HasTarget {
			t.Fatalf("refused borrower must leave base")
		}
	}
}

func TestPoorExploiterDoesNotLend(t *testing.T) {
	w := emptyWorld(t, nil)
	base := w.Center()
	ex := placeAgent(t, w, KindExplorer, base, 50)
	lender := placeAgent(t, w, KindExploiter, base, 80)
	lender.Exploiter.EnergyShareProb = 1

	if w.borrow(ex) {
		t.Fatalf("exploiter at the threshold must not lend")
	}
}

func TestSatedExplorerLeavesBase(t *testing.T) {
	w := emptyWorld(t, nil)
	base := w.Center()
	ex := placeAgent(t, w, KindExplorer, base, 150)
	ex.Explorer.ReturningToBase = true
	ex.setTarget(base)

	w.explorerAtBase(ex)
	if ex.Explorer.ReturningToBase || ex.HasTarget {
		t.Fatalf("sated explorer should cancel the return")
	}
}

func TestBaseReturnToggle(t *testing.T) {
	w := emptyWorld(t, nil)
	a := placeAgent(t, w, KindExplorer, grid.Pos{X: 1, Y: 1}, 100)

	w.toggleBaseReturn(a, 200)
	if !a.Explorer.ReturningToBase || !a.HasTarget || !w.isBase(a.Target) {
		t.Fatalf("toggle on should target a base: %+v", a)
	}
	w.toggleBaseReturn(a, 400)
	if a.Explorer.ReturningToBase || a.HasTarget {
		t.Fatalf("toggle off should clear the target")
	}

	a.Explorer.MineMode = true
	w.toggleBaseReturn(a, 600)
	if a.Explorer.ReturningToBase {
		t.Fatalf("mining explorers ignore the return toggle")
	}
}

func TestHungryExplorerEntersMineMode(t *testing.T) {
	w := emptyWorld(t, func(tn *tuning.Tuning) { tn.Epsilon = 0 })
	a := placeAgent(t, w, KindExplorer, grid.Pos{X: 30, Y: 30}, 49)
	res := placeResource(t, w, grid.Pos{X: 45, Y: 30}, 800, 0)

	// Tick 0 senses the resource within range 15.
	if err := w.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if !a.Explorer.MineMode || !a.HasTarget || a.Target != res.Pos {
		t.Fatalf("expected mine mode targeting %v, got mine=%v target=%v", res.Pos, a.Explorer.MineMode, a.Target)
	}
}
