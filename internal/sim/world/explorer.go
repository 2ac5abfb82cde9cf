package world

import (
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"
)

const (
	alignedWeight = 0.25
	offAxisWeight = 0.05
)

func (w *World) stepExplorer(a *Agent, nowTick uint64) error {
	t := w.tune
	ex := a.Explorer

	if nowTick%uint64(t.SenseSteps) == 0 {
		w.sense(a, nowTick)
	}
	if nowTick%uint64(t.CommunicationSteps) == 0 {
		w.communicate(a)
	}
	if nowTick > 0 && nowTick%uint64(ex.CycleRate) == 0 {
		w.toggleBaseReturn(a, nowTick)
	}

	if err := w.explorerMove(a, nowTick); err != nil {
		return err
	}
	a.Energy -= a.LivingCost

	if !ex.MineMode && !ex.ReturningToBase && a.Energy < t.ThresholdExplorer {
		ex.MineMode = true
		a.clearTarget()
		w.updateTarget(a, nowTick)
	}

	if err := w.maybeReproduce(a, nowTick); err != nil {
		return err
	}
	a.Age++
	w.dieIfStarved(a, nowTick)
	return nil
}

// toggleBaseReturn flips the periodic return-to-base flag. Turning it on is
// ignored while the explorer is mining.
func (w *World) toggleBaseReturn(a *Agent, nowTick uint64) {
	ex := a.Explorer
	switch {
	case ex.ReturningToBase:
		ex.ReturningToBase = false
		a.clearTarget()
	case !ex.MineMode:
		ex.ReturningToBase = true
		a.clearTarget()
		w.updateTarget(a, nowTick)
	}
}

func (w *World) explorerMove(a *Agent, nowTick uint64) error {
	ex := a.Explorer
	if !ex.ReturningToBase && !ex.MineMode {
		return w.drift(a)
	}
	w.updateTarget(a, nowTick)
	if !a.HasTarget {
		return w.drift(a)
	}
	if a.Pos != a.Target {
		return w.stepToward(a, a.Target)
	}
	if ex.ReturningToBase {
		w.explorerAtBase(a)
		return nil
	}
	if a.Energy <= w.tune.MiningFactor*w.tune.ThresholdExplorer {
		w.mine(a, nowTick)
		return nil
	}
	ex.MineMode = false
	a.clearTarget()
	return nil
}

// explorerAtBase lets a hungry explorer borrow from nearby exploiters. A
// sated one, or one nobody lends to, leaves in a fresh random direction.
func (w *World) explorerAtBase(a *Agent) {
	ex := a.Explorer
	if a.Energy <= w.tune.MiningFactor*w.tune.ThresholdExplorer && w.borrow(a) {
		return
	}
	ex.ReturningToBase = false
	a.clearTarget()
	ex.Drift = Direction(w.rng.IntN(numDirections))
}

// borrow takes the borrower's mining rate of energy from the first willing
// exploiter within EnergyTransmitRadius. Lenders sit above
// ThresholdExploiter, which Validate keeps at or above the explorer mining
// rate, so a lender never drops to zero.
func (w *World) borrow(a *Agent) bool {
	for _, e := range w.grid.Neighbors(a.Pos, w.tune.EnergyTransmitRadius, true) {
		if e.Kind != grid.KindAgent || e.ID == a.ID {
			continue
		}
		lender := w.agents[e.ID]
		if lender == nil || lender.Exploiter == nil {
			continue
		}
		if lender.Energy <= w.tune.ThresholdExploiter {
			continue
		}
		if !w.rng.Chance(lender.Exploiter.EnergyShareProb) {
			continue
		}
		lender.Energy -= a.MiningRate
		a.Energy += a.MiningRate
		return true
	}
	return false
}

// drift takes one random step biased toward the drift direction. Off the
// interior the step is uniform, and a long run along the edge reverses the
// drift.
func (w *World) drift(a *Agent) error {
	ex := a.Explorer
	cells := make([]grid.Pos, 0, 8)
	weights := make([]float64, 0, 8)
	interior := true
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			q, ok := w.grid.Wrap(grid.Pos{X: a.Pos.X + dx, Y: a.Pos.Y + dy})
			if !ok {
				interior = false
				continue
			}
			cells = append(cells, q)
			if ex.Drift.aligned(dx, dy) {
				weights = append(weights, alignedWeight)
			} else {
				weights = append(weights, offAxisWeight)
			}
		}
	}
	if len(cells) == 0 {
		return nil
	}
	if !interior {
		ex.BoundarySteps++
		if ex.BoundarySteps%w.tune.BoundaryFlipSteps == 0 {
			ex.Drift = ex.Drift.Flip()
		}
		return w.moveTo(a, cells[w.rng.IntN(len(cells))])
	}
	ex.BoundarySteps = 0
	return w.moveTo(a, cells[w.rng.Weighted(weights)])
}
