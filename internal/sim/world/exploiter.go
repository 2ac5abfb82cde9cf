package world

func (w *World) stepExploiter(a *Agent, nowTick uint64) error {
	t := w.tune
	ex := a.Exploiter

	if nowTick%uint64(t.SenseSteps) == 0 {
		w.sense(a, nowTick)
	}
	if !ex.Exploiting && a.Energy < t.ThresholdExploiter && a.Memory.Len() > 0 {
		ex.Exploiting = true
		ex.AtBase = false
		a.clearTarget()
		w.updateTarget(a, nowTick)
	}

	var err error
	if ex.Exploiting || ex.AtBase {
		err = w.exploiterMove(a, nowTick)
	} else if w.rng.Chance(t.ExploiterMoveProb) {
		err = w.randomStep(a)
		a.Energy -= a.LivingCost
	} else {
		a.Energy -= ex.StaticCost
	}
	if err != nil {
		return err
	}

	if err := w.maybeReproduce(a, nowTick); err != nil {
		return err
	}
	a.Age++
	w.dieIfStarved(a, nowTick)
	return nil
}

// exploiterMove walks to a remembered resource, mines it up to
// MiningFactor times the threshold, then carries the energy home.
func (w *World) exploiterMove(a *Agent, nowTick uint64) error {
	t := w.tune
	ex := a.Exploiter
	if !a.HasTarget {
		a.setTarget(w.randomBase())
		ex.Exploiting = false
		ex.AtBase = true
	}
	if a.Pos == a.Target {
		switch {
		case ex.AtBase:
			ex.AtBase = false
			ex.Exploiting = false
			a.clearTarget()
		case a.Energy <= t.MiningFactor*t.ThresholdExploiter:
			if w.mine(a, nowTick) {
				return nil
			}
			if !a.HasTarget {
				w.headHome(a)
			}
		default:
			w.headHome(a)
		}
		a.Energy -= ex.StaticCost
		return nil
	}
	if err := w.stepToward(a, a.Target); err != nil {
		return err
	}
	a.Energy -= a.LivingCost
	return nil
}

func (w *World) headHome(a *Agent) {
	a.Exploiter.AtBase = true
	a.Exploiter.Exploiting = false
	a.setTarget(w.randomBase())
}

func (w *World) randomStep(a *Agent) error {
	cells := w.grid.Neighborhood(a.Pos, 1, false)
	if len(cells) == 0 {
		return nil
	}
	return w.moveTo(a, cells[w.rng.IntN(len(cells))])
}
