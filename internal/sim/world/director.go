package world

// ShouldEvaluate reports whether a periodic system runs at nowTick.
// Tick zero never evaluates.
func ShouldEvaluate(nowTick uint64, every int) bool {
	if every <= 0 || nowTick == 0 {
		return false
	}
	return nowTick%uint64(every) == 0
}

// systemDirector keeps the resource field near the homeostasis band and
// applies the periodic relocation and spawn events.
func (w *World) systemDirector(nowTick uint64, mean float64) error {
	w.systemHomeostasis(mean)
	if ShouldEvaluate(nowTick, w.tune.Spawn.RelocateEveryTicks) {
		if err := w.relocateResources(); err != nil {
			return err
		}
	}
	if ShouldEvaluate(nowTick, w.tune.Spawn.NewEveryTicks) {
		if err := w.maybeSpawnResource(); err != nil {
			return err
		}
	}
	return nil
}

// systemHomeostasis nudges decay rates of a random subset of resources:
// down when the field is poor, up when it is rich.
func (w *World) systemHomeostasis(mean float64) {
	h := w.tune.Homeostasis
	if len(w.resources) == 0 {
		return
	}
	var delta float64
	switch {
	case mean < h.ReserveLow:
		delta = -h.Adjust
	case mean > h.ReserveHigh:
		delta = h.Adjust
	default:
		return
	}
	w.eachResource(func(r *Resource) {
		if w.rng.Chance(h.AdjustProb) {
			r.DecayRate += delta
		}
	})
}

// relocateResources moves some resources to random cells. Agents' records
// of the old cells are left stale.
func (w *World) relocateResources() error {
	var moved []*Resource
	w.eachResource(func(r *Resource) {
		if w.rng.Chance(w.tune.Spawn.RelocateProb) {
			moved = append(moved, r)
		}
	})
	for _, r := range moved {
		p := w.randomCell()
		if err := w.grid.Move(r.ID, p); err != nil {
			return err
		}
		r.Pos = p
	}
	return nil
}

func (w *World) maybeSpawnResource() error {
	sp := w.tune.Spawn
	if !w.rng.Chance(sp.NewProb) || len(w.agents) <= sp.NewMinPopulation {
		return nil
	}
	reserve := max(w.tune.MeanReserve/2, w.rng.Normal(w.tune.MeanReserve, w.tune.StddevReserve))
	decay := w.rng.Uniform(-w.tune.DecayRate, w.tune.DecayRate)
	_, err := w.addResource(reserve, decay, w.randomCell())
	return err
}
