package world

func (w *World) stepResource(r *Resource) {
	r.Reserve -= r.DecayRate
	if r.Reserve <= 0 {
		w.expireResource(r)
	}
}

// expireResource removes r from the grid and the schedule and purges
// every agent's record of its cell.
func (w *World) expireResource(r *Resource) {
	if _, ok := w.resources[r.ID]; !ok {
		return
	}
	w.grid.Remove(r.ID)
	w.sched.Remove(r.ID)
	delete(w.resources, r.ID)
	for _, a := range w.agents {
		a.Memory.Forget(r.Pos)
	}
}
