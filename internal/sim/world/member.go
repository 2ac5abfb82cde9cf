package world

import (
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/memory"
)

// sense records every live resource within the agent's sense range,
// including its own cell.
func (w *World) sense(a *Agent, nowTick uint64) {
	for _, e := range w.grid.Neighbors(a.Pos, a.SenseRange, true) {
		if e.Kind != grid.KindResource {
			continue
		}
		r := w.resources[e.ID]
		if r == nil {
			continue
		}
		a.Memory.Upsert(memory.Record{
			Pos:        r.Pos,
			Reserve:    r.Reserve,
			DecayRate:  r.DecayRate,
			ObservedAt: nowTick,
		})
	}
}

// communicate gossips a's memory to every other agent in range. Each
// recipient is reached with CommunicationProb, then each record is copied
// with a's ShareProb.
func (w *World) communicate(a *Agent) {
	for _, e := range w.grid.Neighbors(a.Pos, a.CommRange, true) {
		if e.Kind != grid.KindAgent || e.ID == a.ID {
			continue
		}
		b := w.agents[e.ID]
		if b == nil {
			continue
		}
		if !w.rng.Chance(w.tune.CommunicationProb) {
			continue
		}
		a.Memory.ShareInto(&b.Memory, a.ShareProb, w.rng)
	}
}

// updateTarget picks a new target when a has none. Returning Explorers head
// for a random base cell; everyone else consults memory.
func (w *World) updateTarget(a *Agent, nowTick uint64) {
	if a.HasTarget {
		return
	}
	if a.Explorer != nil && a.Explorer.ReturningToBase {
		a.setTarget(w.randomBase())
		return
	}
	if p, ok := a.Memory.Select(nowTick, a.Pos, w.grid.Distance, w.tune.Epsilon, w.rng); ok {
		a.setTarget(p)
	}
}

// mine extracts MiningRate from the resource at a's cell. When there is
// nothing there the stale record is forgotten and a new target is chosen.
func (w *World) mine(a *Agent, nowTick uint64) bool {
	r := w.resourceAt(a.Pos)
	if r == nil {
		a.Memory.Forget(a.Pos)
		a.clearTarget()
		w.updateTarget(a, nowTick)
		return false
	}
	if r.Reserve <= 0 {
		a.clearTarget()
		w.updateTarget(a, nowTick)
		return false
	}
	a.Energy += a.MiningRate
	r.Reserve -= a.MiningRate
	if r.Reserve <= 0 {
		w.expireResource(r)
	}
	return true
}

// moveTo relocates a on the grid; the position field follows the grid.
func (w *World) moveTo(a *Agent, p grid.Pos) error {
	if p == a.Pos {
		return nil
	}
	if err := w.grid.Move(a.ID, p); err != nil {
		return err
	}
	a.Pos = p
	return nil
}

func (w *World) stepToward(a *Agent, to grid.Pos) error {
	return w.moveTo(a, w.grid.StepToward(a.Pos, to))
}

// maybeReproduce runs on ReproductionSteps boundaries. The child lands on
// a random cell within ChildRadius of the parent and joins the schedule on
// the next tick.
func (w *World) maybeReproduce(a *Agent, nowTick uint64) error {
	t := w.tune
	if nowTick%uint64(t.ReproductionSteps) != 0 {
		return nil
	}
	if a.Energy < 2*t.ReproductionEnergy || !w.rng.Chance(t.ReproduceProb) {
		return nil
	}
	a.Energy -= t.ReproductionEnergy

	kind := a.Kind
	if !w.rng.Chance(t.InheritanceProb) {
		kind = a.Kind.Other()
	}
	child, err := w.newAgent(kind)
	if err != nil {
		return err
	}
	pos := a.Pos
	if cells := w.grid.Neighborhood(a.Pos, t.ChildRadius, false); len(cells) > 0 {
		pos = cells[w.rng.IntN(len(cells))]
	}
	if err := w.addAgent(child, pos); err != nil {
		return err
	}
	w.births = append(w.births, BirthRecord{ID: child.ID, Kind: child.Kind.String(), ParentID: a.ID, Pos: pos})
	return nil
}

func (w *World) dieIfStarved(a *Agent, nowTick uint64) bool {
	if a.Energy > 0 {
		return false
	}
	w.grid.Remove(a.ID)
	w.sched.Remove(a.ID)
	delete(w.agents, a.ID)
	d := DeathRecord{
		ID:        a.ID,
		Kind:      a.Kind.String(),
		Age:       a.Age,
		Tick:      nowTick,
		MemoryLen: a.Memory.Len(),
	}
	w.stats.recordDeath(a.Kind, d)
	w.deaths = append(w.deaths, d)
	return true
}
