package world

import (
	"fmt"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/persistence/snapshot"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"
)

// ExportSnapshot captures the state between ticks. Header.Tick is the next
// tick to run.
func (w *World) ExportSnapshot() (snapshot.SnapshotV1, error) {
	st, err := w.rng.State()
	if err != nil {
		return snapshot.SnapshotV1{}, fmt.Errorf("rng state: %w", err)
	}
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
		},
		Seed:               w.cfg.Seed,
		Population:         w.cfg.Population,
		Coop:               w.cfg.Coop,
		EnergyShareProb:    w.cfg.EnergyShareProb,
		Width:              w.cfg.Width,
		Height:             w.cfg.Height,
		Torus:              w.cfg.Torus,
		MaxTicks:           w.cfg.MaxTicks,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		Tuning:             w.tune,
		Center:             posV1(w.center),
		RNG:                st,
		NextID:             w.nextID,
		Entities:           make([]snapshot.EntityV1, 0, w.sched.Len()),
		Stats:              w.stats.export(),
	}
	w.sched.Each(func(_ uint64, e entity) {
		switch {
		case e.agent != nil:
			snap.Entities = append(snap.Entities, snapshot.EntityV1{Agent: exportAgent(e.agent)})
		case e.res != nil:
			r := e.res
			snap.Entities = append(snap.Entities, snapshot.EntityV1{Resource: &snapshot.ResourceV1{
				ID:        r.ID,
				Pos:       posV1(r.Pos),
				Reserve:   r.Reserve,
				DecayRate: r.DecayRate,
			}})
		}
	})
	return snap, nil
}

func exportAgent(a *Agent) *snapshot.AgentV1 {
	out := &snapshot.AgentV1{
		ID:         a.ID,
		Kind:       a.Kind.String(),
		Pos:        posV1(a.Pos),
		Energy:     a.Energy,
		Age:        a.Age,
		Target:     posV1(a.Target),
		HasTarget:  a.HasTarget,
		LivingCost: a.LivingCost,
		SenseRange: a.SenseRange,
		CommRange:  a.CommRange,
		MiningRate: a.MiningRate,
		ShareProb:  a.ShareProb,
	}
	for _, r := range a.Memory.Records() {
		out.Memory = append(out.Memory, snapshot.MemoryEntryV1{
			Pos:        posV1(r.Pos),
			Reserve:    r.Reserve,
			DecayRate:  r.DecayRate,
			ObservedAt: r.ObservedAt,
		})
	}
	if ex := a.Explorer; ex != nil {
		out.Drift = int(ex.Drift)
		out.MineMode = ex.MineMode
		out.BoundarySteps = ex.BoundarySteps
		out.ReturningToBase = ex.ReturningToBase
		out.CycleRate = ex.CycleRate
	}
	if ex := a.Exploiter; ex != nil {
		out.StaticCost = ex.StaticCost
		out.AtBase = ex.AtBase
		out.Exploiting = ex.Exploiting
		out.EnergyShareProb = ex.EnergyShareProb
	}
	return out
}

func (s *Stats) export() snapshot.StatsV1 {
	out := snapshot.StatsV1{
		Explorers:    s.explorers,
		Exploiters:   s.exploiters,
		Births:       s.births,
		MeanReserve:  append([]float64(nil), s.meanReserve...),
		ExpectedAges: append([]float64(nil), s.expectedAges...),
	}
	for _, p := range s.population {
		out.Population = append(out.Population, snapshot.PopulationSampleV1{Tick: p.Tick, Explorers: p.Explorers, Exploiters: p.Exploiters})
	}
	for _, d := range s.deaths {
		out.Deaths = append(out.Deaths, snapshot.DeathV1{ID: d.ID, Kind: d.Kind, Age: d.Age, Tick: d.Tick, MemoryLen: d.MemoryLen})
	}
	return out
}

func posV1(p grid.Pos) [2]int { return [2]int{p.X, p.Y} }
