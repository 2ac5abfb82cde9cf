package world

import (
	"fmt"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/persistence/snapshot"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/memory"
)

// NewFromSnapshot rebuilds a world that continues exactly where the
// snapshot was taken. Pacing and identity come from cfg; everything that
// affects the simulation comes from the snapshot.
func NewFromSnapshot(cfg WorldConfig, snap snapshot.SnapshotV1) (*World, error) {
	if snap.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if cfg.ID == "" {
		cfg.ID = snap.Header.WorldID
	}
	cfg.Seed = snap.Seed
	cfg.Population = snap.Population
	cfg.Coop = snap.Coop
	cfg.EnergyShareProb = snap.EnergyShareProb
	cfg.Width = snap.Width
	cfg.Height = snap.Height
	cfg.Torus = snap.Torus
	if cfg.MaxTicks == 0 {
		cfg.MaxTicks = snap.MaxTicks
	}
	if cfg.SnapshotEveryTicks == 0 {
		cfg.SnapshotEveryTicks = snap.SnapshotEveryTicks
	}
	cfg.Tuning = snap.Tuning
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("snapshot config: %w", err)
	}

	w, err := newEmpty(cfg)
	if err != nil {
		return nil, err
	}
	if err := w.rng.Restore(snap.RNG); err != nil {
		return nil, fmt.Errorf("rng state: %w", err)
	}
	w.center = posFromV1(snap.Center)
	w.setBases()
	w.nextID = snap.NextID

	for i, e := range snap.Entities {
		switch {
		case e.Agent != nil:
			a, err := importAgent(e.Agent)
			if err != nil {
				return nil, fmt.Errorf("entity %d: %w", i, err)
			}
			if err := w.grid.Place(grid.Entry{ID: a.ID, Kind: grid.KindAgent}, a.Pos); err != nil {
				return nil, fmt.Errorf("entity %d: %w", i, err)
			}
			w.agents[a.ID] = a
			w.sched.Add(a.ID, entity{agent: a})
		case e.Resource != nil:
			r := &Resource{ID: e.Resource.ID, Pos: posFromV1(e.Resource.Pos), Reserve: e.Resource.Reserve, DecayRate: e.Resource.DecayRate}
			if err := w.grid.Place(grid.Entry{ID: r.ID, Kind: grid.KindResource}, r.Pos); err != nil {
				return nil, fmt.Errorf("entity %d: %w", i, err)
			}
			w.resources[r.ID] = r
			w.sched.Add(r.ID, entity{res: r})
		default:
			return nil, fmt.Errorf("entity %d is empty", i)
		}
	}
	w.stats.load(snap.Stats)
	w.tick.Store(snap.Header.Tick)
	return w, nil
}

func importAgent(in *snapshot.AgentV1) (*Agent, error) {
	kind, err := ParseKind(in.Kind)
	if err != nil {
		return nil, err
	}
	a := &Agent{
		ID:         in.ID,
		Kind:       kind,
		Pos:        posFromV1(in.Pos),
		Energy:     in.Energy,
		Age:        in.Age,
		Target:     posFromV1(in.Target),
		HasTarget:  in.HasTarget,
		LivingCost: in.LivingCost,
		SenseRange: in.SenseRange,
		CommRange:  in.CommRange,
		MiningRate: in.MiningRate,
		ShareProb:  in.ShareProb,
	}
	for _, m := range in.Memory {
		a.Memory.Upsert(memory.Record{
			Pos:        posFromV1(m.Pos),
			Reserve:    m.Reserve,
			DecayRate:  m.DecayRate,
			ObservedAt: m.ObservedAt,
		})
	}
	switch kind {
	case KindExplorer:
		a.Explorer = &ExplorerState{
			Drift:           Direction(in.Drift % numDirections),
			MineMode:        in.MineMode,
			BoundarySteps:   in.BoundarySteps,
			ReturningToBase: in.ReturningToBase,
			CycleRate:       max(1, in.CycleRate),
		}
	case KindExploiter:
		a.Exploiter = &ExploiterState{
			StaticCost:      in.StaticCost,
			AtBase:          in.AtBase,
			Exploiting:      in.Exploiting,
			EnergyShareProb: in.EnergyShareProb,
		}
	}
	return a, nil
}

func (s *Stats) load(in snapshot.StatsV1) {
	s.explorers = in.Explorers
	s.exploiters = in.Exploiters
	s.births = in.Births
	s.meanReserve = append([]float64(nil), in.MeanReserve...)
	s.expectedAges = append([]float64(nil), in.ExpectedAges...)
	s.population = s.population[:0]
	for _, p := range in.Population {
		s.population = append(s.population, PopulationSample{Tick: p.Tick, Explorers: p.Explorers, Exploiters: p.Exploiters})
	}
	s.deaths = s.deaths[:0]
	for _, d := range in.Deaths {
		s.deaths = append(s.deaths, DeathRecord{ID: d.ID, Kind: d.Kind, Age: d.Age, Tick: d.Tick, MemoryLen: d.MemoryLen})
	}
}

func posFromV1(v [2]int) grid.Pos { return grid.Pos{X: v[0], Y: v[1]} }
