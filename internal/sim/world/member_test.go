package world

import (
	"errors"
	"testing"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/memory"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/tuning"
)

func TestResourceDecaysAndIsPurgedFromMemory(t *testing.T) {
	w := emptyWorld(t, nil)
	res := placeResource(t, w, grid.Pos{X: 50, Y: 50}, 10, 2)
	a := placeAgent(t, w, KindExploiter, grid.Pos{X: 2, Y: 2}, 1000)
	a.Memory.Upsert(memory.Record{Pos: res.Pos, Reserve: 10, DecayRate: 2})

	for i := 1; i <= 4; i++ {
		if err := w.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
		got, ok := w.Resource(res.ID)
		if !ok || got.Reserve != 10-2*float64(i) {
			t.Fatalf("after %d ticks: %+v ok=%v", i, got, ok)
		}
	}
	if err := w.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if _, ok := w.Resource(res.ID); ok || w.LiveResources() != 0 {
		t.Fatalf("resource should be gone after 5 ticks")
	}
	if _, ok := w.grid.PosOf(res.ID); ok || w.sched.Has(res.ID) {
		t.Fatalf("depleted resource left in grid or scheduler")
	}
	if a.Memory.Has(res.Pos) {
		t.Fatalf("memory still references the depleted cell")
	}
}

func TestMineAddsExactlyTheMiningRate(t *testing.T) {
	cases := []struct {
		kind AgentKind
		rate float64
	}{
		{KindExplorer, 0.5},
		{KindExploiter, 1},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			w := emptyWorld(t, nil)
			pos := grid.Pos{X: 10, Y: 10}
			res := placeResource(t, w, pos, 100, 0)
			a := placeAgent(t, w, tc.kind, pos, 40)
			a.setTarget(pos)

			if !w.mine(a, 0) {
				t.Fatalf("mine failed")
			}
			if a.Energy != 40+tc.rate || res.Reserve != 100-tc.rate {
				t.Fatalf("energy=%v reserve=%v", a.Energy, res.Reserve)
			}
		})
	}
}

func TestMineExhaustsResource(t *testing.T) {
	w := emptyWorld(t, nil)
	pos := grid.Pos{X: 10, Y: 10}
	res := placeResource(t, w, pos, 0.5, 0)
	a := placeAgent(t, w, KindExplorer, pos, 40)
	a.Memory.Upsert(memory.Record{Pos: pos, Reserve: 0.5})

	if !w.mine(a, 0) {
		t.Fatalf("mine failed")
	}
	if _, ok := w.Resource(res.ID); ok {
		t.Fatalf("resource mined to zero must expire")
	}
	if a.Memory.Has(pos) {
		t.Fatalf("expired resource must be purged from memory")
	}
}

func TestMineOnEmptyCellForgetsAndRetargets(t *testing.T) {
	w := emptyWorld(t, func(tn *tuning.Tuning) { tn.Epsilon = 0 })
	here := grid.Pos{X: 5, Y: 5}
	other := grid.Pos{X: 20, Y: 20}
	a := placeAgent(t, w, KindExploiter, here, 40)
	a.Memory.Upsert(memory.Record{Pos: here, Reserve: 500})
	a.Memory.Upsert(memory.Record{Pos: other, Reserve: 300})
	a.setTarget(here)

	if w.mine(a, 0) {
		t.Fatalf("mining an empty cell must fail")
	}
	if a.Memory.Has(here) {
		t.Fatalf("stale record not forgotten")
	}
	if !a.HasTarget || a.Target != other {
		t.Fatalf("expected retarget to %v, got %v (has=%v)", other, a.Target, a.HasTarget)
	}
}

func TestSenseIncludesOwnCell(t *testing.T) {
	w := emptyWorld(t, func(tn *tuning.Tuning) { tn.ExploiterSenseRange = 0 })
	pos := grid.Pos{X: 7, Y: 7}
	placeResource(t, w, pos, 123, 0.5)
	placeResource(t, w, grid.Pos{X: 8, Y: 7}, 50, 0)
	a := placeAgent(t, w, KindExploiter, pos, 100)

	w.sense(a, 9)
	if a.Memory.Len() != 1 {
		t.Fatalf("expected only the own cell, got %d records", a.Memory.Len())
	}
	rec, _ := a.Memory.Get(pos)
	if rec.Reserve != 123 || rec.DecayRate != 0.5 || rec.ObservedAt != 9 {
		t.Fatalf("record: %+v", rec)
	}
}

func TestCommunicateRespectsCoop(t *testing.T) {
	for _, coop := range []float64{0, 1} {
		w := emptyWorld(t, func(tn *tuning.Tuning) { tn.CommunicationProb = 1 })
		a := placeAgent(t, w, KindExplorer, grid.Pos{X: 10, Y: 10}, 100)
		b := placeAgent(t, w, KindExploiter, grid.Pos{X: 11, Y: 10}, 100)
		far := placeAgent(t, w, KindExploiter, grid.Pos{X: 59, Y: 59}, 100)
		a.ShareProb = coop
		for i := 0; i < 5; i++ {
			a.Memory.Upsert(memory.Record{Pos: grid.Pos{X: i, Y: 0}, Reserve: 100})
		}

		w.communicate(a)

		want := 0
		if coop == 1 {
			want = 5
		}
		if b.Memory.Len() != want {
			t.Fatalf("coop=%v: recipient has %d records, want %d", coop, b.Memory.Len(), want)
		}
		if far.Memory.Len() != 0 {
			t.Fatalf("agent out of range received gossip")
		}
		if a.Memory.Len() != 5 {
			t.Fatalf("sharer's memory changed")
		}
	}
}

func TestReproductionInheritance(t *testing.T) {
	cases := []struct {
		name        string
		inheritance float64
		parent      AgentKind
		want        AgentKind
	}{
		{"always inherit explorer", 1, KindExplorer, KindExplorer},
		{"always inherit exploiter", 1, KindExploiter, KindExploiter},
		{"never inherit explorer", 0, KindExplorer, KindExploiter},
		{"never inherit exploiter", 0, KindExploiter, KindExplorer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := emptyWorld(t, func(tn *tuning.Tuning) {
				tn.ReproduceProb = 1
				tn.InheritanceProb = tc.inheritance
			})
			parent := placeAgent(t, w, tc.parent, grid.Pos{X: 30, Y: 30}, 100)

			if err := w.maybeReproduce(parent, 0); err != nil {
				t.Fatalf("reproduce: %v", err)
			}
			if parent.Energy != 70 {
				t.Fatalf("parent energy %v, want 70", parent.Energy)
			}
			if len(w.births) != 1 {
				t.Fatalf("expected one birth, got %d", len(w.births))
			}
			child := w.agents[w.births[0].ID]
			if child == nil || child.Kind != tc.want {
				t.Fatalf("child %+v, want kind %v", child, tc.want)
			}
			if d := w.grid.Distance(child.Pos, parent.Pos); d < 1 || d > w.tune.ChildRadius {
				t.Fatalf("child placed at distance %d", d)
			}
		})
	}
}

func TestReproductionGates(t *testing.T) {
	w := emptyWorld(t, func(tn *tuning.Tuning) { tn.ReproduceProb = 1 })
	poor := placeAgent(t, w, KindExploiter, grid.Pos{X: 30, Y: 30}, 59)
	rich := placeAgent(t, w, KindExploiter, grid.Pos{X: 10, Y: 10}, 100)

	if err := w.maybeReproduce(poor, 0); err != nil || len(w.births) != 0 {
		t.Fatalf("agent below twice the cost must not reproduce")
	}
	if err := w.maybeReproduce(rich, 7); err != nil || len(w.births) != 0 {
		t.Fatalf("reproduction only runs on the reproduction interval")
	}
}

func TestStarvedAgentIsRemoved(t *testing.T) {
	w := emptyWorld(t, nil)
	a := placeAgent(t, w, KindExplorer, grid.Pos{X: 3, Y: 3}, 0.1)

	if err := w.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if _, ok := w.agents[a.ID]; ok || w.sched.Has(a.ID) {
		t.Fatalf("starved agent still live")
	}
	if _, ok := w.grid.PosOf(a.ID); ok {
		t.Fatalf("starved agent still on the grid")
	}
	deaths := w.Stats().Deaths()
	if len(deaths) != 1 || deaths[0].ID != a.ID || deaths[0].Kind != "explorer" || deaths[0].Age != 1 {
		t.Fatalf("death record: %+v", deaths)
	}
}

func TestUnknownKindAbortsStep(t *testing.T) {
	w := emptyWorld(t, nil)
	bad := &Agent{ID: w.nextEntityID(), Kind: AgentKind(9), Energy: 10}
	if err := w.addAgent(bad, grid.Pos{X: 1, Y: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := w.Step(); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := w.newAgent(AgentKind(9)); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("newAgent: %v", err)
	}
}

func packRecord(p grid.Pos, reserve float64) memory.Record {
	return memory.Record{Pos: p, Reserve: reserve}
}
