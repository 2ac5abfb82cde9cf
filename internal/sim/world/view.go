package world

import (
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/memory"
)

const EntityResource = "resource"

// EntityView is a read-only copy of one grid occupant.
type EntityView struct {
	ID     uint64   `json:"id"`
	Type   string   `json:"type"`
	Pos    grid.Pos `json:"pos"`
	Energy float64  `json:"energy"`
}

// Entities lists live agents and resources in scheduler order.
func (w *World) Entities() []EntityView {
	out := make([]EntityView, 0, w.sched.Len())
	w.sched.Each(func(id uint64, e entity) {
		switch {
		case e.agent != nil:
			out = append(out, EntityView{ID: id, Type: e.agent.Kind.String(), Pos: e.agent.Pos, Energy: e.agent.Energy})
		case e.res != nil:
			out = append(out, EntityView{ID: id, Type: EntityResource, Pos: e.res.Pos, Energy: e.res.Reserve})
		}
	})
	return out
}

// Agent returns a copy of the live agent with id.
func (w *World) Agent(id uint64) (Agent, bool) {
	a := w.agents[id]
	if a == nil {
		return Agent{}, false
	}
	cp := *a
	cp.Memory = memory.Table{}
	cp.Memory.Reset(a.Memory.Records())
	if a.Explorer != nil {
		ex := *a.Explorer
		cp.Explorer = &ex
	}
	if a.Exploiter != nil {
		ex := *a.Exploiter
		cp.Exploiter = &ex
	}
	return cp, true
}

func (w *World) Resource(id uint64) (Resource, bool) {
	r := w.resources[id]
	if r == nil {
		return Resource{}, false
	}
	return *r, true
}
