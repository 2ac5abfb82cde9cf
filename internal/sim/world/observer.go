package world

import (
	"encoding/json"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/observerproto"
)

// ObserverJoinRequest registers a read-only observer session. Frames are
// delivered on Out with a drop-oldest policy.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID  string
	Out        chan []byte
	EveryTicks int
	Resources  bool
}

// ObserverSubscribeRequest updates an existing session's settings.
type ObserverSubscribeRequest struct {
	SessionID  string
	EveryTicks int
	Resources  bool
}

type observerClient struct {
	id         string
	out        chan []byte
	everyTicks int
	resources  bool
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }

func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }

func (w *World) ObserverLeave() chan<- string { return w.observerLeave }

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		close(old.out)
	}
	w.observers[req.SessionID] = &observerClient{
		id:         req.SessionID,
		out:        req.Out,
		everyTicks: max(1, req.EveryTicks),
		resources:  req.Resources,
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	c.everyTicks = max(1, req.EveryTicks)
	c.resources = req.Resources
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.out)
}

// stepObservers encodes at most two frames per tick (with and without
// resources) and fans them out.
func (w *World) stepObservers(nowTick uint64, mean float64) {
	if len(w.observers) == 0 {
		return
	}
	var full, agentsOnly []byte
	for _, c := range w.observers {
		if nowTick%uint64(c.everyTicks) != 0 {
			continue
		}
		buf := &agentsOnly
		if c.resources {
			buf = &full
		}
		if *buf == nil {
			b, err := json.Marshal(w.buildFrame(nowTick, mean, c.resources))
			if err != nil {
				continue
			}
			*buf = b
		}
		sendLatest(c.out, *buf)
	}
}

func (w *World) buildFrame(nowTick uint64, mean float64, withResources bool) observerproto.FrameMsg {
	explorers, exploiters := w.Counts()
	f := observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Tick:            nowTick,
		Explorers:       explorers,
		Exploiters:      exploiters,
		Resources:       len(w.resources),
		MeanReserve:     mean,
		Entities:        []observerproto.EntityState{},
	}
	for _, v := range w.Entities() {
		if v.Type == EntityResource && !withResources {
			continue
		}
		f.Entities = append(f.Entities, observerproto.EntityState{
			ID:     v.ID,
			Type:   v.Type,
			Pos:    [2]int{v.Pos.X, v.Pos.Y},
			Energy: v.Energy,
		})
	}
	for _, b := range w.births {
		f.Births = append(f.Births, b.ID)
	}
	for _, d := range w.deaths {
		f.Deaths = append(f.Deaths, observerproto.DeathInfo{ID: d.ID, Kind: d.Kind, Age: d.Age})
	}
	return f
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
