package world

import (
	"encoding/json"
	"testing"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/observerproto"
)

func TestObserverReceivesFrames(t *testing.T) {
	w := newTestWorld(t, testConfig())
	agentsOnly := make(chan []byte, 1)
	full := make(chan []byte, 1)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", Out: agentsOnly})
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O2", Out: full, Resources: true})

	for i := 0; i < 3; i++ {
		if err := w.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	var f observerproto.FrameMsg
	if err := json.Unmarshal(<-agentsOnly, &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Type != observerproto.TypeFrame || f.Tick != 2 {
		t.Fatalf("expected only the latest frame, got %s tick %d", f.Type, f.Tick)
	}
	if len(f.Entities) != w.LiveAgents() {
		t.Fatalf("entities %d, live agents %d", len(f.Entities), w.LiveAgents())
	}
	for _, e := range f.Entities {
		if e.Type == EntityResource {
			t.Fatalf("resources not requested")
		}
	}

	if err := json.Unmarshal(<-full, &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(f.Entities) != w.LiveAgents()+w.LiveResources() {
		t.Fatalf("full frame has %d entities", len(f.Entities))
	}

	w.handleObserverLeave("O1")
	if _, ok := <-agentsOnly; ok {
		t.Fatalf("channel should be closed after leave")
	}
}

func TestObserverEveryTicks(t *testing.T) {
	w := newTestWorld(t, testConfig())
	out := make(chan []byte, 8)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", Out: out, EveryTicks: 5})
	for i := 0; i < 10; i++ {
		if err := w.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if len(out) != 2 {
		t.Fatalf("expected frames at ticks 0 and 5, got %d", len(out))
	}
}
