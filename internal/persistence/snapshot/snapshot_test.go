package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/tuning"
)

func TestWriteReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "42.snap.zst")
	snap := SnapshotV1{
		Header: Header{Version: Version, WorldID: "run_1", Tick: 42},
		Seed:   7,
		Width:  10,
		Height: 12,
		Tuning: tuning.Defaults(),
		RNG:    []byte{1, 2, 3},
		NextID: 9,
		Entities: []EntityV1{
			{Agent: &AgentV1{ID: 1, Kind: "explorer", Pos: [2]int{3, 4}, Energy: 99.5, Memory: []MemoryEntryV1{{Pos: [2]int{1, 1}, Reserve: 10}}}},
			{Resource: &ResourceV1{ID: 2, Pos: [2]int{5, 5}, Reserve: 700, DecayRate: -0.25}},
		},
		Stats: StatsV1{Explorers: 1, Deaths: []DeathV1{{ID: 8, Kind: "exploiter", Age: 30, Tick: 40}}},
	}
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h != snap.Header {
		t.Fatalf("header mismatch: %+v", h)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Tuning != snap.Tuning || got.NextID != 9 || len(got.Entities) != 2 {
		t.Fatalf("snapshot mismatch: %+v", got)
	}
	if got.Entities[0].Agent == nil || got.Entities[0].Agent.Memory[0].Reserve != 10 {
		t.Fatalf("agent lost: %+v", got.Entities[0])
	}
	if got.Entities[1].Resource == nil || got.Entities[1].Resource.DecayRate != -0.25 {
		t.Fatalf("resource lost: %+v", got.Entities[1])
	}
	if len(got.Stats.Deaths) != 1 || got.Stats.Deaths[0].Age != 30 {
		t.Fatalf("stats lost: %+v", got.Stats)
	}
}

func TestReadSnapshotRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.snap.zst")
	if err := WriteSnapshot(path, SnapshotV1{Header: Header{Version: 99}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}
