package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/persistence/snapshot"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/world"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "runs.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteIndex_TicksAndDeaths(t *testing.T) {
	s := openTestIndex(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rw := s.Run("coop_0.5_run_1")
	for i := uint64(0); i < 10; i++ {
		e := world.TickLogEntry{Tick: i, Explorers: 2, Exploiters: 8, Resources: 20, MeanReserve: 800, Digest: "x"}
		if i == 4 {
			e.Deaths = []world.DeathRecord{
				{ID: 3, Kind: "explorer", Age: 4, Tick: 4},
				{ID: 5, Kind: "exploiter", Age: 4, Tick: 4, MemoryLen: 2},
			}
		}
		if err := rw.WriteTick(e); err != nil {
			t.Fatalf("write tick: %v", err)
		}
	}
	rw.RecordSnapshot("/tmp/10.snap.zst", snapshot.SnapshotV1{
		Header:   snapshot.Header{Tick: 10},
		Entities: []snapshot.EntityV1{{Agent: &snapshot.AgentV1{ID: 1}}, {Resource: &snapshot.ResourceV1{ID: 2}}},
	})
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	n, err := s.TickCount(ctx, "coop_0.5_run_1")
	if err != nil || n != 10 {
		t.Fatalf("tick count=%d err=%v", n, err)
	}
	deaths, err := s.DeathsByKind(ctx, "coop_0.5_run_1")
	if err != nil {
		t.Fatalf("deaths: %v", err)
	}
	if deaths["explorer"] != 1 || deaths["exploiter"] != 1 {
		t.Fatalf("deaths by kind: %v", deaths)
	}
	var agents, resources int
	if err := s.db.QueryRowContext(ctx, `SELECT agents, resources FROM snapshots WHERE run_id = ? AND tick = 10`, "coop_0.5_run_1").Scan(&agents, &resources); err != nil {
		t.Fatalf("snapshot row: %v", err)
	}
	if agents != 1 || resources != 1 {
		t.Fatalf("snapshot counts agents=%d resources=%d", agents, resources)
	}
}

func TestSQLiteIndex_RunsAggregateByCoop(t *testing.T) {
	s := openTestIndex(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows := []RunRow{
		{RunID: "a", Coop: 0, Seed: 1, Summary: world.Summary{Ticks: 100, MeanAge: 10, MeanExpectedAge: 100}},
		{RunID: "b", Coop: 0, Seed: 2, Summary: world.Summary{Ticks: 120, MeanAge: 20, MeanExpectedAge: 110}},
		{RunID: "c", Coop: 0.5, Seed: 3, Torus: true, Summary: world.Summary{Ticks: 90, MeanAge: 40, Births: 7}},
	}
	for _, r := range rows {
		if err := s.RecordRun(ctx, r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	got, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].RunID != "a" || got[2].RunID != "c" {
		t.Fatalf("runs: %+v", got)
	}
	if !got[2].Torus || got[2].Summary.Births != 7 || got[2].Summary.Ticks != 90 {
		t.Fatalf("run c round trip: %+v", got[2])
	}

	table, err := s.CoopAgeTable(ctx)
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("expected two coop groups, got %+v", table)
	}
	if table[0].Coop != 0 || table[0].Runs != 2 || table[0].MeanAge != 15 || table[0].MeanExpectedAge != 105 {
		t.Fatalf("coop 0 row: %+v", table[0])
	}
	if table[1].Coop != 0.5 || table[1].MeanAge != 40 {
		t.Fatalf("coop 0.5 row: %+v", table[1])
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick}

	rw := s.Run("r")
	_ = rw.WriteTick(world.TickLogEntry{Tick: 2, Deaths: []world.DeathRecord{{ID: 1}, {ID: 2}}})
	rw.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropDeathTotal != 2 || st.DropSnapshotTotal != 1 {
		t.Fatalf("drop stats: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_ClosedIgnoresWrites(t *testing.T) {
	s := openTestIndex(t)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Run("r").WriteTick(world.TickLogEntry{}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := s.RecordRun(context.Background(), RunRow{RunID: "r"}); err == nil {
		t.Fatalf("expected error recording into a closed index")
	}
}
