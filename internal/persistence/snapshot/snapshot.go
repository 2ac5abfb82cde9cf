package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/tuning"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 captures everything needed to resume a run bit-for-bit.
// Entities are stored in scheduler registration order.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed            int64   `json:"seed"`
	Population      int     `json:"population"`
	Coop            float64 `json:"coop"`
	EnergyShareProb float64 `json:"energy_share_prob"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Torus           bool    `json:"torus"`
	MaxTicks        uint64  `json:"max_ticks,omitempty"`

	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`

	Tuning tuning.Tuning `json:"tuning"`

	Center [2]int `json:"center"`
	RNG    []byte `json:"rng"`
	NextID uint64 `json:"next_id"`

	Entities []EntityV1 `json:"entities"`

	Stats StatsV1 `json:"stats"`
}

// EntityV1 holds exactly one of Agent or Resource.
type EntityV1 struct {
	Agent    *AgentV1    `json:"agent,omitempty"`
	Resource *ResourceV1 `json:"resource,omitempty"`
}

type AgentV1 struct {
	ID     uint64  `json:"id"`
	Kind   string  `json:"kind"`
	Pos    [2]int  `json:"pos"`
	Energy float64 `json:"energy"`
	Age    int     `json:"age"`

	Target    [2]int `json:"target"`
	HasTarget bool   `json:"has_target"`

	LivingCost float64 `json:"living_cost"`
	SenseRange int     `json:"sense_range"`
	CommRange  int     `json:"comm_range"`
	MiningRate float64 `json:"mining_rate"`
	ShareProb  float64 `json:"share_prob"`

	Memory []MemoryEntryV1 `json:"memory,omitempty"`

	// Explorer-only.
	Drift           int  `json:"drift,omitempty"`
	MineMode        bool `json:"mine_mode,omitempty"`
	BoundarySteps   int  `json:"boundary_steps,omitempty"`
	ReturningToBase bool `json:"returning_to_base,omitempty"`
	CycleRate       int  `json:"cycle_rate,omitempty"`

	// Exploiter-only.
	StaticCost      float64 `json:"static_cost,omitempty"`
	AtBase          bool    `json:"at_base,omitempty"`
	Exploiting      bool    `json:"exploiting,omitempty"`
	EnergyShareProb float64 `json:"energy_share_prob,omitempty"`
}

type MemoryEntryV1 struct {
	Pos        [2]int  `json:"pos"`
	Reserve    float64 `json:"reserve"`
	DecayRate  float64 `json:"decay_rate"`
	ObservedAt uint64  `json:"observed_at"`
}

type ResourceV1 struct {
	ID        uint64  `json:"id"`
	Pos       [2]int  `json:"pos"`
	Reserve   float64 `json:"reserve"`
	DecayRate float64 `json:"decay_rate"`
}

type StatsV1 struct {
	Explorers  int `json:"explorers"`
	Exploiters int `json:"exploiters"`
	Births     int `json:"births"`

	Population   []PopulationSampleV1 `json:"population,omitempty"`
	MeanReserve  []float64            `json:"mean_reserve,omitempty"`
	Deaths       []DeathV1            `json:"deaths,omitempty"`
	ExpectedAges []float64            `json:"expected_ages,omitempty"`
}

type PopulationSampleV1 struct {
	Tick       uint64 `json:"tick"`
	Explorers  int    `json:"explorers"`
	Exploiters int    `json:"exploiters"`
}

type DeathV1 struct {
	ID        uint64 `json:"id"`
	Kind      string `json:"kind"`
	Age       int    `json:"age"`
	Tick      uint64 `json:"tick"`
	MemoryLen int    `json:"memory_len"`
}

// WriteSnapshot stores a JSON header line followed by the gob-encoded
// snapshot, all inside one zstd stream.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
