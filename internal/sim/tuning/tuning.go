package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema/tuning.schema.json
var schemaJSON string

type Tuning struct {
	// Initial population layout.
	PopMargin     int     `yaml:"pop_margin"`
	PopSpread     int     `yaml:"pop_spread"`
	ExplorerRatio float64 `yaml:"explorer_ratio"`

	MeanEnergy   float64 `yaml:"mean_energy"`
	StddevEnergy float64 `yaml:"stddev_energy"`

	ReserveCount  int     `yaml:"reserve_count"`
	MeanReserve   float64 `yaml:"mean_reserve"`
	StddevReserve float64 `yaml:"stddev_reserve"`
	DecayRate     float64 `yaml:"decay_rate"`

	ExplorerCostMean float64 `yaml:"explorer_cost_mean"`
	ExplorerCostStd  float64 `yaml:"explorer_cost_std"`
	ExplorerCostMin  float64 `yaml:"explorer_cost_min"`

	ExploiterCostMean      float64 `yaml:"exploiter_cost_mean"`
	ExploiterCostStd       float64 `yaml:"exploiter_cost_std"`
	ExploiterCostMin       float64 `yaml:"exploiter_cost_min"`
	ExploiterStaticCostMin float64 `yaml:"exploiter_static_cost_min"`
	ExploiterStaticDivisor float64 `yaml:"exploiter_static_cost_divisor"`
	ExploiterMoveProb      float64 `yaml:"exploiter_move_prob"`

	ExplorerSenseRange  int `yaml:"explorer_sense_range"`
	ExplorerCommRange   int `yaml:"explorer_comm_range"`
	ExploiterSenseRange int `yaml:"exploiter_sense_range"`
	ExploiterCommRange  int `yaml:"exploiter_comm_range"`

	SenseSteps         int     `yaml:"sense_steps"`
	CommunicationSteps int     `yaml:"communication_steps"`
	CommunicationProb  float64 `yaml:"communication_prob"`

	ExplorerMiningRate  float64 `yaml:"explorer_mining_rate"`
	ExploiterMiningRate float64 `yaml:"exploiter_mining_rate"`

	ThresholdExplorer  float64 `yaml:"threshold_explorer"`
	ThresholdExploiter float64 `yaml:"threshold_exploiter"`
	MiningFactor       float64 `yaml:"mining_factor"`

	ReproductionSteps  int     `yaml:"reproduction_steps"`
	ReproductionEnergy float64 `yaml:"reproduction_energy"`
	ReproduceProb      float64 `yaml:"reproduce_prob"`
	InheritanceProb    float64 `yaml:"inheritance_prob"`
	ChildRadius        int     `yaml:"child_radius"`

	BaseReturnInterval   int `yaml:"base_return_interval"`
	BaseReturnDev        int `yaml:"base_return_dev"`
	EnergyTransmitRadius int `yaml:"energy_transmit_radius"`
	BoundaryFlipSteps    int `yaml:"boundary_flip_steps"`

	Epsilon float64 `yaml:"epsilon"`

	Homeostasis Homeostasis `yaml:"homeostasis"`
	Spawn       Spawn       `yaml:"spawn"`
}

// Homeostasis is the soft control loop on mean live reserve.
type Homeostasis struct {
	ReserveLow  float64 `yaml:"reserve_low"`
	ReserveHigh float64 `yaml:"reserve_high"`
	Adjust      float64 `yaml:"decay_rate_adjust"`
	AdjustProb  float64 `yaml:"adjust_prob"`
}

// Spawn covers resource relocation and new resource creation.
type Spawn struct {
	RelocateEveryTicks int     `yaml:"relocate_every_ticks"`
	RelocateProb       float64 `yaml:"relocate_prob"`
	NewEveryTicks      int     `yaml:"new_every_ticks"`
	NewProb            float64 `yaml:"new_prob"`
	NewMinPopulation   int     `yaml:"new_min_population"`
}

func Defaults() Tuning {
	return Tuning{
		PopMargin:     20,
		PopSpread:     20,
		ExplorerRatio: 0.1,

		MeanEnergy:   100,
		StddevEnergy: 10,

		ReserveCount:  20,
		MeanReserve:   800,
		StddevReserve: 20,
		DecayRate:     1,

		ExplorerCostMean: 0.5,
		ExplorerCostStd:  0.25,
		ExplorerCostMin:  0.25,

		ExploiterCostMean:      1.0,
		ExploiterCostStd:       0.5,
		ExploiterCostMin:       0.5,
		ExploiterStaticCostMin: 0.2,
		ExploiterStaticDivisor: 4,
		ExploiterMoveProb:      0.2,

		ExplorerSenseRange:  15,
		ExplorerCommRange:   20,
		ExploiterSenseRange: 8,
		ExploiterCommRange:  5,

		SenseSteps:         10,
		CommunicationSteps: 10,
		CommunicationProb:  0.3,

		ExplorerMiningRate:  0.5,
		ExploiterMiningRate: 1,

		ThresholdExplorer:  50,
		ThresholdExploiter: 80,
		MiningFactor:       2,

		ReproductionSteps:  20,
		ReproductionEnergy: 30,
		ReproduceProb:      0.05,
		InheritanceProb:    0.75,
		ChildRadius:        3,

		BaseReturnInterval:   200,
		BaseReturnDev:        50,
		EnergyTransmitRadius: 8,
		BoundaryFlipSteps:    15,

		Epsilon: 0.5,

		Homeostasis: Homeostasis{
			ReserveLow:  750,
			ReserveHigh: 900,
			Adjust:      0.5,
			AdjustProb:  0.1,
		},
		Spawn: Spawn{
			RelocateEveryTicks: 100,
			RelocateProb:       0.1,
			NewEveryTicks:      75,
			NewProb:            0.2,
			NewMinPopulation:   10,
		},
	}
}

// Load reads a tuning file on top of Defaults. The document is checked
// against the embedded schema before it is decoded.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := validateDoc(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func validateDoc(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees plain JSON types.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	s, err := jsonschema.CompileString("tuning.schema.json", schemaJSON)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return s.Validate(v)
}

// Validate checks cross-field constraints the schema cannot express.
func (t Tuning) Validate() error {
	var errs []error
	prob := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %v", name, v))
		}
	}
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %d", name, v))
		}
	}
	prob("explorer_ratio", t.ExplorerRatio)
	prob("communication_prob", t.CommunicationProb)
	prob("exploiter_move_prob", t.ExploiterMoveProb)
	prob("reproduce_prob", t.ReproduceProb)
	prob("inheritance_prob", t.InheritanceProb)
	prob("epsilon", t.Epsilon)
	prob("homeostasis.adjust_prob", t.Homeostasis.AdjustProb)
	prob("spawn.relocate_prob", t.Spawn.RelocateProb)
	prob("spawn.new_prob", t.Spawn.NewProb)

	positive("sense_steps", t.SenseSteps)
	positive("communication_steps", t.CommunicationSteps)
	positive("reproduction_steps", t.ReproductionSteps)
	positive("base_return_interval", t.BaseReturnInterval)
	positive("boundary_flip_steps", t.BoundaryFlipSteps)
	positive("spawn.relocate_every_ticks", t.Spawn.RelocateEveryTicks)
	positive("spawn.new_every_ticks", t.Spawn.NewEveryTicks)

	if t.BaseReturnDev < 0 || t.BaseReturnDev >= t.BaseReturnInterval {
		errs = append(errs, fmt.Errorf("base_return_dev must be in [0, base_return_interval), got %d", t.BaseReturnDev))
	}
	if t.Homeostasis.ReserveLow >= t.Homeostasis.ReserveHigh {
		errs = append(errs, fmt.Errorf("homeostasis band is empty: low=%v high=%v", t.Homeostasis.ReserveLow, t.Homeostasis.ReserveHigh))
	}
	if t.ExplorerMiningRate < 0 || t.ExplorerMiningRate > t.ThresholdExploiter {
		errs = append(errs, fmt.Errorf("explorer_mining_rate must be in [0, threshold_exploiter], got %v", t.ExplorerMiningRate))
	}
	if t.ExploiterStaticDivisor <= 0 {
		errs = append(errs, fmt.Errorf("exploiter_static_cost_divisor must be > 0"))
	}
	return errors.Join(errs...)
}
