package world

import (
	"errors"
	"fmt"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/tuning"
)

type WorldConfig struct {
	ID string

	// Population is the number of agents created at tick 0.
	Population int
	// Coop is every agent's share_prob: the per-record gossip probability.
	Coop float64
	// EnergyShareProb is the probability an Exploiter lends energy to a
	// returning Explorer.
	EnergyShareProb float64

	Width  int
	Height int
	Torus  bool

	Seed int64

	// MaxTicks bounds a run; 0 means run until no agents remain.
	MaxTicks uint64
	// TickRateHz paces Run; 0 steps as fast as possible.
	TickRateHz int

	SnapshotEveryTicks int

	Tuning tuning.Tuning
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "run_1"
	}
	if c.Width <= 0 {
		c.Width = 100
	}
	if c.Height <= 0 {
		c.Height = 100
	}
	if c.Tuning == (tuning.Tuning{}) {
		c.Tuning = tuning.Defaults()
	}
}

func (c WorldConfig) validate() error {
	var errs []error
	if c.Population < 0 {
		errs = append(errs, fmt.Errorf("population must be >= 0, got %d", c.Population))
	}
	if c.Coop < 0 || c.Coop > 1 {
		errs = append(errs, fmt.Errorf("coop must be in [0,1], got %v", c.Coop))
	}
	if c.EnergyShareProb < 0 || c.EnergyShareProb > 1 {
		errs = append(errs, fmt.Errorf("energy share prob must be in [0,1], got %v", c.EnergyShareProb))
	}
	if c.TickRateHz < 0 {
		errs = append(errs, fmt.Errorf("tick rate must be >= 0, got %d", c.TickRateHz))
	}
	if err := c.Tuning.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
