package world

import (
	"fmt"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/memory"
)

type AgentKind uint8

const (
	KindExplorer AgentKind = iota + 1
	KindExploiter
)

func (k AgentKind) String() string {
	switch k {
	case KindExplorer:
		return "explorer"
	case KindExploiter:
		return "exploiter"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Other is the kind a child takes when it does not inherit its parent's.
func (k AgentKind) Other() AgentKind {
	switch k {
	case KindExplorer:
		return KindExploiter
	case KindExploiter:
		return KindExplorer
	default:
		return 0
	}
}

func ParseKind(s string) (AgentKind, error) {
	switch s {
	case "explorer":
		return KindExplorer, nil
	case "exploiter":
		return KindExploiter, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Direction is an Explorer's drift axis: 0 +x, 1 +y, 2 -x, 3 -y.
type Direction uint8

const numDirections = 4

// Flip turns the drift to the opposite direction.
func (d Direction) Flip() Direction { return (d + 2) % numDirections }

func (d Direction) aligned(dx, dy int) bool {
	switch d {
	case 0:
		return dx == 1
	case 1:
		return dy == 1
	case 2:
		return dx == -1
	default:
		return dy == -1
	}
}

// Agent is a society member. Exactly one of Explorer or Exploiter is set,
// matching Kind.
type Agent struct {
	ID     uint64
	Kind   AgentKind
	Pos    grid.Pos
	Energy float64
	Age    int

	Target    grid.Pos
	HasTarget bool

	LivingCost float64
	SenseRange int
	CommRange  int
	MiningRate float64
	ShareProb  float64

	Memory memory.Table

	Explorer  *ExplorerState
	Exploiter *ExploiterState
}

type ExplorerState struct {
	Drift           Direction
	MineMode        bool
	BoundarySteps   int
	ReturningToBase bool
	// CycleRate is the per-agent period of the base-return toggle.
	CycleRate int
}

type ExploiterState struct {
	StaticCost      float64
	AtBase          bool
	Exploiting      bool
	EnergyShareProb float64
}

func (a *Agent) setTarget(p grid.Pos) {
	a.Target = p
	a.HasTarget = true
}

func (a *Agent) clearTarget() {
	a.Target = grid.Pos{}
	a.HasTarget = false
}

type Resource struct {
	ID        uint64
	Pos       grid.Pos
	Reserve   float64
	DecayRate float64
}

type DeathRecord struct {
	ID        uint64 `json:"id"`
	Kind      string `json:"kind"`
	Age       int    `json:"age"`
	Tick      uint64 `json:"tick"`
	MemoryLen int    `json:"memory_len"`
}

type BirthRecord struct {
	ID       uint64   `json:"id"`
	Kind     string   `json:"kind"`
	ParentID uint64   `json:"parent_id"`
	Pos      grid.Pos `json:"pos"`
}

// entity is what the scheduler holds: one of agent or res.
type entity struct {
	agent *Agent
	res   *Resource
}
