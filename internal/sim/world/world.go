package world

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/logging"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/persistence/snapshot"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/grid"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/rng"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/schedule"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/tuning"
)

// World is a single-threaded simulation of one foraging society.
// All state must be accessed only from the goroutine driving Step or Run.
type World struct {
	cfg  WorldConfig
	tune tuning.Tuning

	tick atomic.Uint64

	rng   *rng.Rand
	grid  *grid.Grid
	sched *schedule.Scheduler[entity]

	agents    map[uint64]*Agent
	resources map[uint64]*Resource

	center grid.Pos
	bases  []grid.Pos

	nextID uint64

	stats *Stats

	// Per-tick buffers, reset at the start of each step.
	births []BirthRecord
	deaths []DeathRecord

	observers     map[string]*observerClient
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stop          chan struct{}
	stopOnce      sync.Once

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger   TickLogger
	snapshotSink chan<- snapshot.SnapshotV1

	log *slog.Logger

	metrics atomic.Pointer[WorldMetrics]
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick        uint64        `json:"tick"`
	Explorers   int           `json:"explorers"`
	Exploiters  int           `json:"exploiters"`
	Resources   int           `json:"resources"`
	MeanReserve float64       `json:"mean_reserve"`
	Births      []BirthRecord `json:"births,omitempty"`
	Deaths      []DeathRecord `json:"deaths,omitempty"`
	Digest      string        `json:"digest"`
}

// New builds the initial population, bases and resources from cfg.
func New(cfg WorldConfig) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("world config: %w", err)
	}
	w, err := newEmpty(cfg)
	if err != nil {
		return nil, err
	}
	if err := w.populate(); err != nil {
		return nil, err
	}
	return w, nil
}

func newEmpty(cfg WorldConfig) (*World, error) {
	g, err := grid.New(cfg.Width, cfg.Height, cfg.Torus)
	if err != nil {
		return nil, err
	}
	w := &World{
		cfg:           cfg,
		tune:          cfg.Tuning,
		rng:           rng.New(cfg.Seed),
		grid:          g,
		sched:         schedule.New[entity](),
		agents:        map[uint64]*Agent{},
		resources:     map[uint64]*Resource{},
		stats:         newStats(),
		observers:     map[string]*observerClient{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 16),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
		log:           logging.Discard(),
	}
	w.metrics.Store(&WorldMetrics{})
	return w, nil
}

func (w *World) populate() error {
	w.center = w.pickCenter()
	w.setBases()

	spread := w.tune.PopSpread
	for i := 0; i < w.cfg.Population; i++ {
		kind := KindExploiter
		if w.rng.Chance(w.tune.ExplorerRatio) {
			kind = KindExplorer
		}
		a, err := w.newAgent(kind)
		if err != nil {
			return err
		}
		pos := w.grid.Clamp(grid.Pos{
			X: w.rng.Range(w.center.X-spread, w.center.X+spread),
			Y: w.rng.Range(w.center.Y-spread, w.center.Y+spread),
		})
		if err := w.addAgent(a, pos); err != nil {
			return err
		}
	}

	for _, decay := range w.balancedDecayRates(w.tune.ReserveCount) {
		reserve := max(w.tune.MeanReserve/2, w.rng.Normal(w.tune.MeanReserve, w.tune.StddevReserve))
		if _, err := w.addResource(reserve, decay, w.randomCell()); err != nil {
			return err
		}
	}
	return nil
}

// pickCenter places the population center at least PopMargin cells from
// every edge when the grid is large enough, else at the middle.
func (w *World) pickCenter() grid.Pos {
	m := w.tune.PopMargin
	axis := func(size int) int {
		if size-m <= m {
			return size / 2
		}
		return w.rng.Range(m, size-m)
	}
	x := axis(w.cfg.Width)
	y := axis(w.cfg.Height)
	return grid.Pos{X: x, Y: y}
}

func (w *World) setBases() {
	w.bases = w.grid.Neighborhood(w.center, w.tune.PopSpread, true)
}

// balancedDecayRates returns n rates that sum to roughly zero, with a small
// downward bias so the world slowly grows richer on average.
func (w *World) balancedDecayRates(n int) []float64 {
	if n <= 0 {
		return nil
	}
	d := w.tune.DecayRate
	rates := make([]float64, n)
	sum := 0.0
	for i := 0; i < n-1; i++ {
		rates[i] = w.rng.Uniform(-d, d)
		sum += rates[i]
	}
	rates[n-1] = -sum
	for i := range rates {
		rates[i] += w.rng.Uniform(-0.1, 0)
	}
	w.rng.Shuffle(n, func(i, j int) { rates[i], rates[j] = rates[j], rates[i] })
	return rates
}

func (w *World) randomCell() grid.Pos {
	return grid.Pos{X: w.rng.IntN(w.cfg.Width), Y: w.rng.IntN(w.cfg.Height)}
}

func (w *World) nextEntityID() uint64 {
	w.nextID++
	return w.nextID
}

// minInitialEnergy floors the energy draw so no agent is born starved.
const minInitialEnergy = 1.0

func (w *World) newAgent(kind AgentKind) (*Agent, error) {
	t := w.tune
	a := &Agent{
		Kind:      kind,
		Energy:    max(minInitialEnergy, w.rng.Normal(t.MeanEnergy, t.StddevEnergy)),
		ShareProb: w.cfg.Coop,
	}
	switch kind {
	case KindExplorer:
		a.LivingCost = max(t.ExplorerCostMin, w.rng.Normal(t.ExplorerCostMean, t.ExplorerCostStd))
		a.SenseRange = t.ExplorerSenseRange
		a.CommRange = t.ExplorerCommRange
		a.MiningRate = t.ExplorerMiningRate
		a.Explorer = &ExplorerState{
			Drift:     Direction(w.rng.IntN(numDirections)),
			CycleRate: max(1, w.rng.Range(t.BaseReturnInterval-t.BaseReturnDev, t.BaseReturnInterval+t.BaseReturnDev)),
		}
	case KindExploiter:
		a.LivingCost = max(t.ExploiterCostMin, w.rng.Normal(t.ExploiterCostMean, t.ExploiterCostStd))
		a.SenseRange = t.ExploiterSenseRange
		a.CommRange = t.ExploiterCommRange
		a.MiningRate = t.ExploiterMiningRate
		a.Exploiter = &ExploiterState{
			StaticCost:      max(t.ExploiterStaticCostMin, a.LivingCost/t.ExploiterStaticDivisor),
			EnergyShareProb: w.cfg.EnergyShareProb,
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}
	a.ID = w.nextEntityID()
	return a, nil
}

// addAgent places a on the grid and registers it with the scheduler. An
// agent added mid-tick is first stepped on the next tick.
func (w *World) addAgent(a *Agent, pos grid.Pos) error {
	if err := w.grid.Place(grid.Entry{ID: a.ID, Kind: grid.KindAgent}, pos); err != nil {
		return fmt.Errorf("place agent %d: %w", a.ID, err)
	}
	a.Pos = pos
	w.agents[a.ID] = a
	w.sched.Add(a.ID, entity{agent: a})
	w.stats.recordBirth(a)
	return nil
}

func (w *World) addResource(reserve, decay float64, pos grid.Pos) (*Resource, error) {
	r := &Resource{ID: w.nextEntityID(), Reserve: reserve, DecayRate: decay}
	if err := w.grid.Place(grid.Entry{ID: r.ID, Kind: grid.KindResource}, pos); err != nil {
		return nil, fmt.Errorf("place resource %d: %w", r.ID, err)
	}
	r.Pos = pos
	w.resources[r.ID] = r
	w.sched.Add(r.ID, entity{res: r})
	return r, nil
}

// SetLogger replaces the discard logger.
func (w *World) SetLogger(l *slog.Logger) {
	if l != nil {
		w.log = l
	}
}

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }

func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Center() grid.Pos { return w.center }

func (w *World) Bases() []grid.Pos {
	out := make([]grid.Pos, len(w.bases))
	copy(out, w.bases)
	return out
}

// Counts returns the live Explorer and Exploiter populations.
func (w *World) Counts() (explorers, exploiters int) {
	return w.stats.explorers, w.stats.exploiters
}

func (w *World) LiveAgents() int { return len(w.agents) }

func (w *World) LiveResources() int { return len(w.resources) }

// Done reports whether the run is over: no agents remain or the tick
// budget is spent.
func (w *World) Done() bool {
	if len(w.agents) == 0 {
		return true
	}
	return w.cfg.MaxTicks > 0 && w.tick.Load() >= w.cfg.MaxTicks
}

// Stats exposes the run statistics. Callers must not retain it across
// world mutations on another goroutine.
func (w *World) Stats() *Stats { return w.stats }

// eachAgent and eachResource visit live entities in scheduler order.
func (w *World) eachAgent(fn func(a *Agent)) {
	w.sched.Each(func(_ uint64, e entity) {
		if e.agent != nil {
			fn(e.agent)
		}
	})
}

func (w *World) eachResource(fn func(r *Resource)) {
	w.sched.Each(func(_ uint64, e entity) {
		if e.res != nil {
			fn(e.res)
		}
	})
}

func (w *World) meanReserve() float64 {
	n := 0
	sum := 0.0
	w.eachResource(func(r *Resource) {
		sum += r.Reserve
		n++
	})
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// resourceAt returns the first live resource occupying p.
func (w *World) resourceAt(p grid.Pos) *Resource {
	for _, e := range w.grid.Occupants(p) {
		if e.Kind != grid.KindResource {
			continue
		}
		if r := w.resources[e.ID]; r != nil {
			return r
		}
	}
	return nil
}

func (w *World) randomBase() grid.Pos {
	if len(w.bases) == 0 {
		return w.center
	}
	return w.bases[w.rng.IntN(len(w.bases))]
}
