package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/persistence/indexdb"
	persistlog "github.com/Abhipanda4/Agent-Based-Modelling/internal/persistence/log"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/persistence/snapshot"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/tuning"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/world"
)

// worldFlags are the flags shared by every command that builds a world.
type worldFlags struct {
	id         string
	population int
	coop       float64
	eprob      float64
	width      int
	height     int
	torus      bool
	seed       int64
	maxTicks   uint64
	snapEvery  int
	tuningPath string
	dataDir    string
	disableDB  bool
}

func (f *worldFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.id, "id", "", "run id (default: derived from coop and seed)")
	fs.IntVarP(&f.population, "population", "n", 100, "initial number of agents")
	fs.Float64Var(&f.coop, "coop", 0.5, "memory sharing probability per record")
	fs.Float64Var(&f.eprob, "e-prob", 0.5, "probability an exploiter lends energy to a returning explorer")
	fs.IntVar(&f.width, "width", 100, "grid width")
	fs.IntVar(&f.height, "height", 100, "grid height")
	fs.BoolVar(&f.torus, "torus", false, "wrap the grid edges")
	fs.Int64Var(&f.seed, "seed", 42, "random seed")
	fs.Uint64Var(&f.maxTicks, "max-ticks", 5000, "tick budget (0 = until extinction)")
	fs.IntVar(&f.snapEvery, "snapshot-every", 500, "snapshot interval in ticks (0 = never)")
	fs.StringVar(&f.tuningPath, "tuning", "", "path to tuning.yaml (default: built-in constants)")
	fs.StringVar(&f.dataDir, "data", "./data", "runtime data directory")
	fs.BoolVar(&f.disableDB, "disable-db", false, "disable the SQLite run index")
}

func (f *worldFlags) loadTuning() (tuning.Tuning, error) {
	if f.tuningPath == "" {
		return tuning.Defaults(), nil
	}
	return tuning.Load(f.tuningPath)
}

func (f *worldFlags) config(t tuning.Tuning) world.WorldConfig {
	id := f.id
	if id == "" {
		id = runID(f.coop, f.seed)
	}
	return world.WorldConfig{
		ID:                 id,
		Population:         f.population,
		Coop:               f.coop,
		EnergyShareProb:    f.eprob,
		Width:              f.width,
		Height:             f.height,
		Torus:              f.torus,
		Seed:               f.seed,
		MaxTicks:           f.maxTicks,
		SnapshotEveryTicks: f.snapEvery,
		Tuning:             t,
	}
}

func runID(coop float64, seed int64) string {
	c := strings.ReplaceAll(strconv.FormatFloat(coop, 'f', 2, 64), ".", "p")
	return fmt.Sprintf("coop%s_seed%d", c, seed)
}

func openIndex(dataDir string, disabled bool, logger *slog.Logger) *indexdb.SQLiteIndex {
	if disabled {
		return nil
	}
	idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "forage.sqlite"))
	if err != nil {
		logger.Warn("index disabled", "err", err)
		return nil
	}
	return idx
}

// session is one world plus the sinks attached to it.
type session struct {
	w      *world.World
	runDir string
	log    *slog.Logger

	tickLog *persistlog.TickLogger
	idx     *indexdb.SQLiteIndex
	runIdx  *indexdb.RunWriter

	snapCh   chan snapshot.SnapshotV1
	snapDone chan struct{}
}

// openSession builds the world for cfg, resuming from the latest snapshot
// in its run directory when resume is set.
func openSession(cfg world.WorldConfig, dataDir string, resume bool, idx *indexdb.SQLiteIndex, logger *slog.Logger) (*session, error) {
	runDir := filepath.Join(dataDir, "runs", cfg.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, err
	}

	var (
		w   *world.World
		err error
	)
	if snapPath := latestSnapshot(runDir); resume && snapPath != "" {
		snap, rerr := snapshot.ReadSnapshot(snapPath)
		if rerr != nil {
			return nil, fmt.Errorf("read snapshot: %w", rerr)
		}
		w, err = world.NewFromSnapshot(cfg, snap)
		if err == nil {
			logger.Info("resumed", "run", cfg.ID, "snapshot", snapPath, "tick", snap.Header.Tick)
		}
	} else {
		w, err = world.New(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	w.SetLogger(logger)

	s := &session{
		w:        w,
		runDir:   runDir,
		log:      logger,
		tickLog:  persistlog.NewTickLoggerWithOptions(runDir, tickLogOptions(cfg, logger)),
		idx:      idx,
		snapCh:   make(chan snapshot.SnapshotV1, 2),
		snapDone: make(chan struct{}),
	}
	if idx != nil {
		s.runIdx = idx.Run(cfg.ID)
		w.SetTickLogger(multiTickLogger{a: s.tickLog, b: s.runIdx})
	} else {
		w.SetTickLogger(s.tickLog)
	}
	w.SetSnapshotSink(s.snapCh)
	go s.writeSnapshots()
	return s, nil
}

// Unpaced runs batch flushes; paced worlds flush every tick so the log
// keeps up with what observers see.
func tickLogOptions(cfg world.WorldConfig, logger *slog.Logger) persistlog.Options {
	opts := persistlog.Options{
		OnClose: func(path string, lines int) {
			logger.Debug("tick log segment closed", "path", path, "lines", lines)
		},
	}
	if cfg.TickRateHz <= 0 {
		opts.FlushEvery = 64
	}
	return opts
}

// writeSnapshots drains the sink until it is closed by finish.
func (s *session) writeSnapshots() {
	defer close(s.snapDone)
	for snap := range s.snapCh {
		path := filepath.Join(s.runDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			s.log.Warn("snapshot write", "err", err)
			continue
		}
		if s.runIdx != nil {
			s.runIdx.RecordSnapshot(path, snap)
		}
		s.log.Debug("snapshot written", "path", path, "tick", snap.Header.Tick)
	}
}

// run drives the world until it finishes or ctx is cancelled, then records
// the summary. Cancellation still records the partial run.
func (s *session) run(ctx context.Context) (world.Summary, error) {
	runErr := s.w.Run(ctx)
	sum, err := s.finish()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return sum, runErr
	}
	return sum, err
}

// finish stops the sinks and stores the run summary in the index. The world
// loop must have returned.
func (s *session) finish() (world.Summary, error) {
	close(s.snapCh)
	<-s.snapDone
	if err := s.tickLog.Close(); err != nil {
		s.log.Warn("tick log close", "err", err)
	}

	sum := s.w.Stats().Summary(s.w.CurrentTick())
	if s.idx == nil {
		return sum, nil
	}
	cfg := s.w.Config()
	row := indexdb.RunRow{
		RunID:           cfg.ID,
		Coop:            cfg.Coop,
		EnergyShareProb: cfg.EnergyShareProb,
		Seed:            cfg.Seed,
		Population:      cfg.Population,
		Width:           cfg.Width,
		Height:          cfg.Height,
		Torus:           cfg.Torus,
		Summary:         sum,
		TuningJSON:      indexdb.TuningJSON(cfg.Tuning),
	}
	// The run context may already be cancelled; the summary is still wanted.
	if err := s.idx.RecordRun(context.Background(), row); err != nil {
		return sum, fmt.Errorf("record run: %w", err)
	}
	return sum, nil
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(e world.TickLogEntry) error {
	return errors.Join(m.a.WriteTick(e), m.b.WriteTick(e))
}

func latestSnapshot(runDir string) string {
	dir := filepath.Join(runDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			best = filepath.Join(dir, name)
			bestTick = tick
		}
	}
	return best
}
