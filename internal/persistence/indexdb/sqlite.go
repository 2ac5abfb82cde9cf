package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/persistence/snapshot"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/world"
)

// SQLiteIndex is a secondary, queryable index of runs. Writes go through a
// single goroutine and are batched into transactions; the JSONL tick logs
// remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropDeath    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqRun
	reqSnapshot
	reqFlush
)

type req struct {
	kind  reqKind
	runID string

	tick     world.TickLogEntry
	run      RunRow
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick      uint64
	Path      string
	Agents    int
	Resources int
}

// RunRow is one finished run.
type RunRow struct {
	RunID           string  `json:"run_id"`
	Coop            float64 `json:"coop"`
	EnergyShareProb float64 `json:"energy_share_prob"`
	Seed            int64   `json:"seed"`
	Population      int     `json:"population"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Torus           bool    `json:"torus"`

	Summary world.Summary `json:"summary"`

	TuningJSON string `json:"tuning_json,omitempty"`
	FinishedAt string `json:"finished_at"`
}

// CoopAges is the per-coop aggregate the sweep reports.
type CoopAges struct {
	Coop             float64 `json:"coop"`
	Runs             int     `json:"runs"`
	MeanAge          float64 `json:"mean_age"`
	MeanExplorerAge  float64 `json:"mean_explorer_age"`
	MeanExploiterAge float64 `json:"mean_exploiter_age"`
	MeanExpectedAge  float64 `json:"mean_expected_age"`
	MeanMemoryLen    float64 `json:"mean_memory_len"`
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropDeathTotal    uint64 `json:"drop_death_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			coop REAL NOT NULL,
			energy_share_prob REAL NOT NULL,
			seed INTEGER NOT NULL,
			population INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			torus INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			births INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			final_explorers INTEGER NOT NULL,
			final_exploiters INTEGER NOT NULL,
			peak_population INTEGER NOT NULL,
			mean_age REAL NOT NULL,
			mean_explorer_age REAL NOT NULL,
			mean_exploiter_age REAL NOT NULL,
			mean_expected_age REAL NOT NULL,
			mean_memory_len REAL NOT NULL,
			final_mean_reserve REAL NOT NULL,
			tuning_json TEXT,
			finished_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_coop ON runs(coop);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			explorers INTEGER NOT NULL,
			exploiters INTEGER NOT NULL,
			resources INTEGER NOT NULL,
			mean_reserve REAL NOT NULL,
			births INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS deaths (
			run_id TEXT NOT NULL,
			agent_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			age INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			memory_len INTEGER NOT NULL,
			PRIMARY KEY (run_id, agent_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_deaths_kind ON deaths(run_id, kind);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			agents INTEGER NOT NULL,
			resources INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropDeathTotal:    s.dropDeath.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// Run binds the index to one run so it can serve as that world's
// TickLogger.
func (s *SQLiteIndex) Run(runID string) *RunWriter {
	return &RunWriter{s: s, runID: runID}
}

type RunWriter struct {
	s     *SQLiteIndex
	runID string
}

func (r *RunWriter) WriteTick(entry world.TickLogEntry) error {
	s := r.s
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, runID: r.runID, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
		s.dropDeath.Add(uint64(len(entry.Deaths)))
	}
	return nil
}

func (r *RunWriter) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	s := r.s
	if s == nil || s.closed.Load() {
		return
	}
	row := snapshotRow{Tick: snap.Header.Tick, Path: path}
	for _, e := range snap.Entities {
		switch {
		case e.Agent != nil:
			row.Agents++
		case e.Resource != nil:
			row.Resources++
		}
	}
	select {
	case s.ch <- req{kind: reqSnapshot, runID: r.runID, snapshot: row}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// RecordRun stores a run summary. Unlike tick writes it waits for queue
// space, so summaries are never dropped.
func (s *SQLiteIndex) RecordRun(ctx context.Context, row RunRow) error {
	if s == nil || s.closed.Load() {
		return fmt.Errorf("index closed")
	}
	if row.FinishedAt == "" {
		row.FinishedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case s.ch <- req{kind: reqRun, runID: row.RunID, run: row}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush blocks until every queued write has been committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,digest,explorers,exploiters,resources,mean_reserve,births,deaths) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertDeath, _ := s.db.Prepare(`INSERT OR REPLACE INTO deaths(run_id,agent_id,kind,age,tick,memory_len) VALUES(?,?,?,?,?,?)`)
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,coop,energy_share_prob,seed,population,width,height,torus,ticks,births,deaths,final_explorers,final_exploiters,peak_population,mean_age,mean_explorer_age,mean_exploiter_age,mean_expected_age,mean_memory_len,final_mean_reserve,tuning_json,finished_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(run_id,tick,path,agents,resources) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertDeath, insertRun, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-ticker.C:
			flushIfNeeded()
			continue
		}

		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					r.runID,
					int64(e.Tick),
					e.Digest,
					e.Explorers,
					e.Exploiters,
					e.Resources,
					e.MeanReserve,
					len(e.Births),
					len(e.Deaths),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for _, d := range e.Deaths {
				if insertDeath == nil {
					break
				}
				if _, err := tx.Stmt(insertDeath).Exec(r.runID, int64(d.ID), d.Kind, d.Age, int64(d.Tick), d.MemoryLen); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqRun:
			row := r.run
			sum := row.Summary
			if insertRun != nil {
				if _, err := tx.Stmt(insertRun).Exec(
					row.RunID,
					row.Coop,
					row.EnergyShareProb,
					row.Seed,
					row.Population,
					row.Width,
					row.Height,
					boolInt(row.Torus),
					int64(sum.Ticks),
					sum.Births,
					sum.Deaths,
					sum.FinalExplorers,
					sum.FinalExploiters,
					sum.PeakPopulation,
					sum.MeanAge,
					sum.MeanExplorerAge,
					sum.MeanExploiterAge,
					sum.MeanExpectedAge,
					sum.MeanMemoryLen,
					sum.FinalMeanReserve,
					row.TuningJSON,
					row.FinishedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(r.runID, int64(sn.Tick), sn.Path, sn.Agents, sn.Resources); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}
}

// ListRuns returns every recorded run ordered by coop then id. Call Flush
// first to see writes still in the queue.
func (s *SQLiteIndex) ListRuns(ctx context.Context) ([]RunRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id,coop,energy_share_prob,seed,population,width,height,torus,ticks,births,deaths,final_explorers,final_exploiters,peak_population,mean_age,mean_explorer_age,mean_exploiter_age,mean_expected_age,mean_memory_len,final_mean_reserve,COALESCE(tuning_json,''),finished_at FROM runs ORDER BY coop, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		var torus int
		var ticks int64
		sum := &r.Summary
		if err := rows.Scan(
			&r.RunID, &r.Coop, &r.EnergyShareProb, &r.Seed, &r.Population, &r.Width, &r.Height, &torus,
			&ticks, &sum.Births, &sum.Deaths, &sum.FinalExplorers, &sum.FinalExploiters, &sum.PeakPopulation,
			&sum.MeanAge, &sum.MeanExplorerAge, &sum.MeanExploiterAge, &sum.MeanExpectedAge, &sum.MeanMemoryLen,
			&sum.FinalMeanReserve, &r.TuningJSON, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		r.Torus = torus != 0
		sum.Ticks = uint64(ticks)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CoopAgeTable aggregates run summaries by coop value.
func (s *SQLiteIndex) CoopAgeTable(ctx context.Context) ([]CoopAges, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT coop, COUNT(*), AVG(mean_age), AVG(mean_explorer_age), AVG(mean_exploiter_age), AVG(mean_expected_age), AVG(mean_memory_len) FROM runs GROUP BY coop ORDER BY coop`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CoopAges
	for rows.Next() {
		var c CoopAges
		if err := rows.Scan(&c.Coop, &c.Runs, &c.MeanAge, &c.MeanExplorerAge, &c.MeanExploiterAge, &c.MeanExpectedAge, &c.MeanMemoryLen); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeathsByKind counts recorded deaths for one run.
func (s *SQLiteIndex) DeathsByKind(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM deaths WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// TickCount returns how many tick rows a run has.
func (s *SQLiteIndex) TickCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// TuningJSON encodes tuning for the runs table.
func TuningJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
