package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/persistence/indexdb"
)

const sweepSteps = 10

func newSweepCmd() *cobra.Command {
	var (
		wf   worldFlags
		runs int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the cooperation sweep",
		Long: `Sweep runs coop = 0.0, 0.1, ..., 1.0, each --runs times with seeds
seed, seed+1, ..., one run at a time. Every summary goes to the SQLite
index, and the per-coop mean ages are printed at the end. The table
aggregates every run in the index, so earlier runs at the same coop count.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runs <= 0 {
				return fmt.Errorf("--runs must be > 0")
			}
			logger := loggerFor(cmd)
			t, err := wf.loadTuning()
			if err != nil {
				return err
			}
			idx := openIndex(wf.dataDir, wf.disableDB, logger)
			if idx == nil {
				return errors.New("sweep needs the run index (drop --disable-db)")
			}
			defer idx.Close()

			ctx, cancel := signalContext()
			defer cancel()

			for step := 0; step <= sweepSteps; step++ {
				coop := float64(step) / sweepSteps
				for k := 0; k < runs; k++ {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					f := wf
					f.coop = coop
					f.seed = wf.seed + int64(k)
					f.id = "sweep_" + runID(coop, f.seed)
					cfg := f.config(t)

					s, err := openSession(cfg, wf.dataDir, false, idx, logger)
					if err != nil {
						return err
					}
					sum, err := s.run(ctx)
					if err != nil {
						return fmt.Errorf("run %s: %w", cfg.ID, err)
					}
					logger.Info("sweep run done", "run", cfg.ID, "ticks", sum.Ticks, "mean_age", sum.MeanAge)
				}
			}

			if err := idx.Flush(ctx); err != nil {
				return err
			}
			table, err := idx.CoopAgeTable(ctx)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			return printCoopTable(cmd.OutOrStdout(), table, jsonOut)
		},
	}
	wf.register(cmd)
	cmd.Flags().IntVar(&runs, "runs", 10, "runs per coop value")
	return cmd
}

func printCoopTable(out io.Writer, table []indexdb.CoopAges, jsonOut bool) error {
	if jsonOut {
		if table == nil {
			table = []indexdb.CoopAges{}
		}
		return json.NewEncoder(out).Encode(table)
	}
	fmt.Fprintf(out, "%-6s %5s %10s %10s %10s %10s %8s\n", "coop", "runs", "age", "explorer", "exploiter", "expected", "memory")
	for _, c := range table {
		fmt.Fprintf(out, "%-6.2f %5d %10.2f %10.2f %10.2f %10.2f %8.2f\n",
			c.Coop, c.Runs, c.MeanAge, c.MeanExplorerAge, c.MeanExploiterAge, c.MeanExpectedAge, c.MeanMemoryLen)
	}
	return nil
}
