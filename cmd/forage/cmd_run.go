package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/world"
)

func newRunCmd() *cobra.Command {
	var (
		wf     worldFlags
		resume bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation to completion",
		Long: `Run steps a world unpaced until every agent has died or the tick budget
is spent, then prints the run summary.

The run directory <data>/runs/<id> receives the tick log and snapshots;
the summary is also stored in the SQLite index unless --disable-db is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFor(cmd)
			t, err := wf.loadTuning()
			if err != nil {
				return err
			}
			cfg := wf.config(t)

			idx := openIndex(wf.dataDir, wf.disableDB, logger)
			if idx != nil {
				defer idx.Close()
			}

			ctx, cancel := signalContext()
			defer cancel()

			s, err := openSession(cfg, wf.dataDir, resume, idx, logger)
			if err != nil {
				return err
			}
			sum, err := s.run(ctx)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			return printSummary(cmd.OutOrStdout(), cfg.ID, sum, jsonOut)
		},
	}
	wf.register(cmd)
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the latest snapshot in the run directory")
	return cmd
}

func printSummary(out io.Writer, id string, sum world.Summary, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			RunID string `json:"run_id"`
			world.Summary
		}{id, sum})
	}
	fmt.Fprintf(out, "run %s: %d ticks, %d births, %d deaths\n", id, sum.Ticks, sum.Births, sum.Deaths)
	fmt.Fprintf(out, "  final population: %d explorers, %d exploiters (peak %d)\n", sum.FinalExplorers, sum.FinalExploiters, sum.PeakPopulation)
	fmt.Fprintf(out, "  mean age at death: %.2f (explorers %.2f, exploiters %.2f)\n", sum.MeanAge, sum.MeanExplorerAge, sum.MeanExploiterAge)
	fmt.Fprintf(out, "  mean expected age: %.2f\n", sum.MeanExpectedAge)
	fmt.Fprintf(out, "  mean memory at death: %.2f\n", sum.MeanMemoryLen)
	fmt.Fprintf(out, "  final mean reserve: %.2f\n", sum.FinalMeanReserve)
	return nil
}
