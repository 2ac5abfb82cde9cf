package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/persistence/indexdb"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/world"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/transport/observer"
)

func newServeCmd() *cobra.Command {
	var (
		wf          worldFlags
		addr        string
		tickRate    int
		resume      bool
		allowRemote bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a paced simulation with an HTTP and websocket observer",
		Long: `Serve paces one world at --tick-rate and exposes it over HTTP:

  /healthz                 liveness
  /metrics                 Prometheus text
  /v1/state                latest world metrics as JSON
  /v1/observer/bootstrap   world parameters for visualisers
  /v1/observer/ws          per-tick frames (send SUBSCRIBE first)

The server keeps running after the world finishes until it is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFor(cmd)
			t, err := wf.loadTuning()
			if err != nil {
				return err
			}
			cfg := wf.config(t)
			cfg.TickRateHz = tickRate

			idx := openIndex(wf.dataDir, wf.disableDB, logger)
			if idx != nil {
				defer idx.Close()
			}

			s, err := openSession(cfg, wf.dataDir, resume, idx, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			worldDone := make(chan struct{})
			go func() {
				defer close(worldDone)
				sum, err := s.run(ctx)
				if err != nil {
					logger.Error("world stopped", "err", err)
					return
				}
				logger.Info("world finished", "run", cfg.ID, "ticks", sum.Ticks, "mean_age", sum.MeanAge)
			}()

			obs := observer.NewServer(s.w, logger)
			obs.AllowRemote = allowRemote
			srv := &http.Server{
				Addr:              addr,
				Handler:           newServeMux(s.w, idx, obs),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Info("listening", "addr", addr, "run", cfg.ID, "tick_rate_hz", tickRate)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				cancel()
				<-worldDone
				return err
			}
			<-worldDone
			return nil
		},
	}
	wf.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "http listen address")
	cmd.Flags().IntVar(&tickRate, "tick-rate", 10, "ticks per second")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the latest snapshot in the run directory")
	cmd.Flags().BoolVar(&allowRemote, "allow-remote", false, "serve observer endpoints to non-loopback clients")
	return cmd
}

func newServeMux(w *world.World, idx *indexdb.SQLiteIndex, obs *observer.Server) *http.ServeMux {
	id := w.ID()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		fmt.Fprintf(rw, "# HELP forage_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE forage_world_tick gauge\n")
		fmt.Fprintf(rw, "forage_world_tick{world=%q} %d\n", id, m.Tick)

		fmt.Fprintf(rw, "# HELP forage_world_agents Live agents by kind.\n")
		fmt.Fprintf(rw, "# TYPE forage_world_agents gauge\n")
		fmt.Fprintf(rw, "forage_world_agents{world=%q,kind=%q} %d\n", id, world.KindExplorer.String(), m.Explorers)
		fmt.Fprintf(rw, "forage_world_agents{world=%q,kind=%q} %d\n", id, world.KindExploiter.String(), m.Exploiters)

		fmt.Fprintf(rw, "# HELP forage_world_resources Live energy resources.\n")
		fmt.Fprintf(rw, "# TYPE forage_world_resources gauge\n")
		fmt.Fprintf(rw, "forage_world_resources{world=%q} %d\n", id, m.Resources)

		fmt.Fprintf(rw, "# HELP forage_world_mean_reserve Mean reserve over live resources.\n")
		fmt.Fprintf(rw, "# TYPE forage_world_mean_reserve gauge\n")
		fmt.Fprintf(rw, "forage_world_mean_reserve{world=%q} %.3f\n", id, m.MeanReserve)

		fmt.Fprintf(rw, "# HELP forage_world_births_total Agents born since tick 0.\n")
		fmt.Fprintf(rw, "# TYPE forage_world_births_total counter\n")
		fmt.Fprintf(rw, "forage_world_births_total{world=%q} %d\n", id, m.Births)

		fmt.Fprintf(rw, "# HELP forage_world_deaths_total Agents dead since tick 0.\n")
		fmt.Fprintf(rw, "# TYPE forage_world_deaths_total counter\n")
		fmt.Fprintf(rw, "forage_world_deaths_total{world=%q} %d\n", id, m.Deaths)

		fmt.Fprintf(rw, "# HELP forage_world_observers Connected observers.\n")
		fmt.Fprintf(rw, "# TYPE forage_world_observers gauge\n")
		fmt.Fprintf(rw, "forage_world_observers{world=%q} %d\n", id, m.Observers)

		fmt.Fprintf(rw, "# HELP forage_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE forage_world_step_ms gauge\n")
		fmt.Fprintf(rw, "forage_world_step_ms{world=%q} %.3f\n", id, m.StepMS)

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP forage_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE forage_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "forage_index_queue_depth{world=%q} %d\n", id, st.QueueDepth)
			fmt.Fprintf(rw, "# HELP forage_index_dropped_total Index writes dropped under load.\n")
			fmt.Fprintf(rw, "# TYPE forage_index_dropped_total counter\n")
			fmt.Fprintf(rw, "forage_index_dropped_total{world=%q,kind=%q} %d\n", id, "tick", st.DropTickTotal)
			fmt.Fprintf(rw, "forage_index_dropped_total{world=%q,kind=%q} %d\n", id, "death", st.DropDeathTotal)
			fmt.Fprintf(rw, "forage_index_dropped_total{world=%q,kind=%q} %d\n", id, "snapshot", st.DropSnapshotTotal)
		}
	})
	mux.HandleFunc("/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			WorldID string `json:"world_id"`
			world.WorldMetrics
		}{id, w.Metrics()})
	})
	mux.HandleFunc("/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obs.WSHandler())
	return mux
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}
