package world

import (
	"fmt"
	"time"
)

// Step advances the world by one tick: every live entity acts once in a
// shuffled order, then statistics, the director and the sinks run.
func (w *World) Step() error {
	_, err := w.stepInternal()
	return err
}

// StepOnce advances a single tick and returns its number and digest. It is
// primarily intended for deterministic replays and tests.
func (w *World) StepOnce() (tick uint64, digest string, err error) {
	tick = w.tick.Load()
	digest, err = w.stepInternal()
	return tick, digest, err
}

func (w *World) stepInternal() (string, error) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	w.births = w.births[:0]
	w.deaths = w.deaths[:0]

	err := w.sched.Step(w.rng, func(_ uint64, e entity) error {
		switch {
		case e.res != nil:
			w.stepResource(e.res)
			return nil
		case e.agent != nil:
			return w.stepAgent(e.agent, nowTick)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("tick %d: %w", nowTick, err)
	}

	mean := w.meanReserve()
	w.stats.observe(nowTick, mean)
	if err := w.systemDirector(nowTick, mean); err != nil {
		return "", fmt.Errorf("tick %d: director: %w", nowTick, err)
	}

	w.stepObservers(nowTick, mean)

	digest := w.stateDigest(nowTick)
	explorers, exploiters := w.Counts()
	if w.tickLogger != nil {
		entry := TickLogEntry{
			Tick:        nowTick,
			Explorers:   explorers,
			Exploiters:  exploiters,
			Resources:   len(w.resources),
			MeanReserve: mean,
			Births:      append([]BirthRecord(nil), w.births...),
			Deaths:      append([]DeathRecord(nil), w.deaths...),
			Digest:      digest,
		}
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.log.Warn("tick log write failed", "tick", nowTick, "err", err)
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)

	// Snapshots hold the state after this tick, stamped with the next tick
	// to run.
	if w.snapshotSink != nil && ShouldEvaluate(nextTick, w.cfg.SnapshotEveryTicks) {
		snap, err := w.ExportSnapshot()
		if err != nil {
			w.log.Warn("snapshot export failed", "tick", nextTick, "err", err)
		} else {
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	w.metrics.Store(&WorldMetrics{
		Tick:        nextTick,
		Explorers:   explorers,
		Exploiters:  exploiters,
		Resources:   len(w.resources),
		MeanReserve: mean,
		Births:      w.stats.births,
		Deaths:      len(w.stats.deaths),
		Observers:   len(w.observers),
		StepMS:      stepMS,
		Digest:      digest,
		Done:        w.Done(),
	})
	return digest, nil
}

func (w *World) stepAgent(a *Agent, nowTick uint64) error {
	switch a.Kind {
	case KindExplorer:
		return w.stepExplorer(a, nowTick)
	case KindExploiter:
		return w.stepExploiter(a, nowTick)
	default:
		return fmt.Errorf("%w: agent %d has kind %d", ErrUnknownKind, a.ID, uint8(a.Kind))
	}
}
