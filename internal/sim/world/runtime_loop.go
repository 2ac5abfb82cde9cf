package world

import (
	"context"
	"time"
)

// unpaced is always ready, so an unpaced loop steps on every pass once no
// observer request wins the select.
var unpaced = func() <-chan time.Time {
	c := make(chan time.Time)
	close(c)
	return c
}()

// Run drives the world until it is done, ctx is cancelled or Stop is
// called. With TickRateHz > 0 the loop is paced by a ticker.
func (w *World) Run(ctx context.Context) error {
	tickC := unpaced
	if w.cfg.TickRateHz > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(w.cfg.TickRateHz))
		defer ticker.Stop()
		tickC = ticker.C
	}

	w.log.Info("run started", "world", w.cfg.ID, "tick", w.CurrentTick(), "agents", len(w.agents), "resources", len(w.resources))
	defer w.closeObservers()

	for !w.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-tickC:
			if err := w.Step(); err != nil {
				w.log.Error("step failed", "world", w.cfg.ID, "err", err)
				return err
			}
		}
	}
	explorers, exploiters := w.Counts()
	w.log.Info("run finished", "world", w.cfg.ID, "tick", w.CurrentTick(), "explorers", explorers, "exploiters", exploiters)
	return nil
}

// Stop makes Run return at its next select. Safe to call more than once.
func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

func (w *World) closeObservers() {
	for id := range w.observers {
		w.handleObserverLeave(id)
	}
}
