package world

// WorldMetrics is the per-tick population and runtime view served by
// /metrics and /v1/state. Births and Deaths count from tick 0.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Explorers   int     `json:"explorers"`
	Exploiters  int     `json:"exploiters"`
	Resources   int     `json:"resources"`
	MeanReserve float64 `json:"mean_reserve"`

	Births    int `json:"births"`
	Deaths    int `json:"deaths"`
	Observers int `json:"observers"`

	StepMS float64 `json:"step_ms"`
	Digest string  `json:"digest"`
	Done   bool    `json:"done"`
}

// Metrics returns the view published after the latest tick. Safe to call
// from any goroutine.
func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	if m := w.metrics.Load(); m != nil {
		return *m
	}
	return WorldMetrics{}
}
