package world

type PopulationSample struct {
	Tick       uint64 `json:"tick"`
	Explorers  int    `json:"explorers"`
	Exploiters int    `json:"exploiters"`
}

// Stats accumulates run statistics. Counts change only when an agent is
// added or dies.
type Stats struct {
	explorers  int
	exploiters int
	births     int

	population   []PopulationSample
	meanReserve  []float64
	deaths       []DeathRecord
	expectedAges []float64
}

func newStats() *Stats { return &Stats{} }

func (s *Stats) recordBirth(a *Agent) {
	switch a.Kind {
	case KindExplorer:
		s.explorers++
	case KindExploiter:
		s.exploiters++
	}
	s.births++
	if a.LivingCost > 0 {
		s.expectedAges = append(s.expectedAges, a.Energy/a.LivingCost)
	}
}

func (s *Stats) recordDeath(kind AgentKind, d DeathRecord) {
	switch kind {
	case KindExplorer:
		s.explorers--
	case KindExploiter:
		s.exploiters--
	}
	s.deaths = append(s.deaths, d)
}

func (s *Stats) observe(tick uint64, mean float64) {
	s.population = append(s.population, PopulationSample{Tick: tick, Explorers: s.explorers, Exploiters: s.exploiters})
	s.meanReserve = append(s.meanReserve, mean)
}

func (s *Stats) Population() []PopulationSample {
	return append([]PopulationSample(nil), s.population...)
}

func (s *Stats) MeanReserveHistory() []float64 {
	return append([]float64(nil), s.meanReserve...)
}

func (s *Stats) Deaths() []DeathRecord {
	return append([]DeathRecord(nil), s.deaths...)
}

func (s *Stats) ExpectedAges() []float64 {
	return append([]float64(nil), s.expectedAges...)
}

// Summary condenses a run for sweeps and the run index.
type Summary struct {
	Ticks            uint64  `json:"ticks"`
	Births           int     `json:"births"`
	Deaths           int     `json:"deaths"`
	FinalExplorers   int     `json:"final_explorers"`
	FinalExploiters  int     `json:"final_exploiters"`
	MeanAge          float64 `json:"mean_age"`
	MeanExplorerAge  float64 `json:"mean_explorer_age"`
	MeanExploiterAge float64 `json:"mean_exploiter_age"`
	MeanExpectedAge  float64 `json:"mean_expected_age"`
	MeanMemoryLen    float64 `json:"mean_memory_len"`
	PeakPopulation   int     `json:"peak_population"`
	FinalMeanReserve float64 `json:"final_mean_reserve"`
}

func (s *Stats) Summary(ticks uint64) Summary {
	out := Summary{
		Ticks:           ticks,
		Births:          s.births,
		Deaths:          len(s.deaths),
		FinalExplorers:  s.explorers,
		FinalExploiters: s.exploiters,
		MeanExpectedAge: mean(s.expectedAges),
	}
	var all, explorers, exploiters, mem []float64
	for _, d := range s.deaths {
		age := float64(d.Age)
		all = append(all, age)
		mem = append(mem, float64(d.MemoryLen))
		switch d.Kind {
		case KindExplorer.String():
			explorers = append(explorers, age)
		case KindExploiter.String():
			exploiters = append(exploiters, age)
		}
	}
	out.MeanAge = mean(all)
	out.MeanExplorerAge = mean(explorers)
	out.MeanExploiterAge = mean(exploiters)
	out.MeanMemoryLen = mean(mem)
	for _, p := range s.population {
		out.PeakPopulation = max(out.PeakPopulation, p.Explorers+p.Exploiters)
	}
	if n := len(s.meanReserve); n > 0 {
		out.FinalMeanReserve = s.meanReserve[n-1]
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
