package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one match tick, in execution order.
const (
	PhaseApply     = "apply"
	PhasePhysics   = "physics"
	PhaseReferee   = "referee"
	PhaseObserve   = "observe"
	PhaseStrategy  = "strategy"
	PhaseTelemetry = "telemetry"
)

// TickPhases lists the tick phases in execution order.
var TickPhases = []string{PhaseApply, PhasePhysics, PhaseReferee, PhaseObserve, PhaseStrategy, PhaseTelemetry}

// PerfSample holds timing data for a single tick.
type PerfSample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks per-phase tick timing over a rolling window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of ticks to average over (e.g., 120 for 2 seconds at 60 Hz).
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartTick begins timing a new tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.currentPhases = make(map[string]time.Duration, len(TickPhases))
	p.lastPhase = ""
}

// StartPhase ends the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTick finishes timing the current tick, records the sample and returns
// the tick's wall time.
func (p *PerfCollector) EndTick() time.Duration {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	d := now.Sub(p.tickStart)

	p.samples[p.writeIndex] = PerfSample{TickDuration: d, Phases: p.currentPhases}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	return d
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Average duration and share of tick time per phase
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	TicksPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p.sampleCount == 0 {
		return stats
	}

	var total time.Duration
	phaseSum := make(map[string]time.Duration)
	for i, s := range p.samples[:p.sampleCount] {
		total += s.TickDuration
		if i == 0 || s.TickDuration < stats.MinTickDuration {
			stats.MinTickDuration = s.TickDuration
		}
		stats.MaxTickDuration = max(stats.MaxTickDuration, s.TickDuration)
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	n := time.Duration(p.sampleCount)
	stats.AvgTickDuration = total / n
	for phase, sum := range phaseSum {
		stats.PhaseAvg[phase] = sum / n
		if stats.AvgTickDuration > 0 {
			stats.PhasePct[phase] = float64(stats.PhaseAvg[phase]) / float64(stats.AvgTickDuration) * 100
		}
	}
	if stats.AvgTickDuration > 0 {
		stats.TicksPerSecond = float64(time.Second) / float64(stats.AvgTickDuration)
	}
	return stats
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	for _, phase := range TickPhases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10)
		}
	}
	slog.Info("perf", attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd    int64   `csv:"window_end"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	MinTickUS    int64   `csv:"min_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	ApplyPct     float64 `csv:"apply_pct"`
	PhysicsPct   float64 `csv:"physics_pct"`
	RefereePct   float64 `csv:"referee_pct"`
	ObservePct   float64 `csv:"observe_pct"`
	StrategyPct  float64 `csv:"strategy_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		AvgTickUS:    s.AvgTickDuration.Microseconds(),
		MinTickUS:    s.MinTickDuration.Microseconds(),
		MaxTickUS:    s.MaxTickDuration.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		ApplyPct:     s.PhasePct[PhaseApply],
		PhysicsPct:   s.PhasePct[PhasePhysics],
		RefereePct:   s.PhasePct[PhaseReferee],
		ObservePct:   s.PhasePct[PhaseObserve],
		StrategyPct:  s.PhasePct[PhaseStrategy],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
