package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhasePhysics)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseStrategy)
		time.Sleep(200 * time.Microsecond)
		if d := pc.EndTick(); d <= 0 {
			t.Fatalf("tick %d duration = %v", i, d)
		}
	}

	stats := pc.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration")
	}
	for _, phase := range []string{PhasePhysics, PhaseStrategy} {
		if _, ok := stats.PhaseAvg[phase]; !ok {
			t.Errorf("expected %s phase to be tracked", phase)
		}
	}
	if _, ok := stats.PhaseAvg[PhaseReferee]; ok {
		t.Error("untimed phase reported")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseApply)
		time.Sleep(10 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration after window filled")
	}
	if stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
	if stats.MinTickDuration > stats.AvgTickDuration || stats.AvgTickDuration > stats.MaxTickDuration {
		t.Errorf("min %v avg %v max %v out of order", stats.MinTickDuration, stats.AvgTickDuration, stats.MaxTickDuration)
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseObserve)
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase(PhaseStrategy)
		time.Sleep(2 * time.Millisecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	fast := stats.PhasePct[PhaseObserve]
	slow := stats.PhasePct[PhaseStrategy]
	if slow <= fast {
		t.Errorf("expected strategy (%v%%) > observe (%v%%)", slow, fast)
	}

	row := stats.ToCSV(42)
	if row.WindowEnd != 42 || row.StrategyPct != slow {
		t.Errorf("csv row = %+v", row)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)
	stats := pc.Stats()

	if stats.AvgTickDuration != 0 {
		t.Error("expected zero avg tick duration for empty collector")
	}
	if stats.PhaseAvg == nil || stats.PhasePct == nil {
		t.Error("expected non-nil phase maps")
	}
}
