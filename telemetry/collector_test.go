package telemetry

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/referee"
	"github.com/pthm-cable/robosim/systems"
)

func ballAt(tick int64, x, speed float64) *systems.Snapshot {
	return &systems.Snapshot{
		Tick:    tick,
		HasBall: true,
		Ball:    systems.BallState{Pos: r2.Vec{X: x}, Vel: r2.Vec{X: speed}},
	}
}

func TestCollector_WindowFlush(t *testing.T) {
	c := NewCollector(1, 0.1) // 10 ticks per window
	if c.WindowDurationTicks() != 10 {
		t.Fatalf("window ticks = %d, want 10", c.WindowDurationTicks())
	}

	for tick := int64(1); tick <= 10; tick++ {
		c.RecordSnapshot(ballAt(tick, float64(tick), 10))
	}
	snap := ballAt(10, 10, 10)
	snap.Touches = []systems.Touch{{Robot: 0, Team: components.Blue}, {Robot: 2, Team: components.Yellow, Kick: true}}
	snap.Robots = []systems.RobotState{{ID: 0, Stuck: true}, {ID: 1}}
	c.RecordSnapshot(snap)
	c.RecordReferee(referee.Event{Kind: referee.EventGoal, Team: components.Yellow, HasTeam: true})
	c.RecordReferee(referee.Event{Kind: referee.EventOutOfBounds})
	c.RecordFault()

	if !c.ShouldFlush(10) || c.ShouldFlush(9) {
		t.Fatal("flush boundary wrong")
	}
	state := referee.GameState{Phase: referee.PhasePlaying, Score: [2]int{0, 1}}
	w := c.Flush(10, state)

	if math.Abs(w.BallTravel-9) > 1e-9 {
		t.Errorf("ball travel = %v, want 9", w.BallTravel)
	}
	if w.Touches != 2 || w.Kicks != 1 || w.StuckTicks != 1 {
		t.Errorf("touches %d kicks %d stuck %d", w.Touches, w.Kicks, w.StuckTicks)
	}
	if w.GoalsYellow != 1 || w.GoalsBlue != 0 || w.OutOfBounds != 1 || w.Faults != 1 {
		t.Errorf("counts = %+v", w)
	}
	if w.BallSpeedMean != 10 || w.Phase != "playing" || w.ScoreYellow != 1 {
		t.Errorf("window = %+v", w)
	}
	if math.Abs(w.SimTimeSec-1) > 1e-9 {
		t.Errorf("sim time = %v, want 1", w.SimTimeSec)
	}

	// The next window starts empty but the summary keeps the totals.
	c.RecordFault()
	next := c.Flush(20, state)
	if next.Faults != 1 || next.Touches != 0 || next.WindowStartTick != 10 {
		t.Errorf("second window = %+v", next)
	}
	c.RecordTick(100 * time.Microsecond)
	c.RecordTick(300 * time.Microsecond)
	s := c.Summary(20, state)
	if s.Faults != 2 || s.Touches != 2 || s.Winner != "yellow" {
		t.Errorf("summary = %+v", s)
	}
	if math.Abs(s.TickUSMean-200) > 1e-9 || s.TickUSStd <= 0 {
		t.Errorf("tick mean %v std %v", s.TickUSMean, s.TickUSStd)
	}
}

func TestCollector_RepositionSkipsTeleport(t *testing.T) {
	c := NewCollector(1, 0.1)
	c.RecordSnapshot(ballAt(1, 0, 0))
	c.RecordSnapshot(ballAt(2, 5, 0))
	c.Reposition()
	c.RecordSnapshot(ballAt(3, 80, 0))
	c.RecordSnapshot(ballAt(4, 82, 0))

	w := c.Flush(4, referee.GameState{})
	if math.Abs(w.BallTravel-7) > 1e-9 {
		t.Errorf("ball travel = %v, want 7", w.BallTravel)
	}
}

func TestCollector_SummaryDraw(t *testing.T) {
	c := NewCollector(1, 1.0/60)
	s := c.Summary(0, referee.GameState{Score: [2]int{2, 2}})
	if s.Winner != "draw" || s.TickUSMean != 0 {
		t.Errorf("summary = %+v", s)
	}
}

func TestDistribution(t *testing.T) {
	mean, p50, p90 := Distribution([]float64{5, 1, 3, 2, 4})
	if mean != 3 {
		t.Errorf("mean = %v, want 3", mean)
	}
	if p50 < 2 || p50 > 3 || p90 < 4 || p90 > 5 {
		t.Errorf("p50 = %v p90 = %v", p50, p90)
	}
	if m, a, b := Distribution(nil); m != 0 || a != 0 || b != 0 {
		t.Error("empty distribution should be zero")
	}
	if Percentile([]float64{1, 2}, 2) != 2 {
		t.Error("percentile above 1 should clamp to max")
	}
}
