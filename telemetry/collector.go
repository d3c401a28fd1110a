package telemetry

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/referee"
	"github.com/pthm-cable/robosim/systems"
)

// counts are the additive parts of WindowStats.
type counts struct {
	goals          [2]int
	outOfBounds    int
	lackOfProgress int
	kickoffs       int
	touches        int
	kicks          int
	stuckTicks     int
	faults         int
	overBudget     int
	ballTravel     float64
}

func (c *counts) add(o counts) {
	c.goals[0] += o.goals[0]
	c.goals[1] += o.goals[1]
	c.outOfBounds += o.outOfBounds
	c.lackOfProgress += o.lackOfProgress
	c.kickoffs += o.kickoffs
	c.touches += o.touches
	c.kicks += o.kicks
	c.stuckTicks += o.stuckTicks
	c.faults += o.faults
	c.overBudget += o.overBudget
	c.ballTravel += o.ballTravel
}

// Collector accumulates match activity within time windows and produces
// WindowStats, and keeps match totals for the final Summary.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int64
	dt                  float64

	// Current window tracking
	windowStartTick int64
	window          counts
	ballSpeeds      []float64

	total     counts
	tickTimes []float64 // µs per tick, whole match

	lastBall    r2.Vec
	hasLastBall bool
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float64) *Collector {
	ticksPerWindow := int64(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}
	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordReferee counts a referee decision.
func (c *Collector) RecordReferee(e referee.Event) {
	switch e.Kind {
	case referee.EventGoal:
		c.window.goals[e.Team]++
	case referee.EventOutOfBounds:
		c.window.outOfBounds++
	case referee.EventLackOfProgress:
		c.window.lackOfProgress++
	case referee.EventKickoff:
		c.window.kickoffs++
	}
}

// RecordFault counts a failed strategy call.
func (c *Collector) RecordFault() {
	c.window.faults++
}

// RecordOverBudget counts a strategy call that exceeded its budget.
func (c *Collector) RecordOverBudget() {
	c.window.overBudget++
}

// RecordTick records the wall time of one full tick.
func (c *Collector) RecordTick(d time.Duration) {
	c.tickTimes = append(c.tickTimes, float64(d)/float64(time.Microsecond))
}

// RecordSnapshot samples ball movement, touches and stuck robots after a step.
func (c *Collector) RecordSnapshot(s *systems.Snapshot) {
	for _, t := range s.Touches {
		c.window.touches++
		if t.Kick {
			c.window.kicks++
		}
	}
	for _, r := range s.Robots {
		if r.Stuck {
			c.window.stuckTicks++
		}
	}
	if !s.HasBall {
		return
	}
	if c.hasLastBall {
		c.window.ballTravel += r2.Norm(r2.Sub(s.Ball.Pos, c.lastBall))
	}
	c.lastBall, c.hasLastBall = s.Ball.Pos, true
	c.ballSpeeds = append(c.ballSpeeds, r2.Norm(s.Ball.Vel))
}

// Reposition drops the last ball sample so a referee teleport is not counted
// as ball travel.
func (c *Collector) Reposition() {
	c.hasLastBall = false
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int64, state referee.GameState) WindowStats {
	mean, p50, p90 := Distribution(c.ballSpeeds)
	w := c.window
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,
		Phase:           state.Phase.String(),

		ScoreBlue:   state.Score[components.Blue],
		ScoreYellow: state.Score[components.Yellow],

		GoalsBlue:      w.goals[components.Blue],
		GoalsYellow:    w.goals[components.Yellow],
		OutOfBounds:    w.outOfBounds,
		LackOfProgress: w.lackOfProgress,
		Kickoffs:       w.kickoffs,

		Touches:       w.touches,
		Kicks:         w.kicks,
		BallTravel:    w.ballTravel,
		BallSpeedMean: mean,
		BallSpeedP50:  p50,
		BallSpeedP90:  p90,

		StuckTicks: w.stuckTicks,
		Faults:     w.faults,
		OverBudget: w.overBudget,
	}

	// Reset for next window
	c.total.add(c.window)
	c.window = counts{}
	c.ballSpeeds = c.ballSpeeds[:0]
	c.windowStartTick = currentTick

	return stats
}

// Summary describes the whole match so far, including the unflushed window.
func (c *Collector) Summary(currentTick int64, state referee.GameState) Summary {
	t := c.total
	t.add(c.window)

	winner := "draw"
	if team, ok := state.Winner(); ok {
		winner = team.String()
	}
	s := Summary{
		Ticks:          currentTick,
		SimTimeSec:     float64(currentTick) * c.dt,
		ScoreBlue:      state.Score[components.Blue],
		ScoreYellow:    state.Score[components.Yellow],
		Winner:         winner,
		OutOfBounds:    t.outOfBounds,
		LackOfProgress: t.lackOfProgress,
		Touches:        t.touches,
		Kicks:          t.kicks,
		BallTravel:     t.ballTravel,
		Faults:         t.faults,
		OverBudget:     t.overBudget,
	}
	if len(c.tickTimes) > 0 {
		s.TickUSMean, s.TickUSStd = stat.MeanStdDev(c.tickTimes, nil)
		if len(c.tickTimes) == 1 {
			s.TickUSStd = 0
		}
		_, _, s.TickUSP90 = Distribution(c.tickTimes)
	}
	return s
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}
