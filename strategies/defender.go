package strategies

import (
	"math"

	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/kinematics"
	"github.com/pthm-cable/robosim/sandbox"
	"github.com/pthm-cable/robosim/systems"
	"github.com/pthm-cable/robosim/vision"
)

// DefenderPhase tags the defender's state.
type DefenderPhase uint8

const (
	DefendReturn DefenderPhase = iota
	DefendGuard
	DefendClear
	DefendRecover
)

func (p DefenderPhase) String() string {
	switch p {
	case DefendReturn:
		return "return"
	case DefendGuard:
		return "guard"
	case DefendClear:
		return "clear"
	case DefendRecover:
		return "recover"
	}
	return "unknown"
}

// DefenderState is the defender's state.
type DefenderState struct {
	Phase DefenderPhase
	Ticks int
}

func (s DefenderState) enter(p DefenderPhase) DefenderState {
	return DefenderState{Phase: p}
}

func (s DefenderState) tick() DefenderState {
	s.Ticks++
	return s
}

// clearTicks bounds how long the defender chases before returning.
const clearTicks = 90

// NextDefender is the defender's transition function. The defender keeps its
// back to its own goal, strafes to stay between the ball and the goal and
// charges only when the ball comes close in front.
func NextDefender(s DefenderState, ws vision.WorldState, ball vision.Observation, p config.StrategiesConfig) (DefenderState, kinematics.Twist, bool) {
	if s.Phase != DefendRecover && ws.Stuck {
		s = s.enter(DefendRecover)
	}
	own := ws.OwnGoal()
	// Facing away from the own goal puts it at 180 degrees.
	facingErr := 0.0
	if own.Visible {
		facingErr = wrapDeg(own.AngleDeg - 180)
	}
	face := kinematics.Twist{Omega: clampUnit(facingErr * p.TurnGain)}

	switch s.Phase {
	case DefendReturn:
		if own.Visible && own.Distance <= p.GuardDistance {
			return NextDefender(s.enter(DefendGuard), ws, ball, p)
		}
		if math.Abs(facingErr) > 20 {
			return s.tick(), face, false
		}
		tw := face
		tw.Vx = -0.6
		return s.tick(), tw, false

	case DefendGuard:
		if !own.Visible || own.Distance > 1.5*p.GuardDistance {
			return s.enter(DefendReturn), kinematics.Twist{}, false
		}
		if ball.Visible && ball.Distance < 2*p.DribbleDistance && math.Abs(ball.AngleDeg) < 30 {
			return NextDefender(s.enter(DefendClear), ws, ball, p)
		}
		if math.Abs(facingErr) > 20 {
			return s.tick(), face, false
		}
		tw := kinematics.Twist{}
		if ball.Confidence > 0 && math.Abs(ball.AngleDeg) < 90 {
			tw.Vy = clampUnit(ball.AngleDeg * p.GuardGain)
		}
		if (tw.Vy > 0 && ws.LineRight) || (tw.Vy < 0 && ws.LineLeft) {
			tw.Vy = 0
		}
		return s.tick(), tw, false

	case DefendClear:
		if !ball.Visible || ball.Distance > 3*p.DribbleDistance || s.Ticks >= clearTicks {
			return s.enter(DefendReturn), kinematics.Twist{}, false
		}
		tw := kinematics.Twist{
			Vx:    p.ApproachSpeed,
			Omega: clampUnit(ball.AngleDeg * p.TurnGain),
		}
		kick := ball.Distance < p.DribbleDistance && math.Abs(ball.AngleDeg) < 10
		return s.tick(), tw, kick

	case DefendRecover:
		if s.Ticks >= p.RecoverTicks {
			return s.enter(DefendReturn), kinematics.Twist{}, false
		}
		return s.tick(), kinematics.Twist{Vx: 0.5}, false
	}
	return s.enter(DefendReturn), kinematics.Twist{}, false
}

type defenderMemory struct {
	state DefenderState
	ball  *vision.Tracker
}

// Defender returns the reference defender controller.
func Defender(p config.StrategiesConfig) sandbox.Controller {
	return sandbox.Func(func(ws vision.WorldState, cell *sandbox.Cell) (systems.Action, error) {
		mem, ok := cell.Value.(*defenderMemory)
		if !ok {
			mem = &defenderMemory{ball: vision.NewTracker(p.MemoryDecay)}
			cell.Value = mem
		}
		ball := mem.ball.Update(ws.Ball, ws.DtS)
		next, tw, kick := NextDefender(mem.state, ws, ball, p)
		mem.state = next
		return act(tw, kick), nil
	})
}
