package strategies

import (
	"math"

	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/kinematics"
	"github.com/pthm-cable/robosim/sandbox"
	"github.com/pthm-cable/robosim/systems"
	"github.com/pthm-cable/robosim/vision"
)

// AttackerPhase tags the attacker's state.
type AttackerPhase uint8

const (
	AttackSearch AttackerPhase = iota
	AttackApproach
	AttackDribble
	AttackRecover
)

func (p AttackerPhase) String() string {
	switch p {
	case AttackSearch:
		return "search"
	case AttackApproach:
		return "approach"
	case AttackDribble:
		return "dribble"
	case AttackRecover:
		return "recover"
	}
	return "unknown"
}

// AttackerState is the attacker's state. Ticks counts ticks spent in Phase.
type AttackerState struct {
	Phase AttackerPhase
	Ticks int
}

// enter switches phase and restarts the phase clock.
func (s AttackerState) enter(p AttackerPhase) AttackerState {
	return AttackerState{Phase: p}
}

// NextAttacker is the attacker's transition function. ball is the tracked
// ball estimate, which may be remembered rather than visible.
func NextAttacker(s AttackerState, ws vision.WorldState, ball vision.Observation, p config.StrategiesConfig) (AttackerState, kinematics.Twist, bool) {
	if s.Phase != AttackRecover && (ws.Stuck || (ws.BumperFront && s.Phase != AttackDribble)) {
		s = s.enter(AttackRecover)
	}

	switch s.Phase {
	case AttackSearch:
		if ball.Confidence > 0 {
			return NextAttacker(s.enter(AttackApproach), ws, ball, p)
		}
		return s.tick(), kinematics.Twist{Omega: p.SearchTurn}, false

	case AttackApproach:
		if ball.Confidence == 0 {
			return s.enter(AttackSearch), kinematics.Twist{Omega: p.SearchTurn}, false
		}
		if ball.Visible && ball.Distance < p.DribbleDistance && math.Abs(ball.AngleDeg) < 15 {
			return NextAttacker(s.enter(AttackDribble), ws, ball, p)
		}
		tw := kinematics.Twist{Omega: clampUnit(ball.AngleDeg * p.TurnGain)}
		if math.Abs(ball.AngleDeg) < 60 {
			tw.Vx = p.ApproachSpeed * math.Cos(ball.AngleDeg*math.Pi/180)
		}
		if ws.LineFront {
			tw.Vx = -0.3
		}
		return s.tick(), tw, false

	case AttackDribble:
		if !ball.Visible || ball.Distance > 1.5*p.DribbleDistance {
			return s.enter(AttackApproach), kinematics.Twist{}, false
		}
		goal := ws.TargetGoal()
		tw := kinematics.Twist{Vx: p.DribbleSpeed}
		kick := false
		if goal.Visible {
			tw.Omega = clampUnit(goal.AngleDeg * p.TurnGain * 0.5)
			kick = math.Abs(goal.AngleDeg) < p.KickAngle && goal.Distance < p.KickDistance
		}
		return s.tick(), tw, kick

	case AttackRecover:
		if s.Ticks >= p.RecoverTicks {
			return s.enter(AttackSearch), kinematics.Twist{}, false
		}
		return s.tick(), kinematics.Twist{Vx: -0.5}, false
	}
	return s.enter(AttackSearch), kinematics.Twist{}, false
}

func (s AttackerState) tick() AttackerState {
	s.Ticks++
	return s
}

type attackerMemory struct {
	state AttackerState
	ball  *vision.Tracker
}

// Attacker returns the reference attacker controller.
func Attacker(p config.StrategiesConfig) sandbox.Controller {
	return sandbox.Func(func(ws vision.WorldState, cell *sandbox.Cell) (systems.Action, error) {
		mem, ok := cell.Value.(*attackerMemory)
		if !ok {
			mem = &attackerMemory{ball: vision.NewTracker(p.MemoryDecay)}
			cell.Value = mem
		}
		ball := mem.ball.Update(ws.Ball, ws.DtS)
		next, tw, kick := NextAttacker(mem.state, ws, ball, p)
		mem.state = next
		return act(tw, kick), nil
	})
}
