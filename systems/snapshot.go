package systems

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/kinematics"
)

// BallEventKind classifies ball containment events.
type BallEventKind uint8

const (
	BallInGoal BallEventKind = iota
	BallOutOfBounds
)

func (k BallEventKind) String() string {
	switch k {
	case BallInGoal:
		return "in_goal"
	case BallOutOfBounds:
		return "out_of_bounds"
	}
	return "unknown"
}

// BallEvent is reported on every step the condition holds.
type BallEvent struct {
	Kind BallEventKind
	Goal components.Team // owner of the goal for BallInGoal
	Pos  r2.Vec
	Exit r2.Vec // boundary point for BallOutOfBounds
}

// Touch records a robot contacting the ball during a step.
type Touch struct {
	Robot RobotID
	Team  components.Team
	Kick  bool
}

// RobotState is a copied view of one robot.
type RobotState struct {
	ID      RobotID
	Team    components.Team
	Role    components.Role
	Pos     r2.Vec
	Vel     r2.Vec
	Heading float64
	AngVel  float64
	Radius  float64
	Command kinematics.Twist
	Kick    bool

	BumperFront, BumperLeft, BumperRight bool
	LineFront, LineLeft, LineRight       bool
	Stuck                                bool
	StuckConfidence                      float64
}

// BallState is a copied view of the ball.
type BallState struct {
	Pos    r2.Vec
	Vel    r2.Vec
	Radius float64
}

// Snapshot is a deep copy of the world after a step. Readers cannot reach
// physics state through it.
type Snapshot struct {
	Tick    int64
	Robots  []RobotState // ascending id
	Ball    BallState
	HasBall bool
	Events  []BallEvent
	Touches []Touch
}

// Snapshot copies the current state.
func (w *World) Snapshot() *Snapshot {
	s := &Snapshot{
		Tick:    w.tick,
		Robots:  make([]RobotState, 0, len(w.robots)),
		Events:  append([]BallEvent(nil), w.events...),
		Touches: append([]Touch(nil), w.touches...),
	}
	for _, ref := range w.robots {
		pos := w.posMap.Get(ref.entity)
		vel := w.velMap.Get(ref.entity)
		rot := w.rotMap.Get(ref.entity)
		body := w.bodyMap.Get(ref.entity)
		robot := w.robotMap.Get(ref.entity)
		s.Robots = append(s.Robots, RobotState{
			ID:              ref.id,
			Team:            robot.Team,
			Role:            robot.Role,
			Pos:             vec(pos),
			Vel:             velVec(vel),
			Heading:         rot.Heading,
			AngVel:          rot.AngVel,
			Radius:          body.Radius,
			Command:         kinematics.Twist{Vx: robot.CmdForward, Vy: robot.CmdStrafe, Omega: robot.CmdTurn},
			Kick:            robot.Kick,
			BumperFront:     robot.BumperFront,
			BumperLeft:      robot.BumperLeft,
			BumperRight:     robot.BumperRight,
			LineFront:       robot.LineFront,
			LineLeft:        robot.LineLeft,
			LineRight:       robot.LineRight,
			Stuck:           robot.Stuck,
			StuckConfidence: w.stuckConfidence(robot),
		})
	}
	if w.hasBall {
		s.HasBall = true
		s.Ball = BallState{
			Pos:    vec(w.posMap.Get(w.ball)),
			Vel:    velVec(w.velMap.Get(w.ball)),
			Radius: w.ballMap.Get(w.ball).Radius,
		}
	}
	return s
}

// Robot returns the state of robot id.
func (s *Snapshot) Robot(id RobotID) (RobotState, bool) {
	if id >= 0 && int(id) < len(s.Robots) && s.Robots[id].ID == id {
		return s.Robots[id], true
	}
	for _, r := range s.Robots {
		if r.ID == id {
			return r, true
		}
	}
	return RobotState{}, false
}

// Event returns the first event of the given kind.
func (s *Snapshot) Event(kind BallEventKind) (BallEvent, bool) {
	for _, e := range s.Events {
		if e.Kind == kind {
			return e, true
		}
	}
	return BallEvent{}, false
}

// Digest fingerprints body positions, velocities and headings. Two matches
// with identical inputs produce identical digest sequences.
func (s *Snapshot) Digest() uint64 {
	buf := make([]byte, 0, 8*(1+len(s.Robots)*6+4))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.Tick))
	for _, r := range s.Robots {
		for _, f := range [...]float64{r.Pos.X, r.Pos.Y, r.Vel.X, r.Vel.Y, r.Heading, r.AngVel} {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
		}
	}
	for _, f := range [...]float64{s.Ball.Pos.X, s.Ball.Pos.Y, s.Ball.Vel.X, s.Ball.Vel.Y} {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
	}
	return xxhash.Sum64(buf)
}
