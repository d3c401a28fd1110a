package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/field"
	"github.com/pthm-cable/robosim/kinematics"
)

func newTestWorld(t *testing.T) (*World, *config.Config) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return NewWorld(cfg, field.New(cfg)), cfg
}

func drive(tw kinematics.Twist, kick bool) Action {
	return Action{Motors: kinematics.Mix(tw), Kick: kick}
}

func run(w *World, id RobotID, a Action, ticks int, dt float64) {
	for i := 0; i < ticks; i++ {
		w.Step(map[RobotID]Action{id: a}, dt)
	}
}

func TestForwardDriveMovesNorth(t *testing.T) {
	w, cfg := newTestWorld(t)
	id := w.AddRobot(RobotSpec{Team: components.Blue, Pos: r2.Vec{X: 0, Y: 40}})

	before, _ := w.Snapshot().Robot(id)
	run(w, id, drive(kinematics.Twist{Vx: 1}, false), 30, cfg.Match.DT)
	after, _ := w.Snapshot().Robot(id)

	if after.Pos.Y >= before.Pos.Y {
		t.Errorf("y went from %v to %v, want decrease", before.Pos.Y, after.Pos.Y)
	}
	if math.Abs(after.Pos.X-before.Pos.X) > 1e-6 {
		t.Errorf("x drifted by %v", after.Pos.X-before.Pos.X)
	}
	if math.Abs(after.Heading-before.Heading) > 1e-9 {
		t.Errorf("heading changed from %v to %v", before.Heading, after.Heading)
	}
}

func TestPureRotationDoesNotTranslate(t *testing.T) {
	w, cfg := newTestWorld(t)
	id := w.AddRobot(RobotSpec{Team: components.Blue, Pos: r2.Vec{X: 10, Y: 20}})

	run(w, id, drive(kinematics.Twist{Omega: 0.5}, false), 20, cfg.Match.DT)
	s, _ := w.Snapshot().Robot(id)

	if math.Abs(s.Pos.X-10) > 1e-6 || math.Abs(s.Pos.Y-20) > 1e-6 {
		t.Errorf("position moved to %v", s.Pos)
	}
	if s.Heading <= 0 {
		t.Errorf("heading = %v, want clockwise rotation", s.Heading)
	}
	if s.AngVel > cfg.Derived.MaxAngularRate+1e-9 {
		t.Errorf("angular velocity %v above limit", s.AngVel)
	}
}

func TestStrafeMovesRight(t *testing.T) {
	w, cfg := newTestWorld(t)
	id := w.AddRobot(RobotSpec{Team: components.Blue})

	run(w, id, drive(kinematics.Twist{Vy: 1}, false), 20, cfg.Match.DT)
	s, _ := w.Snapshot().Robot(id)
	if s.Pos.X <= 0 || math.Abs(s.Pos.Y) > 1e-6 {
		t.Errorf("strafe right ended at %v", s.Pos)
	}
}

func TestMissingAndInvalidActionsAreNeutral(t *testing.T) {
	w, cfg := newTestWorld(t)
	a := w.AddRobot(RobotSpec{Team: components.Blue, Pos: r2.Vec{X: -30}})
	b := w.AddRobot(RobotSpec{Team: components.Yellow, Pos: r2.Vec{X: 30}})

	bad := Action{Motors: [4]float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()}}
	for i := 0; i < 10; i++ {
		w.Step(map[RobotID]Action{a: bad}, cfg.Match.DT)
	}
	snap := w.Snapshot()
	for _, id := range []RobotID{a, b} {
		r, _ := snap.Robot(id)
		if r2.Norm(r.Vel) != 0 {
			t.Errorf("robot %d moved with a neutral action: vel %v", id, r.Vel)
		}
	}
}

func TestKicker(t *testing.T) {
	tests := []struct {
		name     string
		ball     r2.Vec
		kick     bool
		wantKick bool
	}{
		{"ball in notch", r2.Vec{X: 0, Y: -8.6}, true, true},
		{"no request", r2.Vec{X: 0, Y: -8.6}, false, false},
		{"ball behind", r2.Vec{X: 0, Y: 11.6}, true, false},
		{"ball too far", r2.Vec{X: 0, Y: -20}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, cfg := newTestWorld(t)
			id := w.AddRobot(RobotSpec{Team: components.Blue})
			w.AddBall(tt.ball)

			w.Step(map[RobotID]Action{id: {Kick: tt.kick}}, cfg.Match.DT)
			snap := w.Snapshot()

			kicked := snap.Ball.Vel.Y < -cfg.Kicker.Speed/2
			if kicked != tt.wantKick {
				t.Errorf("ball velocity %v, kicked = %v, want %v", snap.Ball.Vel, kicked, tt.wantKick)
			}
			if tt.wantKick && (len(snap.Touches) == 0 || !snap.Touches[len(snap.Touches)-1].Kick) {
				t.Errorf("kick not recorded as touch: %+v", snap.Touches)
			}
		})
	}
}

func TestRobotPushesBall(t *testing.T) {
	w, cfg := newTestWorld(t)
	id := w.AddRobot(RobotSpec{Team: components.Yellow, Pos: r2.Vec{X: 0, Y: 0}})
	w.AddBall(r2.Vec{X: 0, Y: -12})

	touched := false
	for i := 0; i < 30; i++ {
		w.Step(map[RobotID]Action{id: drive(kinematics.Twist{Vx: 0.6}, false)}, cfg.Match.DT)
		for _, tc := range w.Snapshot().Touches {
			if tc.Team == components.Yellow {
				touched = true
			}
		}
	}
	snap := w.Snapshot()
	if snap.Ball.Pos.Y >= -12 {
		t.Errorf("ball y = %v, want pushed north", snap.Ball.Pos.Y)
	}
	if !touched {
		t.Error("no yellow touch recorded")
	}
	r, _ := snap.Robot(id)
	if d := r2.Norm(r2.Sub(snap.Ball.Pos, r.Pos)); d < cfg.Robot.Radius-cfg.Robot.NotchDepth+cfg.Ball.Radius-1e-6 {
		t.Errorf("ball penetrates robot: distance %v", d)
	}
}

func TestWallContactSensorsAndStuck(t *testing.T) {
	w, cfg := newTestWorld(t)
	f := w.Field()
	id := w.AddRobot(RobotSpec{Team: components.Blue, Pos: r2.Vec{X: f.OuterHalfW - 15}, Heading: math.Pi / 2})

	run(w, id, drive(kinematics.Twist{Vx: 1}, false), 4*cfg.Sensors.StuckWindow, cfg.Match.DT)
	s, _ := w.Snapshot().Robot(id)

	if s.Pos.X > f.OuterHalfW-cfg.Robot.Radius+1e-9 {
		t.Errorf("robot passed through the wall: x = %v", s.Pos.X)
	}
	if !s.BumperFront {
		t.Error("front bumper not pressed against the wall")
	}
	if s.BumperLeft || s.BumperRight {
		t.Error("side bumpers should be clear")
	}
	if !s.LineFront {
		t.Error("front line sensor should see outside the inner field")
	}
	if !s.Stuck || s.StuckConfidence <= 0 {
		t.Errorf("stuck = %v (confidence %v), want stuck", s.Stuck, s.StuckConfidence)
	}

	// Stopping clears the detector.
	run(w, id, Neutral(), 1, cfg.Match.DT)
	if s, _ := w.Snapshot().Robot(id); s.Stuck {
		t.Error("stuck persisted without a command")
	}
}

func TestRobotsDoNotOverlap(t *testing.T) {
	w, cfg := newTestWorld(t)
	a := w.AddRobot(RobotSpec{Team: components.Blue, Pos: r2.Vec{X: -5}})
	b := w.AddRobot(RobotSpec{Team: components.Yellow, Pos: r2.Vec{X: 5}})

	w.Step(nil, cfg.Match.DT)
	snap := w.Snapshot()
	ra, _ := snap.Robot(a)
	rb, _ := snap.Robot(b)
	if d := r2.Norm(r2.Sub(ra.Pos, rb.Pos)); d < 2*cfg.Robot.Radius-1e-6 {
		t.Errorf("robots overlap: distance %v", d)
	}
}

func TestBallEvents(t *testing.T) {
	w, cfg := newTestWorld(t)
	f := w.Field()

	w.AddBall(r2.Vec{X: 0, Y: f.HalfH + 4})
	w.Step(nil, cfg.Match.DT)
	ev, ok := w.Snapshot().Event(BallInGoal)
	if !ok || ev.Goal != components.Blue {
		t.Fatalf("events = %+v, want ball in the blue goal", w.Snapshot().Events)
	}

	w.PlaceBall(r2.Vec{X: f.HalfW + 5, Y: 10})
	w.Step(nil, cfg.Match.DT)
	ev, ok = w.Snapshot().Event(BallOutOfBounds)
	if !ok {
		t.Fatal("no out-of-bounds event")
	}
	if ev.Exit.X != f.HalfW || ev.Exit.Y != 10 {
		t.Errorf("exit = %v, want (%v, 10)", ev.Exit, f.HalfW)
	}

	w.PlaceBall(r2.Vec{})
	w.Step(nil, cfg.Match.DT)
	if n := len(w.Snapshot().Events); n != 0 {
		t.Errorf("ball at centre produced %d events", n)
	}
}

func TestDegenerateInputsAreRepaired(t *testing.T) {
	w, cfg := newTestWorld(t)
	f := w.Field()
	id := w.AddRobot(RobotSpec{Team: components.Blue, Pos: r2.Vec{X: 1000, Y: -1000}})
	w.AddBall(r2.Vec{X: 3, Y: 4})

	s, _ := w.Snapshot().Robot(id)
	if s.Pos.X > f.OuterHalfW || s.Pos.Y < -f.OuterHalfH {
		t.Errorf("placement not clamped: %v", s.Pos)
	}

	w.PlaceBall(r2.Vec{X: math.NaN(), Y: 0})
	w.PlaceRobot(id, r2.Vec{X: math.Inf(1)}, 0)
	w.Step(nil, cfg.Match.DT)
	snap := w.Snapshot()
	if snap.Ball.Pos != (r2.Vec{X: 3, Y: 4}) {
		t.Errorf("ball moved by invalid placement: %v", snap.Ball.Pos)
	}
	if r, _ := snap.Robot(id); !field.Finite(r.Pos) {
		t.Errorf("robot position not finite: %v", r.Pos)
	}
}

func TestDeterministicDigest(t *testing.T) {
	digests := func() []uint64 {
		w, cfg := newTestWorld(t)
		a := w.AddRobot(RobotSpec{Team: components.Blue, Pos: r2.Vec{Y: 30}})
		b := w.AddRobot(RobotSpec{Team: components.Yellow, Pos: r2.Vec{Y: -30}, Heading: math.Pi})
		w.AddBall(r2.Vec{})
		var out []uint64
		for i := 0; i < 120; i++ {
			w.Step(map[RobotID]Action{
				a: drive(kinematics.Twist{Vx: 0.7, Omega: 0.1}, i%20 == 0),
				b: drive(kinematics.Twist{Vx: 0.5, Vy: 0.2}, false),
			}, cfg.Match.DT)
			out = append(out, w.Snapshot().Digest())
		}
		return out
	}
	first, second := digests(), digests()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("digest diverged at tick %d", i)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	w, _ := newTestWorld(t)
	id := w.AddRobot(RobotSpec{Team: components.Blue})
	snap := w.Snapshot()
	snap.Robots[0].Pos = r2.Vec{X: 50, Y: 50}

	if r, _ := w.Snapshot().Robot(id); r.Pos != (r2.Vec{}) {
		t.Errorf("mutating a snapshot changed the world: %v", r.Pos)
	}
}
