package field

import (
	"math"
	"testing"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/config"
	"gonum.org/v1/gonum/spatial/r2"
)

func testField(t *testing.T) *Field {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return New(cfg)
}

func TestHeadingFrame(t *testing.T) {
	tests := []struct {
		name    string
		heading float64
		fwd     r2.Vec
	}{
		{"north", 0, r2.Vec{X: 0, Y: -1}},
		{"east", math.Pi / 2, r2.Vec{X: 1, Y: 0}},
		{"south", math.Pi, r2.Vec{X: 0, Y: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Forward(tt.heading)
			if math.Abs(got.X-tt.fwd.X) > 1e-9 || math.Abs(got.Y-tt.fwd.Y) > 1e-9 {
				t.Errorf("Forward(%v) = %v, want %v", tt.heading, got, tt.fwd)
			}
		})
	}

	// Facing north, a target to the east is 90 degrees to the right.
	if b := Bearing(r2.Vec{X: 10}, 0); math.Abs(b-math.Pi/2) > 1e-9 {
		t.Errorf("bearing = %v, want pi/2", b)
	}
	w := ToWorldFrame(3, 4, 0.7)
	f, r := ToRobotFrame(w, 0.7)
	if math.Abs(f-3) > 1e-9 || math.Abs(r-4) > 1e-9 {
		t.Errorf("frame round trip = (%v, %v), want (3, 4)", f, r)
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := NormalizeAngle(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGoals(t *testing.T) {
	f := testField(t)
	blue := f.Goal(components.Blue)
	if blue.LineY <= 0 {
		t.Fatalf("blue goal should be south, line y = %v", blue.LineY)
	}

	inside := r2.Vec{X: 0, Y: f.HalfH + 4}
	if !blue.Contains(inside, 2.1) {
		t.Error("ball behind the blue goal line should be in goal")
	}
	if blue.Contains(r2.Vec{X: 0, Y: f.HalfH + 1}, 2.1) {
		t.Error("ball straddling the line should not count")
	}
	if f.Goal(components.Yellow).Contains(inside, 2.1) {
		t.Error("ball in the blue goal is not in the yellow goal")
	}
	if !f.InAnyGoalBox(r2.Vec{X: 10, Y: -f.HalfH - 2}) {
		t.Error("point behind the north line between posts is in a goal box")
	}
}

func TestWallsIncludeGoalBoxes(t *testing.T) {
	f := testField(t)
	if len(f.Walls) != 4+2*3 {
		t.Fatalf("walls = %d, want 10", len(f.Walls))
	}
	s := Segment{A: r2.Vec{X: 0, Y: 0}, B: r2.Vec{X: 10, Y: 0}}
	if d := s.Distance(r2.Vec{X: 5, Y: 3}); d != 3 {
		t.Errorf("distance = %v, want 3", d)
	}
	if d := s.Distance(r2.Vec{X: -4, Y: 3}); d != 5 {
		t.Errorf("distance past endpoint = %v, want 5", d)
	}
}

func TestRestartSpot(t *testing.T) {
	f := testField(t)
	tests := []struct {
		name string
		exit r2.Vec
		kind SpotKind
		x, y float64
	}{
		{"east side", r2.Vec{X: f.HalfW, Y: 20}, SpotSide, 45, 0},
		{"west side", r2.Vec{X: -f.HalfW, Y: -30}, SpotSide, -45, 0},
		{"north goal line", r2.Vec{X: 50, Y: -f.HalfH}, SpotCorner, 45, -64.5},
		{"south goal line", r2.Vec{X: -50, Y: f.HalfH}, SpotCorner, -45, 64.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := f.RestartSpot(tt.exit)
			if s.Kind != tt.kind || s.Pos.X != tt.x || s.Pos.Y != tt.y {
				t.Errorf("RestartSpot(%v) = %+v, want kind %v at (%v, %v)", tt.exit, s, tt.kind, tt.x, tt.y)
			}
		})
	}
	if len(f.Spots) != 7 {
		t.Errorf("spots = %d, want 7", len(f.Spots))
	}
}
