package field

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Heading helpers. Headings are radians with 0 = north (-y) and positive
// values turning clockwise, so the forward axis is (sin h, -cos h).

// Forward returns the unit forward vector for heading h.
func Forward(h float64) r2.Vec {
	return r2.Vec{X: math.Sin(h), Y: -math.Cos(h)}
}

// Right returns the unit vector pointing to the robot's right for heading h.
func Right(h float64) r2.Vec {
	return r2.Vec{X: math.Cos(h), Y: math.Sin(h)}
}

// ToRobotFrame splits a world-frame vector into forward and rightward components.
func ToRobotFrame(d r2.Vec, h float64) (forward, right float64) {
	return r2.Dot(d, Forward(h)), r2.Dot(d, Right(h))
}

// ToWorldFrame composes a world vector from robot-frame components.
func ToWorldFrame(forward, right, h float64) r2.Vec {
	return r2.Add(r2.Scale(forward, Forward(h)), r2.Scale(right, Right(h)))
}

// Bearing returns the signed angle of d as seen from heading h, positive to the right.
func Bearing(d r2.Vec, h float64) float64 {
	f, r := ToRobotFrame(d, h)
	return math.Atan2(r, f)
}

// NormalizeAngle wraps an angle to (-Pi, Pi].
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Clamp clamps v between minVal and maxVal.
func Clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// Finite reports whether both components are finite numbers.
func Finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// Segment is a wall piece between two points.
type Segment struct {
	A, B r2.Vec
}

// Closest returns the point on the segment nearest to p.
func (s Segment) Closest(p r2.Vec) r2.Vec {
	ab := r2.Sub(s.B, s.A)
	l2 := r2.Norm2(ab)
	if l2 == 0 {
		return s.A
	}
	t := Clamp(r2.Dot(r2.Sub(p, s.A), ab)/l2, 0, 1)
	return r2.Add(s.A, r2.Scale(t, ab))
}

// Distance returns the distance from p to the segment.
func (s Segment) Distance(p r2.Vec) float64 {
	return r2.Norm(r2.Sub(p, s.Closest(p)))
}
