// Package kinematics converts between robot-frame motion commands and the four
// motor commands of an X-configured omni-wheel drive.
//
// Wheel order is front-left, front-right, back-right, back-left. The mixing
// matrix is shared with the robot firmware; MixMatrix exposes it.
package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Twist is a robot-frame motion command. Forward is Vx, rightward strafe is Vy
// and clockwise rotation is Omega. Each term is nominally in [-1, 1].
type Twist struct {
	Vx, Vy, Omega float64
}

// mixing maps [vx vy omega] to [FL FR BR BL]. It is the firmware contract:
// rotation drives every wheel +1, so the omega column differs from strafe.
var mixing = mat.NewDense(4, 3, []float64{
	1, 1, 1,
	-1, 1, 1,
	1, -1, 1,
	-1, -1, 1,
})

// unmixing is the pseudo-inverse of mixing. The columns of mixing are
// orthogonal with squared norm 4, so it is the transpose scaled by 1/4.
var unmixing = func() *mat.Dense {
	var u mat.Dense
	u.Scale(0.25, mixing.T())
	return &u
}()

// MixMatrix returns a copy of the 4x3 mixing matrix.
func MixMatrix() *mat.Dense {
	return mat.DenseCopyOf(mixing)
}

// Mix converts a twist into motor commands, each clamped to [-1, 1].
func Mix(t Twist) [4]float64 {
	var out mat.VecDense
	out.MulVec(mixing, mat.NewVecDense(3, []float64{t.Vx, t.Vy, t.Omega}))

	var m [4]float64
	for i := range m {
		m[i] = clampUnit(out.AtVec(i))
	}
	return m
}

// Policy reconstructs a twist from motor commands. The inverse is not unique
// once commands saturate, so the choice is explicit.
type Policy func(m [4]float64) Twist

// Unmix is the default inverse. It is Projection rather than SignHeuristic
// so that combined strafe and rotation survive the round trip.
var Unmix Policy = Projection

// PolicyByName returns a named inverse policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "projection":
		return Projection, nil
	case "sign_heuristic":
		return SignHeuristic, nil
	}
	return nil, fmt.Errorf("unknown unmix policy %q", name)
}

// Projection applies the pseudo-inverse of the mixing matrix. It is exact for
// any unsaturated command, including strafe combined with rotation.
func Projection(m [4]float64) Twist {
	in := make([]float64, 4)
	for i := range m {
		in[i] = clampUnit(m[i])
	}
	var out mat.VecDense
	out.MulVec(unmixing, mat.NewVecDense(4, in))
	return Twist{Vx: out.AtVec(0), Vy: out.AtVec(1), Omega: out.AtVec(2)}
}

// SignHeuristic is the firmware's inverse. It recovers forward motion from the
// differential term and attributes the rest to rotation when every non-zero
// command shares one sign, otherwise to strafe. Simultaneous strafe and
// rotation cannot be reconstructed, and forward plus rotation only when the
// rotation term is at least as large as the forward term.
func SignHeuristic(m [4]float64) Twist {
	for i := range m {
		m[i] = clampUnit(m[i])
	}
	t := Twist{Vx: (m[0] - m[1] + m[2] - m[3]) / 4}

	if sameSign(m) {
		t.Omega = (m[0] + m[1] + m[2] + m[3]) / 4
	} else {
		t.Vy = (m[0] + m[1] - m[2] - m[3]) / 4
	}
	return t
}

// sameSign reports whether all non-zero entries share a sign. All zeros counts.
func sameSign(m [4]float64) bool {
	pos, neg := false, false
	for _, v := range m {
		switch {
		case v > 0:
			pos = true
		case v < 0:
			neg = true
		}
	}
	return !(pos && neg)
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
