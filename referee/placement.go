package referee

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/systems"
)

const (
	// clearanceMargin keeps repositioned robots strictly outside the clearance.
	clearanceMargin = 1.0
	// defenderDepth is the defender's kickoff distance in front of its goal line.
	defenderDepth = 35.0
	// clearanceStep is the angle between candidate push directions.
	clearanceStep = math.Pi / 6
)

// kickoffHeading faces a team toward the goal it attacks.
func kickoffHeading(t components.Team) float64 {
	if t == components.Blue {
		return 0
	}
	return math.Pi
}

// placeFormation lines both teams up on their own halves. The kicking
// attacker stands behind the ball; everyone else stays outside the centre
// circle.
func (r *Referee) placeFormation(snap *systems.Snapshot, kicking components.Team) {
	for _, rs := range snap.Robots {
		side := rs.Team.Side()
		var depth float64
		switch {
		case rs.Role == components.Defender:
			depth = r.field.HalfH - defenderDepth
		case rs.Team == kicking:
			depth = r.cfg.KickoffDistance
		default:
			depth = r.field.CenterCircle + rs.Radius + clearanceMargin
		}
		r.place.PlaceRobot(rs.ID, r2.Vec{Y: side * depth}, kickoffHeading(rs.Team))
	}
}

// kickoffLegal reports whether every robot may start play from where it is.
func (r *Referee) kickoffLegal(snap *systems.Snapshot) bool {
	const eps = 1e-6
	for _, rs := range snap.Robots {
		if r.state.Neutral {
			if r2.Norm(r2.Sub(rs.Pos, r.state.RestartSpot)) < r.cfg.Clearance-eps {
				return false
			}
			continue
		}
		if rs.Team.Side()*rs.Pos.Y < -eps {
			return false
		}
		if rs.Team != r.state.KickoffTeam && r2.Norm(rs.Pos) < r.field.CenterCircle-eps {
			return false
		}
	}
	return true
}

// enforceClearance moves every robot closer than the clearance to spot out
// along the line from the spot, rotating the direction when the field edge or
// another robot is in the way.
func (r *Referee) enforceClearance(snap *systems.Snapshot, spot r2.Vec) {
	placed := make([]r2.Vec, len(snap.Robots))
	for i, rs := range snap.Robots {
		placed[i] = rs.Pos
	}
	for i, rs := range snap.Robots {
		d := r2.Sub(rs.Pos, spot)
		dist := r2.Norm(d)
		if dist >= r.cfg.Clearance {
			continue
		}
		dir := r2.Vec{Y: rs.Team.Side()}
		if dist > 1e-9 {
			dir = r2.Scale(1/dist, d)
		}
		target := r.clearSpot(spot, dir, rs.Radius, placed, i)
		placed[i] = target
		r.place.PlaceRobot(rs.ID, target, rs.Heading)
	}
}

// clearSpot tries directions alternating either side of dir in clearanceStep
// increments and returns the first free position.
func (r *Referee) clearSpot(spot, dir r2.Vec, radius float64, placed []r2.Vec, self int) r2.Vec {
	reach := r.cfg.Clearance + clearanceMargin
	var first r2.Vec
	steps := int(math.Round(2 * math.Pi / clearanceStep))
	for k := 0; k < steps; k++ {
		n := float64((k + 1) / 2)
		if k%2 == 1 {
			n = -n
		}
		sin, cos := math.Sincos(n * clearanceStep)
		rot := r2.Vec{X: dir.X*cos - dir.Y*sin, Y: dir.X*sin + dir.Y*cos}
		p := r.field.ClampInner(r2.Add(spot, r2.Scale(reach, rot)), radius)
		if k == 0 {
			first = p
		}
		if r2.Norm(r2.Sub(p, spot)) < r.cfg.Clearance {
			continue
		}
		if overlaps(p, radius, placed, self) {
			continue
		}
		return p
	}
	return first
}

func overlaps(p r2.Vec, radius float64, placed []r2.Vec, self int) bool {
	for j, q := range placed {
		if j != self && r2.Norm(r2.Sub(p, q)) < 2*radius {
			return true
		}
	}
	return false
}
