// Package field describes the playing field: the inner scoring rectangle, the
// outer walls, the two three-sided goal boxes and the neutral spots.
package field

import (
	"math"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/config"
	"gonum.org/v1/gonum/spatial/r2"
)

// SpotKind classifies neutral spots.
type SpotKind uint8

const (
	SpotCenter SpotKind = iota
	SpotSide
	SpotCorner
)

// Spot is a neutral restart position.
type Spot struct {
	Kind SpotKind
	Pos  r2.Vec
}

// Goal is a three-sided box behind a goal line, open toward the field.
type Goal struct {
	Owner     components.Team // team defending this goal
	LineY     float64         // y of the goal line
	Dir       float64         // +1 when the box extends toward +y
	HalfWidth float64
	Depth     float64
}

// Mouth returns the centre of the goal line.
func (g Goal) Mouth() r2.Vec {
	return r2.Vec{X: 0, Y: g.LineY}
}

// depthOf returns how far p lies behind the goal line.
func (g Goal) depthOf(p r2.Vec) float64 {
	return (p.Y - g.LineY) * g.Dir
}

// InBox reports whether a point lies inside the goal box footprint.
func (g Goal) InBox(p r2.Vec) bool {
	d := g.depthOf(p)
	return d > 0 && d <= g.Depth && math.Abs(p.X) <= g.HalfWidth
}

// Contains reports whether a circle of radius r lies fully past the goal line
// and between the posts.
func (g Goal) Contains(p r2.Vec, r float64) bool {
	d := g.depthOf(p)
	return d >= r && math.Abs(p.X) <= g.HalfWidth && d <= g.Depth+r
}

// Field holds derived field geometry.
type Field struct {
	HalfW, HalfH           float64 // inner rectangle half extents
	OuterHalfW, OuterHalfH float64
	CenterCircle           float64
	Goals                  [2]Goal // indexed by owning team
	Walls                  []Segment
	Spots                  []Spot
}

// New builds the field from configuration.
func New(cfg *config.Config) *Field {
	fc := cfg.Field
	f := &Field{
		HalfW:        fc.InnerWidth / 2,
		HalfH:        fc.InnerHeight / 2,
		OuterHalfW:   cfg.Derived.OuterWidth / 2,
		OuterHalfH:   cfg.Derived.OuterHeight / 2,
		CenterCircle: fc.CenterCircle,
	}

	for _, team := range []components.Team{components.Blue, components.Yellow} {
		side := team.Side()
		f.Goals[team] = Goal{
			Owner:     team,
			LineY:     side * f.HalfH,
			Dir:       side,
			HalfWidth: fc.GoalWidth / 2,
			Depth:     fc.GoalDepth,
		}
	}

	ox, oy := f.OuterHalfW, f.OuterHalfH
	f.Walls = []Segment{
		{A: r2.Vec{X: -ox, Y: -oy}, B: r2.Vec{X: ox, Y: -oy}},
		{A: r2.Vec{X: ox, Y: -oy}, B: r2.Vec{X: ox, Y: oy}},
		{A: r2.Vec{X: ox, Y: oy}, B: r2.Vec{X: -ox, Y: oy}},
		{A: r2.Vec{X: -ox, Y: oy}, B: r2.Vec{X: -ox, Y: -oy}},
	}
	for _, g := range f.Goals {
		back := g.LineY + g.Dir*g.Depth
		hw := g.HalfWidth
		f.Walls = append(f.Walls,
			Segment{A: r2.Vec{X: -hw, Y: back}, B: r2.Vec{X: hw, Y: back}},
			Segment{A: r2.Vec{X: -hw, Y: g.LineY}, B: r2.Vec{X: -hw, Y: back}},
			Segment{A: r2.Vec{X: hw, Y: g.LineY}, B: r2.Vec{X: hw, Y: back}},
		)
	}

	sx, sy := fc.SpotX, fc.SpotY
	f.Spots = []Spot{
		{Kind: SpotCenter},
		{Kind: SpotSide, Pos: r2.Vec{X: -sx}},
		{Kind: SpotSide, Pos: r2.Vec{X: sx}},
		{Kind: SpotCorner, Pos: r2.Vec{X: -sx, Y: -sy}},
		{Kind: SpotCorner, Pos: r2.Vec{X: sx, Y: -sy}},
		{Kind: SpotCorner, Pos: r2.Vec{X: -sx, Y: sy}},
		{Kind: SpotCorner, Pos: r2.Vec{X: sx, Y: sy}},
	}
	return f
}

// Goal returns the goal defended by team.
func (f *Field) Goal(team components.Team) Goal {
	return f.Goals[team]
}

// Inside reports whether p lies within the inner scoring rectangle.
func (f *Field) Inside(p r2.Vec) bool {
	return math.Abs(p.X) <= f.HalfW && math.Abs(p.Y) <= f.HalfH
}

// InAnyGoalBox reports whether p lies inside either goal box footprint.
func (f *Field) InAnyGoalBox(p r2.Vec) bool {
	return f.Goals[0].InBox(p) || f.Goals[1].InBox(p)
}

// ClampOuter keeps a circle of radius r within the outer walls.
func (f *Field) ClampOuter(p r2.Vec, r float64) r2.Vec {
	return r2.Vec{
		X: Clamp(p.X, -f.OuterHalfW+r, f.OuterHalfW-r),
		Y: Clamp(p.Y, -f.OuterHalfH+r, f.OuterHalfH-r),
	}
}

// ClampInner keeps a circle of radius r within the inner rectangle.
func (f *Field) ClampInner(p r2.Vec, r float64) r2.Vec {
	return r2.Vec{
		X: Clamp(p.X, -f.HalfW+r, f.HalfW-r),
		Y: Clamp(p.Y, -f.HalfH+r, f.HalfH-r),
	}
}

// ExitPoint projects a point outside the inner rectangle back onto its boundary.
func (f *Field) ExitPoint(p r2.Vec) r2.Vec {
	return f.ClampInner(p, 0)
}

// NearestSpot returns the spot of one of the given kinds closest to p.
// With no kinds every spot is considered.
func (f *Field) NearestSpot(p r2.Vec, kinds ...SpotKind) Spot {
	best := f.Spots[0]
	bestD := math.Inf(1)
	for _, s := range f.Spots {
		if len(kinds) > 0 && !hasKind(kinds, s.Kind) {
			continue
		}
		d := r2.Norm2(r2.Sub(p, s.Pos))
		if d < bestD {
			best, bestD = s, d
		}
	}
	return best
}

// RestartSpot picks the neutral spot for a ball that left the inner rectangle
// at exit: side-line exits use the side spots, goal-line exits the corner spots.
func (f *Field) RestartSpot(exit r2.Vec) Spot {
	if math.Abs(exit.Y) >= f.HalfH {
		return f.NearestSpot(exit, SpotCorner)
	}
	return f.NearestSpot(exit, SpotSide)
}

func hasKind(kinds []SpotKind, k SpotKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}
