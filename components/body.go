package components

import "github.com/pthm-cable/robosim/config"

// Body holds the collision shape of a robot: a circle with a flat notch cut
// into its front where the ball sits.
type Body struct {
	Radius         float64
	NotchDepth     float64
	NotchHalfAngle float64 // radians either side of forward
	Mass           float64
}

// RobotBody returns the configured robot shape.
func RobotBody(cfg *config.Config) Body {
	return Body{
		Radius:         cfg.Robot.Radius,
		NotchDepth:     cfg.Robot.NotchDepth,
		NotchHalfAngle: cfg.Derived.NotchHalfAngle,
		Mass:           cfg.Robot.Mass,
	}
}

// ContactRadius returns the body's extent in the direction given by angle,
// measured from forward. Inside the notch the surface is NotchDepth closer.
func (b Body) ContactRadius(angle float64) float64 {
	if angle < 0 {
		angle = -angle
	}
	if angle <= b.NotchHalfAngle {
		return b.Radius - b.NotchDepth
	}
	return b.Radius
}
