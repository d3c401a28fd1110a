package components

// Position represents an entity's field position in centimetres.
// The origin is the field centre, x grows right and y grows down (south).
type Position struct {
	X, Y float64
}

// Velocity represents an entity's velocity in cm/s.
type Velocity struct {
	X, Y float64
}

// Rotation represents an entity's heading and angular velocity.
type Rotation struct {
	Heading float64 // radians, 0 = north, positive = clockwise
	AngVel  float64 // radians per second
}
