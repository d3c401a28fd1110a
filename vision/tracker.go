package vision

import "math"

// Tracker remembers the last sighting of a target and decays confidence while
// it is out of view. Strategies own their trackers; the observation system
// itself keeps no memory.
type Tracker struct {
	decay float64 // seconds from last sighting to zero confidence
	last  Observation
	age   float64
	seen  bool
}

// NewTracker creates a tracker whose memory fades over decay seconds.
func NewTracker(decay float64) *Tracker {
	return &Tracker{decay: decay}
}

// Update folds in this tick's observation and returns the best estimate.
// A remembered estimate is returned with Visible false and reduced confidence.
func (t *Tracker) Update(o Observation, dt float64) Observation {
	if o.Visible {
		t.last, t.age, t.seen = o, 0, true
		return o
	}
	if !t.seen {
		return o
	}
	t.age += dt
	conf := 0.0
	if t.decay > 0 {
		conf = math.Max(0, 1-t.age/t.decay)
	}
	if conf == 0 {
		t.seen = false
		return Observation{}
	}
	est := t.last
	est.Visible = false
	est.Confidence = conf
	return est
}

// Reset forgets the remembered target.
func (t *Tracker) Reset() {
	*t = Tracker{decay: t.decay}
}
