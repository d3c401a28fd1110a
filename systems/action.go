package systems

import "math"

// RobotID identifies a robot within one match. IDs are dense and assigned in
// creation order.
type RobotID int

// Action is one robot's command for one physics step: four motor commands in
// [-1, 1] (front-left, front-right, back-right, back-left) and a kick request.
type Action struct {
	Motors [4]float64 `json:"motors"`
	Kick   bool       `json:"kick"`
}

// Neutral returns the stop action.
func Neutral() Action {
	return Action{}
}

// Clamped returns a copy with every motor command finite and within [-1, 1].
func (a Action) Clamped() Action {
	for i, m := range a.Motors {
		switch {
		case math.IsNaN(m):
			a.Motors[i] = 0
		case m > 1:
			a.Motors[i] = 1
		case m < -1:
			a.Motors[i] = -1
		}
	}
	return a
}
