package telemetry

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/systems"
)

// RobotStats tracks one robot over a match. It is also a row of robots.csv.
type RobotStats struct {
	Robot    int    `csv:"robot"`
	Team     string `csv:"team"`
	Role     string `csv:"role"`
	Strategy string `csv:"strategy"`

	Touches    int `csv:"touches"`
	Kicks      int `csv:"kicks"`
	Faults     int `csv:"faults"`
	OverBudget int `csv:"over_budget"`

	Distance   float64 `csv:"distance"` // cm driven
	PeakSpeed  float64 `csv:"peak_speed"`
	StuckTicks int     `csv:"stuck_ticks"`

	lastPos r2.Vec `csv:"-"`
	seen    bool   `csv:"-"`
}

// RobotTracker manages per-robot statistics.
type RobotTracker struct {
	stats map[systems.RobotID]*RobotStats
}

// NewRobotTracker creates a new robot tracker.
func NewRobotTracker() *RobotTracker {
	return &RobotTracker{stats: make(map[systems.RobotID]*RobotStats)}
}

// Register starts tracking a robot.
func (rt *RobotTracker) Register(id systems.RobotID, team components.Team, role components.Role, strategy string) {
	rt.stats[id] = &RobotStats{
		Robot:    int(id),
		Team:     team.String(),
		Role:     role.String(),
		Strategy: strategy,
	}
}

// Get returns the stats for a robot, or nil if it is not tracked.
func (rt *RobotTracker) Get(id systems.RobotID) *RobotStats {
	return rt.stats[id]
}

// RecordFault increments a robot's fault count.
func (rt *RobotTracker) RecordFault(id systems.RobotID) {
	if s := rt.stats[id]; s != nil {
		s.Faults++
	}
}

// RecordOverBudget increments a robot's over-budget count.
func (rt *RobotTracker) RecordOverBudget(id systems.RobotID) {
	if s := rt.stats[id]; s != nil {
		s.OverBudget++
	}
}

// Update folds one snapshot into the tracked robots.
func (rt *RobotTracker) Update(snap *systems.Snapshot) {
	for _, t := range snap.Touches {
		if s := rt.stats[t.Robot]; s != nil {
			s.Touches++
			if t.Kick {
				s.Kicks++
			}
		}
	}
	for _, r := range snap.Robots {
		s := rt.stats[r.ID]
		if s == nil {
			continue
		}
		if s.seen {
			s.Distance += r2.Norm(r2.Sub(r.Pos, s.lastPos))
		}
		s.lastPos, s.seen = r.Pos, true
		s.PeakSpeed = max(s.PeakSpeed, r2.Norm(r.Vel))
		if r.Stuck {
			s.StuckTicks++
		}
	}
}

// Reposition forgets the last position of every robot so a teleport is not
// counted as distance driven.
func (rt *RobotTracker) Reposition() {
	for _, s := range rt.stats {
		s.seen = false
	}
}

// All returns copies of every robot's stats in id order.
func (rt *RobotTracker) All() []RobotStats {
	out := make([]RobotStats, 0, len(rt.stats))
	for _, s := range rt.stats {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b RobotStats) int { return a.Robot - b.Robot })
	return out
}

// Count returns the number of tracked robots.
func (rt *RobotTracker) Count() int {
	return len(rt.stats)
}
