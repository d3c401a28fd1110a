package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/field"
)

// Probe directions relative to forward.
const (
	probeFront = iota
	probeLeft
	probeRight
	numProbes
)

// probePoints returns the front, left and right probe points just outside the
// body circumference.
func (w *World) probePoints(p r2.Vec, heading, radius float64) [numProbes]r2.Vec {
	side := w.cfg.Sensors.SideProbeAngle * math.Pi / 180
	reach := radius + w.cfg.Sensors.ProbeOffset
	return [numProbes]r2.Vec{
		probeFront: r2.Add(p, r2.Scale(reach, field.Forward(heading))),
		probeLeft:  r2.Add(p, r2.Scale(reach, field.Forward(heading-side))),
		probeRight: r2.Add(p, r2.Scale(reach, field.Forward(heading+side))),
	}
}

// updateSensors recomputes bumper and line flags and the stuck detector.
func (w *World) updateSensors() {
	for _, ref := range w.robots {
		pos := w.posMap.Get(ref.entity)
		rot := w.rotMap.Get(ref.entity)
		body := w.bodyMap.Get(ref.entity)
		robot := w.robotMap.Get(ref.entity)

		probes := w.probePoints(vec(pos), rot.Heading, body.Radius)
		var bump, line [numProbes]bool
		for i, pr := range probes {
			bump[i] = w.probeBlocked(ref.id, pr)
			line[i] = !w.field.Inside(pr)
		}
		robot.BumperFront, robot.BumperLeft, robot.BumperRight = bump[probeFront], bump[probeLeft], bump[probeRight]
		robot.LineFront, robot.LineLeft, robot.LineRight = line[probeFront], line[probeLeft], line[probeRight]

		w.updateStuck(pos, robot)
	}
}

// probeBlocked reports whether a probe point touches a wall or another robot.
func (w *World) probeBlocked(self RobotID, p r2.Vec) bool {
	reach := w.cfg.Sensors.ProbeOffset
	for _, s := range w.field.Walls {
		if s.Distance(p) <= reach {
			return true
		}
	}
	for _, ref := range w.robots {
		if ref.id == self {
			continue
		}
		other := vec(w.posMap.Get(ref.entity))
		if r2.Norm(r2.Sub(p, other)) <= w.bodyMap.Get(ref.entity).Radius {
			return true
		}
	}
	return false
}

// updateStuck evaluates displacement over fixed windows while the robot is
// commanded to translate.
func (w *World) updateStuck(pos *components.Position, robot *components.Robot) {
	sc := w.cfg.Sensors
	if math.Hypot(robot.CmdForward, robot.CmdStrafe) < sc.StuckCommand {
		robot.WindowTicks = 0
		robot.StuckWindows = 0
		robot.Stuck = false
		return
	}
	if robot.WindowTicks == 0 {
		robot.Anchor = *pos
	}
	robot.WindowTicks++
	if robot.WindowTicks < sc.StuckWindow {
		return
	}
	moved := math.Hypot(pos.X-robot.Anchor.X, pos.Y-robot.Anchor.Y)
	if moved < sc.StuckDisplacement {
		robot.StuckWindows++
		robot.Stuck = true
	} else {
		robot.StuckWindows = 0
		robot.Stuck = false
	}
	robot.WindowTicks = 0
}

// stuckConfidence grows with the number of consecutive stuck windows.
func (w *World) stuckConfidence(robot *components.Robot) float64 {
	if !robot.Stuck {
		return 0
	}
	sat := w.cfg.Sensors.StuckSaturation
	if sat < 1 {
		return 1
	}
	return math.Min(1, float64(robot.StuckWindows)/float64(sat))
}
