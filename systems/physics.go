// Package systems implements the physics world: omni-wheel robot drive,
// ball rolling, collisions against robots and walls, the kicker and the
// on-board contact sensors.
package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/field"
)

// drive converts each robot's action into a velocity target and moves the
// current velocity toward it with a first-order response.
func (w *World) drive(actions map[RobotID]Action, dt float64) {
	k := 1 - math.Exp(-w.cfg.Robot.Response*dt)
	maxSpeed := w.cfg.Robot.MaxSpeed
	maxTurn := w.cfg.Derived.MaxAngularRate

	for _, ref := range w.robots {
		a, ok := actions[ref.id]
		if !ok {
			a = Neutral()
		}
		a = a.Clamped()
		tw := w.unmix(a.Motors)

		vel := w.velMap.Get(ref.entity)
		rot := w.rotMap.Get(ref.entity)
		robot := w.robotMap.Get(ref.entity)
		robot.CmdForward, robot.CmdStrafe, robot.CmdTurn = tw.Vx, tw.Vy, tw.Omega
		robot.Kick = a.Kick

		target := field.ToWorldFrame(tw.Vx*maxSpeed, tw.Vy*maxSpeed, rot.Heading)
		vel.X += (target.X - vel.X) * k
		vel.Y += (target.Y - vel.Y) * k
		rot.AngVel += (tw.Omega*maxTurn - rot.AngVel) * k
	}
}

// integrate advances headings and positions, and rolls the ball.
func (w *World) integrate(dt float64) {
	query := w.robotFilter.Query()
	for query.Next() {
		pos, vel, rot, _, _ := query.Get()
		rot.Heading = field.NormalizeAngle(rot.Heading + rot.AngVel*dt)
		pos.X += vel.X * dt
		pos.Y += vel.Y * dt
	}

	if !w.hasBall {
		return
	}
	pos := w.posMap.Get(w.ball)
	vel := w.velMap.Get(w.ball)
	pos.X += vel.X * dt
	pos.Y += vel.Y * dt

	bc := w.cfg.Ball
	v := velVec(vel)
	speed := r2.Norm(v)
	if speed == 0 {
		return
	}
	next := speed*math.Exp(-bc.Drag*dt) - bc.RollingDecel*dt
	if next < bc.StopSpeed {
		*vel = components.Velocity{}
		return
	}
	v = r2.Scale(next/speed, v)
	vel.X, vel.Y = v.X, v.Y
}

// collideRobots separates overlapping robots and exchanges normal momentum.
// Robots collide as full circles.
func (w *World) collideRobots() {
	e := w.cfg.Physics.RobotRestitution
	for i := 0; i < len(w.robots); i++ {
		a := w.robots[i].entity
		for j := i + 1; j < len(w.robots); j++ {
			b := w.robots[j].entity
			pa, pb := w.posMap.Get(a), w.posMap.Get(b)
			ba, bb := w.bodyMap.Get(a), w.bodyMap.Get(b)

			d := r2.Sub(vec(pb), vec(pa))
			dist := r2.Norm(d)
			minD := ba.Radius + bb.Radius
			if dist >= minD {
				continue
			}
			n := r2.Vec{X: 1}
			if dist > 1e-9 {
				n = r2.Scale(1/dist, d)
			}

			ma, mb := ba.Mass, bb.Mass
			overlap := minD - dist
			pa.X -= n.X * overlap * mb / (ma + mb)
			pa.Y -= n.Y * overlap * mb / (ma + mb)
			pb.X += n.X * overlap * ma / (ma + mb)
			pb.Y += n.Y * overlap * ma / (ma + mb)

			va, vb := w.velMap.Get(a), w.velMap.Get(b)
			rel := r2.Dot(r2.Sub(velVec(vb), velVec(va)), n)
			if rel >= 0 {
				continue
			}
			impulse := -(1 + e) * rel / (1/ma + 1/mb)
			va.X -= n.X * impulse / ma
			va.Y -= n.Y * impulse / ma
			vb.X += n.X * impulse / mb
			vb.Y += n.Y * impulse / mb
		}
	}
}

// collideBall pushes the ball out of every robot's notched outline. The robot
// is treated as immovable relative to the ball.
func (w *World) collideBall() {
	if !w.hasBall {
		return
	}
	bpos := w.posMap.Get(w.ball)
	bvel := w.velMap.Get(w.ball)
	br := w.ballMap.Get(w.ball).Radius
	e := w.cfg.Physics.BallRestitution

	for _, ref := range w.robots {
		rp := vec(w.posMap.Get(ref.entity))
		rot := w.rotMap.Get(ref.entity)
		body := w.bodyMap.Get(ref.entity)

		d := r2.Sub(vec(bpos), rp)
		dist := r2.Norm(d)
		reach := body.ContactRadius(field.Bearing(d, rot.Heading)) + br
		if dist >= reach {
			continue
		}
		n := field.Forward(rot.Heading)
		if dist > 1e-9 {
			n = r2.Scale(1/dist, d)
		}
		p := r2.Add(rp, r2.Scale(reach, n))
		bpos.X, bpos.Y = p.X, p.Y

		rv := velVec(w.velMap.Get(ref.entity))
		rel := r2.Dot(r2.Sub(velVec(bvel), rv), n)
		if rel < 0 {
			v := r2.Sub(velVec(bvel), r2.Scale((1+e)*rel, n))
			bvel.X, bvel.Y = v.X, v.Y
		}
		w.touch(ref, false)
	}
}

// collideWalls resolves every body against the outer walls and goal boxes.
func (w *World) collideWalls() {
	query := w.robotFilter.Query()
	for query.Next() {
		pos, vel, _, body, _ := query.Get()
		w.pushOutOfWalls(pos, vel, body.Radius, 0)
	}
	if w.hasBall {
		w.pushOutOfWalls(w.posMap.Get(w.ball), w.velMap.Get(w.ball), w.ballMap.Get(w.ball).Radius, w.cfg.Physics.WallRestitution)
	}
}

func (w *World) pushOutOfWalls(pos *components.Position, vel *components.Velocity, r, restitution float64) {
	p := vec(pos)
	v := velVec(vel)
	for _, s := range w.field.Walls {
		c := s.Closest(p)
		d := r2.Sub(p, c)
		dist := r2.Norm(d)
		if dist >= r {
			continue
		}
		var n r2.Vec
		if dist > 1e-9 {
			n = r2.Scale(1/dist, d)
		} else {
			// Centre exactly on the wall: push toward the field centre.
			n = r2.Unit(r2.Scale(-1, c))
		}
		p = r2.Add(c, r2.Scale(r, n))
		if vn := r2.Dot(v, n); vn < 0 {
			v = r2.Sub(v, r2.Scale((1+restitution)*vn, n))
		}
	}
	p = w.field.ClampOuter(p, r)
	pos.X, pos.Y = p.X, p.Y
	vel.X, vel.Y = v.X, v.Y
}

// kick fires every kicker whose robot requested it with the ball in the notch.
func (w *World) kick() {
	if !w.hasBall {
		return
	}
	bpos := w.posMap.Get(w.ball)
	bvel := w.velMap.Get(w.ball)
	br := w.ballMap.Get(w.ball).Radius

	for _, ref := range w.robots {
		robot := w.robotMap.Get(ref.entity)
		if !robot.Kick {
			continue
		}
		rp := vec(w.posMap.Get(ref.entity))
		rot := w.rotMap.Get(ref.entity)
		body := w.bodyMap.Get(ref.entity)

		d := r2.Sub(vec(bpos), rp)
		if math.Abs(field.Bearing(d, rot.Heading)) > body.NotchHalfAngle {
			continue
		}
		gap := r2.Norm(d) - (body.Radius - body.NotchDepth) - br
		if gap > w.cfg.Kicker.CaptureDistance {
			continue
		}
		v := r2.Add(velVec(w.velMap.Get(ref.entity)), r2.Scale(w.cfg.Kicker.Speed, field.Forward(rot.Heading)))
		bvel.X, bvel.Y = v.X, v.Y
		w.touch(ref, true)
	}
}

func (w *World) touch(ref robotRef, kicked bool) {
	robot := w.robotMap.Get(ref.entity)
	w.touches = append(w.touches, Touch{Robot: ref.id, Team: robot.Team, Kick: kicked})
}

// sanitize repairs degenerate state: non-finite positions revert to the last
// valid value, non-finite velocities become zero and speeds are capped.
func (w *World) sanitize() {
	maxSpeed := w.cfg.Robot.MaxSpeed
	maxTurn := w.cfg.Derived.MaxAngularRate

	query := w.robotFilter.Query()
	for query.Next() {
		pos, vel, rot, body, robot := query.Get()
		fixVelocity(vel, maxSpeed)
		if math.IsNaN(rot.AngVel) || math.IsInf(rot.AngVel, 0) {
			rot.AngVel = 0
		}
		rot.AngVel = field.Clamp(rot.AngVel, -maxTurn, maxTurn)
		rot.Heading = field.NormalizeAngle(rot.Heading)
		robot.LastValid = w.fixPosition(pos, robot.LastValid, body.Radius)
	}

	if w.hasBall {
		ball := w.ballMap.Get(w.ball)
		fixVelocity(w.velMap.Get(w.ball), w.cfg.Ball.MaxSpeed)
		ball.LastValid = w.fixPosition(w.posMap.Get(w.ball), ball.LastValid, ball.Radius)
	}
}

func fixVelocity(vel *components.Velocity, maxSpeed float64) {
	v := velVec(vel)
	if !field.Finite(v) {
		*vel = components.Velocity{}
		return
	}
	if s := r2.Norm(v); s > maxSpeed {
		v = r2.Scale(maxSpeed/s, v)
		vel.X, vel.Y = v.X, v.Y
	}
}

func (w *World) fixPosition(pos *components.Position, last components.Position, r float64) components.Position {
	if !field.Finite(vec(pos)) {
		*pos = last
	}
	p := w.field.ClampOuter(vec(pos), r)
	pos.X, pos.Y = p.X, p.Y
	return *pos
}

// detectBallEvents reports the ball resting in a goal, or its centre beyond
// the inner line outside both goal boxes.
func (w *World) detectBallEvents() {
	if !w.hasBall {
		return
	}
	p := vec(w.posMap.Get(w.ball))
	r := w.ballMap.Get(w.ball).Radius
	for _, g := range w.field.Goals {
		if g.Contains(p, r) {
			w.events = append(w.events, BallEvent{Kind: BallInGoal, Goal: g.Owner, Pos: p})
			return
		}
	}
	if !w.field.Inside(p) && !w.field.InAnyGoalBox(p) {
		w.events = append(w.events, BallEvent{Kind: BallOutOfBounds, Pos: p, Exit: w.field.ExitPoint(p)})
	}
}
