package systems

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/field"
	"github.com/pthm-cable/robosim/kinematics"
)

// RobotSpec describes a robot to add to the world.
type RobotSpec struct {
	Team    components.Team
	Role    components.Role
	Pos     r2.Vec
	Heading float64
}

// Relocator teleports bodies. Only the referee is handed one.
type Relocator interface {
	PlaceBall(p r2.Vec)
	PlaceRobot(id RobotID, p r2.Vec, heading float64)
	StopAll()
}

type robotRef struct {
	id     RobotID
	entity ecs.Entity
}

// World owns the rigid bodies of one match and advances them in fixed steps.
type World struct {
	cfg   *config.Config
	field *field.Field
	unmix kinematics.Policy

	world *ecs.World

	robotMapper *ecs.Map5[
		components.Position,
		components.Velocity,
		components.Rotation,
		components.Body,
		components.Robot,
	]
	robotFilter *ecs.Filter5[
		components.Position,
		components.Velocity,
		components.Rotation,
		components.Body,
		components.Robot,
	]
	ballMapper *ecs.Map3[components.Position, components.Velocity, components.Ball]

	posMap   *ecs.Map1[components.Position]
	velMap   *ecs.Map1[components.Velocity]
	rotMap   *ecs.Map1[components.Rotation]
	bodyMap  *ecs.Map1[components.Body]
	robotMap *ecs.Map1[components.Robot]
	ballMap  *ecs.Map1[components.Ball]

	robots  []robotRef // ascending id
	ball    ecs.Entity
	hasBall bool

	tick    int64
	events  []BallEvent
	touches []Touch
}

// NewWorld creates an empty world on the given field.
func NewWorld(cfg *config.Config, f *field.Field) *World {
	unmix, err := kinematics.PolicyByName(cfg.Robot.Unmix)
	if err != nil {
		// Config.Validate rejects unknown names.
		unmix = kinematics.Unmix
	}
	w := &World{cfg: cfg, field: f, unmix: unmix}
	w.init()
	return w
}

func (w *World) init() {
	world := ecs.NewWorld()
	w.world = world
	w.robotMapper = ecs.NewMap5[
		components.Position,
		components.Velocity,
		components.Rotation,
		components.Body,
		components.Robot,
	](world)
	w.robotFilter = ecs.NewFilter5[
		components.Position,
		components.Velocity,
		components.Rotation,
		components.Body,
		components.Robot,
	](world)
	w.ballMapper = ecs.NewMap3[components.Position, components.Velocity, components.Ball](world)
	w.posMap = ecs.NewMap1[components.Position](world)
	w.velMap = ecs.NewMap1[components.Velocity](world)
	w.rotMap = ecs.NewMap1[components.Rotation](world)
	w.bodyMap = ecs.NewMap1[components.Body](world)
	w.robotMap = ecs.NewMap1[components.Robot](world)
	w.ballMap = ecs.NewMap1[components.Ball](world)

	w.robots = w.robots[:0]
	w.hasBall = false
	w.tick = 0
	w.events = w.events[:0]
	w.touches = w.touches[:0]
}

// Reset removes every body.
func (w *World) Reset() {
	w.init()
}

// Field returns the field the world was built on.
func (w *World) Field() *field.Field {
	return w.field
}

// Tick returns the number of completed steps.
func (w *World) Tick() int64 {
	return w.tick
}

// AddRobot creates a robot and returns its id.
func (w *World) AddRobot(spec RobotSpec) RobotID {
	id := RobotID(len(w.robots))
	body := components.RobotBody(w.cfg)
	p := w.field.ClampOuter(spec.Pos, body.Radius)
	pos := components.Position{X: p.X, Y: p.Y}
	vel := components.Velocity{}
	rot := components.Rotation{Heading: field.NormalizeAngle(spec.Heading)}
	robot := components.Robot{
		ID:        int(id),
		Team:      spec.Team,
		Role:      spec.Role,
		LastValid: pos,
	}
	e := w.robotMapper.NewEntity(&pos, &vel, &rot, &body, &robot)
	w.robots = append(w.robots, robotRef{id: id, entity: e})
	return id
}

// AddBall creates the ball. A world holds at most one; later calls move it.
func (w *World) AddBall(p r2.Vec) {
	if w.hasBall {
		w.PlaceBall(p)
		return
	}
	r := w.cfg.Ball.Radius
	p = w.field.ClampOuter(p, r)
	pos := components.Position{X: p.X, Y: p.Y}
	vel := components.Velocity{}
	ball := components.Ball{Radius: r, Mass: w.cfg.Ball.Mass, LastValid: pos}
	w.ball = w.ballMapper.NewEntity(&pos, &vel, &ball)
	w.hasBall = true
}

// RobotIDs returns the ids of all robots in ascending order.
func (w *World) RobotIDs() []RobotID {
	ids := make([]RobotID, len(w.robots))
	for i, ref := range w.robots {
		ids[i] = ref.id
	}
	return ids
}

func (w *World) entity(id RobotID) (ecs.Entity, bool) {
	if id < 0 || int(id) >= len(w.robots) {
		return ecs.Entity{}, false
	}
	return w.robots[id].entity, true
}

// PlaceBall teleports the ball to p and stops it.
func (w *World) PlaceBall(p r2.Vec) {
	if !w.hasBall {
		w.AddBall(p)
		return
	}
	if !field.Finite(p) {
		return
	}
	ball := w.ballMap.Get(w.ball)
	p = w.field.ClampOuter(p, ball.Radius)
	pos := w.posMap.Get(w.ball)
	pos.X, pos.Y = p.X, p.Y
	*w.velMap.Get(w.ball) = components.Velocity{}
	ball.LastValid = *pos
}

// PlaceRobot teleports a robot, stopping it. Unknown ids are ignored.
func (w *World) PlaceRobot(id RobotID, p r2.Vec, heading float64) {
	e, ok := w.entity(id)
	if !ok || !field.Finite(p) {
		return
	}
	body := w.bodyMap.Get(e)
	p = w.field.ClampOuter(p, body.Radius)
	pos := w.posMap.Get(e)
	pos.X, pos.Y = p.X, p.Y
	*w.velMap.Get(e) = components.Velocity{}
	rot := w.rotMap.Get(e)
	rot.Heading = field.NormalizeAngle(heading)
	rot.AngVel = 0
	robot := w.robotMap.Get(e)
	robot.LastValid = *pos
	robot.WindowTicks = 0
	robot.StuckWindows = 0
	robot.Stuck = false
}

// StopAll zeroes every velocity.
func (w *World) StopAll() {
	query := w.robotFilter.Query()
	for query.Next() {
		_, vel, rot, _, _ := query.Get()
		*vel = components.Velocity{}
		rot.AngVel = 0
	}
	if w.hasBall {
		*w.velMap.Get(w.ball) = components.Velocity{}
	}
}

// Step advances the world by dt seconds. Each robot consumes its action
// exactly once; robots without an entry get the neutral action.
func (w *World) Step(actions map[RobotID]Action, dt float64) {
	w.events = w.events[:0]
	w.touches = w.touches[:0]
	if !(dt > 0) {
		return
	}

	w.drive(actions, dt)
	w.integrate(dt)
	for i := 0; i < w.cfg.Physics.Iterations; i++ {
		w.collideRobots()
		w.collideBall()
		w.collideWalls()
	}
	w.kick()
	w.sanitize()
	w.updateSensors()
	w.detectBallEvents()
	w.tick++
}

func vec(p *components.Position) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

func velVec(v *components.Velocity) r2.Vec {
	return r2.Vec{X: v.X, Y: v.Y}
}
