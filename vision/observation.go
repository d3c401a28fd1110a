// Package vision turns ground-truth physics state into what a robot's camera
// and odometry would report. Everything here is a pure function of a
// systems.Snapshot.
package vision

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/field"
	"github.com/pthm-cable/robosim/systems"
)

// verticalFOV is the camera's vertical field of view in radians.
const verticalFOV = 60 * math.Pi / 180

// Observation describes one target as seen from a robot.
type Observation struct {
	Visible    bool    `json:"visible"`
	AngleDeg   float64 `json:"angle_deg"` // signed bearing from forward, positive right
	Distance   float64 `json:"distance"`  // cm
	Confidence float64 `json:"confidence"`
	CX         float64 `json:"cx"` // normalised camera box centre and size
	CY         float64 `json:"cy"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
}

// WorldState is everything a strategy sees on one tick.
type WorldState struct {
	TMs        int64   `json:"t_ms"`
	DtS        float64 `json:"dt_s"`
	HeadingDeg float64 `json:"heading_deg"`
	YawRateDps float64 `json:"yaw_rate_dps"`
	VEst       float64 `json:"v_est"`

	GoalBlue   Observation `json:"goal_blue"`
	GoalYellow Observation `json:"goal_yellow"`
	Ball       Observation `json:"ball"`

	BumperFront bool `json:"bumper_front"`
	BumperLeft  bool `json:"bumper_left"`
	BumperRight bool `json:"bumper_right"`
	LineFront   bool `json:"line_front"`
	LineLeft    bool `json:"line_left"`
	LineRight   bool `json:"line_right"`

	Stuck           bool    `json:"stuck"`
	StuckConfidence float64 `json:"stuck_confidence"`

	WeAreBlue bool `json:"we_are_blue"`
	KickoffUs bool `json:"kickoff_us"`
}

// OwnGoal returns the observation of the goal the robot defends.
func (ws WorldState) OwnGoal() Observation {
	if ws.WeAreBlue {
		return ws.GoalBlue
	}
	return ws.GoalYellow
}

// TargetGoal returns the observation of the goal the robot attacks.
func (ws WorldState) TargetGoal() Observation {
	if ws.WeAreBlue {
		return ws.GoalYellow
	}
	return ws.GoalBlue
}

// Context carries match facts that are not physics state.
type Context struct {
	KickoffTeam components.Team
	Kickoff     bool // a kickoff is pending or in progress
}

// System builds observations for one field and camera configuration.
type System struct {
	field      *field.Field
	maxRange   float64
	goalHeight float64
	fov        [2]float64 // by role, radians, 2*Pi when unrestricted
}

// New creates an observation system.
func New(cfg *config.Config, f *field.Field) *System {
	s := &System{
		field:      f,
		maxRange:   cfg.Vision.MaxRange,
		goalHeight: cfg.Vision.GoalHeight,
	}
	s.fov[components.Attacker] = fullCircle(cfg.Derived.AttackerFOV)
	s.fov[components.Defender] = fullCircle(cfg.Derived.DefenderFOV)
	return s
}

func fullCircle(fov float64) float64 {
	if fov <= 0 || fov > 2*math.Pi {
		return 2 * math.Pi
	}
	return fov
}

// Build computes the WorldState of robot id. It reports false when the
// snapshot holds no such robot.
func (s *System) Build(snap *systems.Snapshot, id systems.RobotID, tMs int64, dt float64, ctx Context) (WorldState, bool) {
	r, ok := snap.Robot(id)
	if !ok {
		return WorldState{}, false
	}

	ws := WorldState{
		TMs:        tMs,
		DtS:        dt,
		HeadingDeg: degrees(r.Heading),
		YawRateDps: degrees(r.AngVel),
		VEst:       r2.Norm(r.Vel),

		BumperFront: r.BumperFront,
		BumperLeft:  r.BumperLeft,
		BumperRight: r.BumperRight,
		LineFront:   r.LineFront,
		LineLeft:    r.LineLeft,
		LineRight:   r.LineRight,

		Stuck:           r.Stuck,
		StuckConfidence: r.StuckConfidence,

		WeAreBlue: r.Team == components.Blue,
		KickoffUs: ctx.Kickoff && ctx.KickoffTeam == r.Team,
	}

	blue := s.field.Goal(components.Blue)
	yellow := s.field.Goal(components.Yellow)
	ws.GoalBlue = s.Observe(r, blue.Mouth(), blue.HalfWidth, s.goalHeight)
	ws.GoalYellow = s.Observe(r, yellow.Mouth(), yellow.HalfWidth, s.goalHeight)
	if snap.HasBall {
		ws.Ball = s.Observe(r, snap.Ball.Pos, snap.Ball.Radius, 2*snap.Ball.Radius)
	}
	return ws, true
}

// Observe computes the observation of a target of the given half-width and
// height centred at target. The camera box is closed form: the horizontal
// centre follows the bearing across the field of view, the vertical centre
// drops toward the bottom of the frame as the target gets closer, and the size
// is the target's angular extent.
func (s *System) Observe(r systems.RobotState, target r2.Vec, halfWidth, height float64) Observation {
	d := r2.Sub(target, r.Pos)
	dist := r2.Norm(d)
	angle := 0.0
	if dist > 0 {
		angle = field.Bearing(d, r.Heading)
	}

	fov := s.fov[components.Attacker]
	if int(r.Role) < len(s.fov) {
		fov = s.fov[r.Role]
	}
	if dist > s.maxRange || math.Abs(angle) > fov/2 {
		return Observation{}
	}

	near := 1 - dist/s.maxRange
	return Observation{
		Visible:    true,
		AngleDeg:   degrees(angle),
		Distance:   dist,
		Confidence: 1,
		CX:         field.Clamp(0.5+angle/fov, 0, 1),
		CY:         field.Clamp(0.5+0.5*near, 0, 1),
		W:          math.Min(1, 2*math.Atan2(halfWidth, dist)/fov),
		H:          math.Min(1, 2*math.Atan2(height/2, dist)/verticalFOV),
	}
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
