// Package config provides configuration loading and access for the match simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Match      MatchConfig      `yaml:"match"`
	Field      FieldConfig      `yaml:"field"`
	Robot      RobotConfig      `yaml:"robot"`
	Ball       BallConfig       `yaml:"ball"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Kicker     KickerConfig     `yaml:"kicker"`
	Sensors    SensorsConfig    `yaml:"sensors"`
	Vision     VisionConfig     `yaml:"vision"`
	Referee    RefereeConfig    `yaml:"referee"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
	Strategies StrategiesConfig `yaml:"strategies"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// MatchConfig holds match setup parameters.
type MatchConfig struct {
	Mode         string  `yaml:"mode"`          // single_bot, single_team or two_team
	DT           float64 `yaml:"dt"`            // Fixed physics step in seconds
	HalfDuration float64 `yaml:"half_duration"` // Seconds of play per half (0 = unlimited)
	Halves       int     `yaml:"halves"`
	Seed         int64   `yaml:"seed"`
}

// FieldConfig holds field geometry in centimetres.
type FieldConfig struct {
	InnerWidth   float64 `yaml:"inner_width"`  // Scoring area along x
	InnerHeight  float64 `yaml:"inner_height"` // Scoring area along y (goals on the short edges)
	Margin       float64 `yaml:"margin"`       // Walkable band between the inner line and the outer wall
	GoalWidth    float64 `yaml:"goal_width"`
	GoalDepth    float64 `yaml:"goal_depth"`
	CenterCircle float64 `yaml:"center_circle"` // Centre circle radius
	SpotX        float64 `yaml:"spot_x"`        // |x| of side and corner neutral spots
	SpotY        float64 `yaml:"spot_y"`        // |y| of corner neutral spots
}

// RobotConfig holds robot body and drive parameters.
type RobotConfig struct {
	Radius         float64 `yaml:"radius"`
	NotchDepth     float64 `yaml:"notch_depth"`
	NotchHalfAngle float64 `yaml:"notch_half_angle"` // Degrees
	Mass           float64 `yaml:"mass"`
	MaxSpeed       float64 `yaml:"max_speed"`        // cm/s at full command
	MaxAngularRate float64 `yaml:"max_angular_rate"` // deg/s at full command
	Response       float64 `yaml:"response"`         // First-order velocity response rate (1/s)
	Unmix          string  `yaml:"unmix"`            // projection or sign_heuristic
}

// BallConfig holds ball parameters.
type BallConfig struct {
	Radius       float64 `yaml:"radius"`
	Mass         float64 `yaml:"mass"`
	RollingDecel float64 `yaml:"rolling_decel"` // cm/s^2 constant deceleration
	Drag         float64 `yaml:"drag"`          // Proportional damping (1/s)
	MaxSpeed     float64 `yaml:"max_speed"`
	StopSpeed    float64 `yaml:"stop_speed"` // Below this the ball is considered at rest
}

// PhysicsConfig holds collision parameters.
type PhysicsConfig struct {
	Iterations       int     `yaml:"iterations"` // Collision solver passes per step
	RobotRestitution float64 `yaml:"robot_restitution"`
	BallRestitution  float64 `yaml:"ball_restitution"` // Ball against robots
	WallRestitution  float64 `yaml:"wall_restitution"` // Ball against walls
}

// KickerConfig holds kicker parameters.
type KickerConfig struct {
	CaptureDistance float64 `yaml:"capture_distance"` // Max gap between ball surface and notch
	Speed           float64 `yaml:"speed"`            // Impulse expressed as ball speed (cm/s)
}

// SensorsConfig holds bumper, line and stuck detector parameters.
type SensorsConfig struct {
	ProbeOffset       float64 `yaml:"probe_offset"`       // Distance of probes past the body circumference
	SideProbeAngle    float64 `yaml:"side_probe_angle"`   // Degrees from forward for left/right probes
	StuckCommand      float64 `yaml:"stuck_command"`      // Minimum commanded translation
	StuckWindow       int     `yaml:"stuck_window"`       // Ticks per stuck evaluation
	StuckDisplacement float64 `yaml:"stuck_displacement"` // cm moved per window below which the robot is stuck
	StuckSaturation   int     `yaml:"stuck_saturation"`   // Windows until confidence reaches 1
}

// VisionConfig holds observation parameters.
type VisionConfig struct {
	MaxRange    float64 `yaml:"max_range"`
	AttackerFOV float64 `yaml:"attacker_fov"` // Degrees, 0 = 360
	DefenderFOV float64 `yaml:"defender_fov"` // Degrees, 0 = 360
	GoalHeight  float64 `yaml:"goal_height"`  // Apparent goal height used for the camera box
}

// RefereeConfig holds rule timing and placement parameters.
type RefereeConfig struct {
	KickoffDelay      float64 `yaml:"kickoff_delay"`
	KickoffDistance   float64 `yaml:"kickoff_distance"` // Kicking attacker's distance from the ball
	GoalPause         float64 `yaml:"goal_pause"`
	OutOfBoundsPause  float64 `yaml:"out_of_bounds_pause"`
	HalfTimePause     float64 `yaml:"half_time_pause"`
	Clearance         float64 `yaml:"clearance"` // Minimum robot distance from a restart spot
	ProgressThreshold float64 `yaml:"progress_threshold"`
	ProgressDuration  float64 `yaml:"progress_duration"`
	FirstKickoff      string  `yaml:"first_kickoff"` // blue or yellow
	DropJitter        float64 `yaml:"drop_jitter"`   // Max seeded offset of the kickoff ball from the centre spot
}

// SandboxConfig holds strategy execution parameters.
type SandboxConfig struct {
	TimeBudgetMs  float64 `yaml:"time_budget_ms"`  // Soft budget, exceeded calls are counted and logged
	HardTimeoutMs float64 `yaml:"hard_timeout_ms"` // 0 disables interruption of script controllers
	FaultLogEvery int     `yaml:"fault_log_every"` // Log every Nth fault per robot
}

// StrategiesConfig holds tunable gains for the reference strategies.
type StrategiesConfig struct {
	SearchTurn      float64 `yaml:"search_turn"`
	ApproachSpeed   float64 `yaml:"approach_speed"`
	TurnGain        float64 `yaml:"turn_gain"` // Rotation command per degree of bearing error
	DribbleDistance float64 `yaml:"dribble_distance"`
	DribbleSpeed    float64 `yaml:"dribble_speed"`
	KickAngle       float64 `yaml:"kick_angle"` // Max |goal bearing| to fire
	KickDistance    float64 `yaml:"kick_distance"`
	GuardDistance   float64 `yaml:"guard_distance"` // Defender's preferred distance from its own goal
	GuardGain       float64 `yaml:"guard_gain"`
	RecoverTicks    int     `yaml:"recover_ticks"`
	MemoryDecay     float64 `yaml:"memory_decay"` // Seconds for tracker confidence to reach zero
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	TraceBuffer         int     `yaml:"trace_buffer"`
	StatsInterval       float64 `yaml:"stats_interval"` // Seconds of match time between stat log lines
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Mode           Mode
	OuterWidth     float64
	OuterHeight    float64
	NotchHalfAngle float64 // Radians
	MaxAngularRate float64 // Radians per second
	AttackerFOV    float64 // Radians, 0 = 360
	DefenderFOV    float64 // Radians, 0 = 360
}

// Mode selects which robots take part in a match.
type Mode uint8

const (
	ModeSingleBot  Mode = iota // Blue attacker alone
	ModeSingleTeam             // Blue attacker and defender
	ModeTwoTeam                // Both teams, both roles
)

// ErrUnknownMode is returned for a mode name that is not recognised.
var ErrUnknownMode = errors.New("unknown match mode")

var modeNames = [...]string{"single_bot", "single_team", "two_team"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// Simplified reports whether kickoffs skip the positioning check.
func (m Mode) Simplified() bool {
	return m == ModeSingleBot
}

// ParseMode maps a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "single_bot", "single-bot", "1v0":
		return ModeSingleBot, nil
	case "single_team", "single-team", "2v0":
		return ModeSingleTeam, nil
	case "two_team", "two-team", "2v2":
		return ModeTwoTeam, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize validates the configuration and recomputes derived values.
// Call it after changing fields of a loaded Config.
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// Validate reports configuration errors that would make a match meaningless.
func (c *Config) Validate() error {
	if _, err := ParseMode(c.Match.Mode); err != nil {
		return fmt.Errorf("match.mode: %w", err)
	}
	if !(c.Match.DT > 0) || math.IsInf(c.Match.DT, 0) {
		return fmt.Errorf("match.dt must be positive, got %v", c.Match.DT)
	}
	if c.Match.Halves < 1 {
		return fmt.Errorf("match.halves must be at least 1, got %d", c.Match.Halves)
	}
	if c.Field.InnerWidth <= 0 || c.Field.InnerHeight <= 0 {
		return fmt.Errorf("field dimensions must be positive")
	}
	if c.Field.GoalWidth <= 0 || c.Field.GoalWidth >= c.Field.InnerWidth {
		return fmt.Errorf("field.goal_width must be in (0, inner_width)")
	}
	if c.Robot.Radius <= 0 || c.Ball.Radius <= 0 {
		return fmt.Errorf("robot and ball radius must be positive")
	}
	if c.Robot.NotchDepth < 0 || c.Robot.NotchDepth >= c.Robot.Radius {
		return fmt.Errorf("robot.notch_depth must be in [0, radius)")
	}
	switch c.Robot.Unmix {
	case "", "projection", "sign_heuristic":
	default:
		return fmt.Errorf("robot.unmix must be projection or sign_heuristic, got %q", c.Robot.Unmix)
	}
	if c.Physics.Iterations < 1 {
		return fmt.Errorf("physics.iterations must be at least 1")
	}
	if c.Sensors.StuckWindow < 1 {
		return fmt.Errorf("sensors.stuck_window must be at least 1")
	}
	switch c.Referee.FirstKickoff {
	case "blue", "yellow":
	default:
		return fmt.Errorf("referee.first_kickoff must be blue or yellow, got %q", c.Referee.FirstKickoff)
	}
	if c.Referee.DropJitter < 0 || c.Referee.DropJitter >= c.Referee.Clearance {
		return fmt.Errorf("referee.drop_jitter must be in [0, clearance)")
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Mode, _ = ParseMode(c.Match.Mode)
	c.Derived.OuterWidth = c.Field.InnerWidth + 2*c.Field.Margin
	c.Derived.OuterHeight = c.Field.InnerHeight + 2*c.Field.Margin
	c.Derived.NotchHalfAngle = c.Robot.NotchHalfAngle * math.Pi / 180
	c.Derived.MaxAngularRate = c.Robot.MaxAngularRate * math.Pi / 180
	c.Derived.AttackerFOV = c.Vision.AttackerFOV * math.Pi / 180
	c.Derived.DefenderFOV = c.Vision.DefenderFOV * math.Pi / 180
}

// Clone returns a deep copy suitable for independent matches.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
