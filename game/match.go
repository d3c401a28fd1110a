// Package game runs matches: it owns the physics world, the referee and the
// strategy sandbox, and advances them together one fixed tick at a time.
package game

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/field"
	"github.com/pthm-cable/robosim/referee"
	"github.com/pthm-cable/robosim/sandbox"
	"github.com/pthm-cable/robosim/strategies"
	"github.com/pthm-cable/robosim/systems"
	"github.com/pthm-cable/robosim/telemetry"
	"github.com/pthm-cable/robosim/vision"
)

const bookmarkHistory = 10

// RobotFrame is one robot as a renderer sees it.
type RobotFrame struct {
	ID      systems.RobotID
	Team    components.Team
	Role    components.Role
	Pos     r2.Vec
	Heading float64
	Stuck   bool
	Fault   bool   // the robot's last strategy call failed
	Error   string // fault message when Fault is set
}

// Frame is a read-only view of the match for renderers.
type Frame struct {
	Tick        int64
	Phase       referee.Phase
	Half        int
	Clock       float64
	Countdown   float64
	Score       [2]int
	KickoffTeam components.Team
	Robots      []RobotFrame
	Ball        systems.BallState
	HasBall     bool
	Digest      uint64
}

// Match is one game between the robots of a mode.
type Match struct {
	ID uuid.UUID

	cfg   *config.Config
	opts  Options
	mode  config.Mode
	field *field.Field

	world   *systems.World
	vision  *vision.System
	sandbox *sandbox.Sandbox
	referee *referee.Referee

	pending   map[systems.RobotID]systems.Action
	faults    map[systems.RobotID]error
	lastPhase referee.Phase
	logger    *slog.Logger

	// Telemetry
	statsWindowSec   float64
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	robotTracker     *telemetry.RobotTracker
	outputManager    *telemetry.OutputManager
	events           []telemetry.Event
	logStats         bool
	statsCallback    func(telemetry.WindowStats)
	eventCallback    func(referee.Event)
	snapshotDir      string
}

// NewMatch validates the options, builds the robots of the configured mode
// and sets up the first kickoff. The match works on its own copy of the
// configuration.
func NewMatch(opts Options) (*Match, error) {
	cfg := opts.Config
	if cfg == nil {
		c, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	cfg = cfg.Clone()
	if opts.Seed != 0 {
		cfg.Match.Seed = opts.Seed
	}
	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	window := opts.StatsWindowSec
	if window <= 0 {
		window = cfg.Telemetry.StatsInterval
	}
	if window <= 0 {
		window = 10
	}

	f := field.New(cfg)
	m := &Match{
		ID:             uuid.New(),
		cfg:            cfg,
		opts:           opts,
		field:          f,
		vision:         vision.New(cfg, f),
		logger:         logger,
		statsWindowSec: window,
		logStats:       opts.LogStats,
		statsCallback:  opts.StatsCallback,
		eventCallback:  opts.EventCallback,
		snapshotDir:    opts.SnapshotDir,
	}

	if err := m.setup(cfg.Derived.Mode); err != nil {
		return nil, err
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if om != nil {
		if err := om.WriteConfig(cfg); err != nil {
			om.Close()
			return nil, err
		}
		m.outputManager = om
	}
	return m, nil
}

// setup recreates the robots, ball, sandbox and referee for mode and starts
// the first kickoff. Strategy errors leave the match unchanged.
func (m *Match) setup(mode config.Mode) error {
	world := systems.NewWorld(m.cfg, m.field)
	tracker := telemetry.NewRobotTracker()
	sb := sandbox.New(m.cfg.Sandbox, m.logger)

	for _, slot := range Slots(mode) {
		id := world.AddRobot(systems.RobotSpec{Team: slot.Team(), Role: slot.Role()})
		ctrl, name, err := m.controller(slot, id)
		if err != nil {
			return fmt.Errorf("%s strategy: %w", slot, err)
		}
		sb.Attach(id, ctrl)
		tracker.Register(id, slot.Team(), slot.Role(), name)
	}
	world.AddBall(r2.Vec{})

	m.mode = mode
	m.world = world
	m.sandbox = sb
	m.robotTracker = tracker
	m.referee = referee.New(m.cfg, m.field, mode, world)
	m.pending = nil
	m.faults = make(map[systems.RobotID]error)
	m.lastPhase = referee.PhaseSetup

	m.collector = telemetry.NewCollector(m.statsWindowSec, m.cfg.Match.DT)
	m.perfCollector = telemetry.NewPerfCollector(m.cfg.Telemetry.PerfCollectorWindow)
	m.bookmarkDetector = telemetry.NewBookmarkDetector(bookmarkHistory)

	m.logger.Info("match setup",
		"match", m.ID.String(),
		"mode", mode.String(),
		"seed", m.cfg.Match.Seed,
		"robots", len(Slots(mode)),
	)
	m.handleRefereeEvents(m.referee.Start(world.Snapshot()))
	return nil
}

// controller builds the controller for a slot and names its strategy.
func (m *Match) controller(slot Slot, id systems.RobotID) (sandbox.Controller, string, error) {
	if c := m.opts.Controllers[slot]; c != nil {
		return c, "custom", nil
	}
	ref := m.opts.Strategies[slot]
	if ref == "" {
		ref = slot.DefaultStrategy()
	}
	factory, err := strategies.Resolve(ref, m.cfg, m.opts.Tracer)
	if err != nil {
		return nil, ref, err
	}
	c, err := factory(id)
	if err != nil {
		return nil, ref, err
	}
	return c, ref, nil
}

// SetMode tears down the robots and restarts the match in mode. Score and
// telemetry windows start over; CSV output keeps going.
func (m *Match) SetMode(mode config.Mode) error {
	m.writeEvents()
	return m.setup(mode)
}

// Step advances the match by one tick: apply the previous actions, step
// physics, let the referee judge the result, rebuild every robot's
// WorldState and run the strategies for the next tick. It returns the
// referee's decisions for this tick. A finished match does not advance.
func (m *Match) Step() []referee.Event {
	if m.referee.Phase() == referee.PhaseFinished {
		return nil
	}
	dt := m.cfg.Match.DT
	m.perfCollector.StartTick()

	m.perfCollector.StartPhase(telemetry.PhaseApply)
	actions := m.pending
	if !m.referee.AllowsMotion() {
		actions = nil
	}
	m.pending = nil

	m.perfCollector.StartPhase(telemetry.PhasePhysics)
	m.world.Step(actions, dt)
	snap := m.world.Snapshot()
	m.collector.RecordSnapshot(snap)
	m.robotTracker.Update(snap)

	m.perfCollector.StartPhase(telemetry.PhaseReferee)
	events := m.referee.Update(snap, dt)
	m.handleRefereeEvents(events)

	m.perfCollector.StartPhase(telemetry.PhaseObserve)
	// The referee may have moved bodies.
	snap = m.world.Snapshot()
	states := m.observe(snap)

	m.perfCollector.StartPhase(telemetry.PhaseStrategy)
	m.pending = m.collectResults(snap.Tick, m.sandbox.Run(snap.Tick, states))

	m.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	m.flushTelemetry()
	m.collector.RecordTick(m.perfCollector.EndTick())
	return events
}

// observe builds the WorldState of every robot from snap.
func (m *Match) observe(snap *systems.Snapshot) map[systems.RobotID]vision.WorldState {
	dt := m.cfg.Match.DT
	st := m.referee.State()
	ctx := vision.Context{
		KickoffTeam: st.KickoffTeam,
		Kickoff:     st.Phase == referee.PhaseKickoff && !st.Neutral,
	}
	tMs := int64(math.Round(float64(snap.Tick) * dt * 1000))

	states := make(map[systems.RobotID]vision.WorldState, len(snap.Robots))
	for _, r := range snap.Robots {
		if ws, ok := m.vision.Build(snap, r.ID, tMs, dt, ctx); ok {
			states[r.ID] = ws
		}
	}
	return states
}

// collectResults turns sandbox results into the actions for the next tick and
// records faults and slow calls.
func (m *Match) collectResults(tick int64, results map[systems.RobotID]sandbox.Result) map[systems.RobotID]systems.Action {
	actions := make(map[systems.RobotID]systems.Action, len(results))
	clear(m.faults)
	budget := m.sandbox.Budget()

	for _, id := range m.world.RobotIDs() {
		res, ok := results[id]
		if !ok {
			continue
		}
		actions[id] = res.Action
		if !res.OK() {
			m.faults[id] = res.Err
			m.collector.RecordFault()
			m.robotTracker.RecordFault(id)
			m.events = append(m.events, telemetry.NewFaultEvent(sandbox.Fault{Robot: id, Tick: tick, Err: res.Err}))
		}
		if budget > 0 && res.Elapsed > budget {
			m.collector.RecordOverBudget()
			m.robotTracker.RecordOverBudget(id)
			m.events = append(m.events, telemetry.NewOverBudgetEvent(id, tick, res.Elapsed))
		}
	}
	return actions
}

func (m *Match) handleRefereeEvents(events []referee.Event) {
	for _, e := range events {
		m.collector.RecordReferee(e)
		m.events = append(m.events, telemetry.NewRefereeEvent(e))
		m.logRefereeEvent(e)
		if m.eventCallback != nil {
			m.eventCallback(e)
		}
	}
	if len(events) > 0 {
		m.collector.Reposition()
		m.robotTracker.Reposition()
	}
	m.logPhaseChange()
}

// Run steps the match until it finishes, maxTicks ticks have run (0 = no
// limit) or ctx is cancelled. Cancellation is only observed between ticks.
func (m *Match) Run(ctx context.Context, maxTicks int64) (telemetry.Summary, error) {
	for m.referee.Phase() != referee.PhaseFinished {
		if maxTicks > 0 && m.world.Tick() >= maxTicks {
			break
		}
		if err := ctx.Err(); err != nil {
			return m.Summary(), err
		}
		m.Step()
	}
	s := m.Summary()
	if m.logStats {
		m.logSummary(s)
	}
	return s, nil
}

// Finish ends the match immediately.
func (m *Match) Finish() []referee.Event {
	events := m.referee.Finish()
	m.handleRefereeEvents(events)
	return events
}

// Tick returns the number of completed ticks.
func (m *Match) Tick() int64 {
	return m.world.Tick()
}

// Mode returns the active mode.
func (m *Match) Mode() config.Mode {
	return m.mode
}

// Seed returns the seed the match runs with.
func (m *Match) Seed() int64 {
	return m.cfg.Match.Seed
}

// Config returns the match configuration.
func (m *Match) Config() *config.Config {
	return m.cfg
}

// State returns the referee's game state.
func (m *Match) State() referee.GameState {
	return m.referee.State()
}

// Snapshot returns a copy of the physics state.
func (m *Match) Snapshot() *systems.Snapshot {
	return m.world.Snapshot()
}

// SandboxStats returns strategy call counters.
func (m *Match) SandboxStats() sandbox.Stats {
	return m.sandbox.Stats()
}

// RobotStats returns per-robot statistics in id order.
func (m *Match) RobotStats() []telemetry.RobotStats {
	return m.robotTracker.All()
}

// Summary describes the match so far.
func (m *Match) Summary() telemetry.Summary {
	s := m.collector.Summary(m.world.Tick(), m.referee.State())
	s.MatchID = m.ID.String()
	s.Mode = m.mode.String()
	s.Seed = m.cfg.Match.Seed
	return s
}

// Frame returns the current state for rendering.
func (m *Match) Frame() Frame {
	snap := m.world.Snapshot()
	st := m.referee.State()
	f := Frame{
		Tick:        snap.Tick,
		Phase:       st.Phase,
		Half:        st.Half,
		Clock:       st.Clock,
		Countdown:   st.Countdown,
		Score:       st.Score,
		KickoffTeam: st.KickoffTeam,
		Robots:      make([]RobotFrame, 0, len(snap.Robots)),
		Ball:        snap.Ball,
		HasBall:     snap.HasBall,
	}
	for _, r := range snap.Robots {
		rf := RobotFrame{
			ID:      r.ID,
			Team:    r.Team,
			Role:    r.Role,
			Pos:     r.Pos,
			Heading: r.Heading,
			Stuck:   r.Stuck,
		}
		if err, ok := m.faults[r.ID]; ok {
			rf.Fault = true
			rf.Error = err.Error()
		}
		f.Robots = append(f.Robots, rf)
	}
	f.Digest = frameDigest(snap.Digest(), st)
	return f
}

// frameDigest extends a physics digest with the referee state.
func frameDigest(physics uint64, st referee.GameState) uint64 {
	buf := make([]byte, 0, 48)
	buf = binary.LittleEndian.AppendUint64(buf, physics)
	buf = append(buf, byte(st.Phase), byte(st.KickoffTeam))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(st.Half))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(st.Score[components.Blue]))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(st.Score[components.Yellow]))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(st.Clock))
	return xxhash.Sum64(buf)
}

// Close writes the remaining events, per-robot stats and the summary, then
// closes CSV output.
func (m *Match) Close() error {
	if m.outputManager == nil {
		return nil
	}
	var errs []error
	errs = append(errs, m.outputManager.WriteEvents(m.events))
	m.events = m.events[:0]
	errs = append(errs, m.outputManager.WriteRobots(m.robotTracker.All()))
	errs = append(errs, m.outputManager.WriteSummary(m.Summary()))
	errs = append(errs, m.outputManager.Close())
	m.outputManager = nil
	return errors.Join(errs...)
}
