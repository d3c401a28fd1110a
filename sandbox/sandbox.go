// Package sandbox runs per-robot strategy code once per tick and isolates the
// match from whatever that code does: errors, panics, malformed results and
// slow calls all degrade to the neutral action for that robot only.
package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/systems"
	"github.com/pthm-cable/robosim/vision"
)

var (
	// ErrNoStrategy is returned when script source exports no strategy function.
	ErrNoStrategy = errors.New("no strategy function exported")
	// ErrBadAction is returned when a strategy result is not action-shaped.
	ErrBadAction = errors.New("strategy result is not an action")
	// ErrPanic wraps a recovered panic from a Go controller.
	ErrPanic = errors.New("strategy panicked")
)

// Cell is a robot's private state slot. The sandbox creates one per attached
// robot and hands it to every call for that robot only.
type Cell struct {
	Robot systems.RobotID
	Tick  int64
	Value any // controller-owned state, nil on the first call
}

// Controller produces a robot's next action from its WorldState.
type Controller interface {
	Step(ws vision.WorldState, cell *Cell) (systems.Action, error)
}

// Func adapts a function to Controller.
type Func func(ws vision.WorldState, cell *Cell) (systems.Action, error)

// Step calls f.
func (f Func) Step(ws vision.WorldState, cell *Cell) (systems.Action, error) {
	return f(ws, cell)
}

// Result is the outcome of one controller call. On failure Action is neutral.
type Result struct {
	Action  systems.Action
	Err     error
	Elapsed time.Duration
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Fault records a failed controller call.
type Fault struct {
	Robot systems.RobotID
	Tick  int64
	Err   error
}

func (f Fault) Error() string {
	return fmt.Sprintf("robot %d tick %d: %v", f.Robot, f.Tick, f.Err)
}

func (f Fault) Unwrap() error {
	return f.Err
}

// Stats counts calls across the sandbox's lifetime.
type Stats struct {
	Calls      int64
	Faults     int64
	OverBudget int64
}

type slot struct {
	ctrl   Controller
	cell   Cell
	faults int
}

// Sandbox owns the attached controllers and their cells.
type Sandbox struct {
	budget   time.Duration
	logEvery int
	logger   *slog.Logger

	slots  map[systems.RobotID]*slot
	ids    []systems.RobotID
	faults []Fault
	stats  Stats
}

// New creates an empty sandbox.
func New(cfg config.SandboxConfig, logger *slog.Logger) *Sandbox {
	if logger == nil {
		logger = slog.Default()
	}
	logEvery := cfg.FaultLogEvery
	if logEvery < 1 {
		logEvery = 1
	}
	return &Sandbox{
		budget:   time.Duration(cfg.TimeBudgetMs * float64(time.Millisecond)),
		logEvery: logEvery,
		logger:   logger,
		slots:    make(map[systems.RobotID]*slot),
	}
}

// Attach installs ctrl for robot id with a fresh cell, replacing any previous
// controller and its state.
func (s *Sandbox) Attach(id systems.RobotID, ctrl Controller) {
	if _, ok := s.slots[id]; !ok {
		s.ids = append(s.ids, id)
		slices.Sort(s.ids)
	}
	s.slots[id] = &slot{ctrl: ctrl, cell: Cell{Robot: id}}
}

// Detach removes robot id's controller and state.
func (s *Sandbox) Detach(id systems.RobotID) {
	if _, ok := s.slots[id]; !ok {
		return
	}
	delete(s.slots, id)
	s.ids = slices.DeleteFunc(s.ids, func(x systems.RobotID) bool { return x == id })
}

// Attached reports whether robot id has a controller.
func (s *Sandbox) Attached(id systems.RobotID) bool {
	_, ok := s.slots[id]
	return ok
}

// Run calls every attached controller that has a WorldState, sequentially in
// ascending robot id order. Robots without a state are skipped.
func (s *Sandbox) Run(tick int64, states map[systems.RobotID]vision.WorldState) map[systems.RobotID]Result {
	s.faults = s.faults[:0]
	results := make(map[systems.RobotID]Result, len(states))
	for _, id := range s.ids {
		ws, ok := states[id]
		if !ok {
			continue
		}
		sl := s.slots[id]
		sl.cell.Tick = tick
		res := s.invoke(sl, ws)
		results[id] = res

		if !res.OK() {
			s.stats.Faults++
			sl.faults++
			f := Fault{Robot: id, Tick: tick, Err: res.Err}
			s.faults = append(s.faults, f)
			if sl.faults%s.logEvery == 1 || s.logEvery == 1 {
				s.logger.Warn("strategy_fault", "robot", id, "tick", tick, "count", sl.faults, "error", res.Err)
			}
		}
		if s.budget > 0 && res.Elapsed > s.budget {
			s.stats.OverBudget++
			s.logger.Warn("strategy_over_budget", "robot", id, "tick", tick, "elapsed", res.Elapsed, "budget", s.budget)
		}
	}
	return results
}

// Invoke calls robot id's controller once outside the tick loop.
func (s *Sandbox) Invoke(id systems.RobotID, tick int64, ws vision.WorldState) Result {
	sl, ok := s.slots[id]
	if !ok {
		return Result{Action: systems.Neutral(), Err: fmt.Errorf("robot %d: %w", id, ErrNoStrategy)}
	}
	sl.cell.Tick = tick
	return s.invoke(sl, ws)
}

func (s *Sandbox) invoke(sl *slot, ws vision.WorldState) (res Result) {
	s.stats.Calls++
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			res.Action = systems.Neutral()
			res.Err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	a, err := sl.ctrl.Step(ws, &sl.cell)
	if err != nil {
		return Result{Action: systems.Neutral(), Err: err}
	}
	return Result{Action: a.Clamped()}
}

// Faults returns the faults of the most recent Run.
func (s *Sandbox) Faults() []Fault {
	return slices.Clone(s.faults)
}

// Stats returns lifetime counters.
func (s *Sandbox) Stats() Stats {
	return s.stats
}

// Budget returns the soft per-call time budget, zero when disabled.
func (s *Sandbox) Budget() time.Duration {
	return s.budget
}
