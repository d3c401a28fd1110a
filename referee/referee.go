// Package referee enforces the rules of play: kickoffs, goals, out-of-bounds
// restarts, lack of progress, halves and the end of the match. It reads
// physics snapshots and moves bodies only through a systems.Relocator.
package referee

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/field"
	"github.com/pthm-cable/robosim/systems"
)

// Referee is the match state machine.
type Referee struct {
	cfg          config.RefereeConfig
	halfDuration float64
	halves       int
	field        *field.Field
	mode         config.Mode
	place        systems.Relocator

	firstKickoff components.Team
	state        GameState
	rng          *rand.Rand

	// Lack-of-progress tracking.
	anchor      r2.Vec
	stillFor    float64
	events      []Event
	currentTick int64
}

// New creates a referee in the Setup phase.
func New(cfg *config.Config, f *field.Field, mode config.Mode, place systems.Relocator) *Referee {
	first, err := components.ParseTeam(cfg.Referee.FirstKickoff)
	if err != nil {
		first = components.Blue
	}
	return &Referee{
		cfg:          cfg.Referee,
		halfDuration: cfg.Match.HalfDuration,
		halves:       cfg.Match.Halves,
		field:        f,
		mode:         mode,
		place:        place,
		firstKickoff: first,
		state:        GameState{Phase: PhaseSetup, KickoffTeam: first},
		rng:          rand.New(rand.NewSource(cfg.Match.Seed)),
	}
}

// State returns a copy of the game state.
func (r *Referee) State() GameState {
	return r.state
}

// Phase returns the current phase.
func (r *Referee) Phase() Phase {
	return r.state.Phase
}

// AllowsMotion reports whether robot actions reach the motors. Outside of
// Playing the referee owns the bodies and robots are held still.
func (r *Referee) AllowsMotion() bool {
	return r.state.Phase == PhasePlaying
}

// Start resets the score and sets up the first kickoff.
func (r *Referee) Start(snap *systems.Snapshot) []Event {
	r.events = r.events[:0]
	r.currentTick = snap.Tick
	r.state = GameState{Half: 1, KickoffTeam: r.firstKickoff}
	r.startKickoff(snap, r.firstKickoff)
	return r.flush()
}

// Finish ends the match immediately.
func (r *Referee) Finish() []Event {
	r.events = r.events[:0]
	if r.state.Phase != PhaseFinished {
		r.enter(PhaseFinished, 0)
		r.emit(Event{Kind: EventFinished})
	}
	return r.flush()
}

// Update applies the rules to the state after one physics step of dt seconds
// and returns the decisions taken, in order.
func (r *Referee) Update(snap *systems.Snapshot, dt float64) []Event {
	r.events = r.events[:0]
	r.currentTick = snap.Tick
	if r.state.Phase == PhaseSetup || r.state.Phase == PhaseFinished {
		return nil
	}

	for _, t := range snap.Touches {
		r.state.LastTouch = t.Team
		r.state.HasLastTouch = true
	}
	if r.state.Phase.clockRuns() {
		r.state.Clock += dt
	}

	switch r.state.Phase {
	case PhaseKickoff:
		r.state.Countdown -= dt
		if r.mode.Simplified() || (r.state.Countdown <= 0 && r.kickoffLegal(snap)) {
			r.startPlay(snap)
		} else if r.state.Countdown <= 0 {
			r.repositionForRestart(snap)
		}

	case PhasePlaying:
		r.checkPlay(snap, dt)

	case PhaseOutOfBounds:
		r.state.Countdown -= dt
		if r.state.Countdown <= 0 {
			r.place.PlaceBall(r.state.RestartSpot)
			r.enforceClearance(snap, r.state.RestartSpot)
			r.startPlay(snap)
		}

	case PhaseGoal:
		r.state.Countdown -= dt
		if r.state.Countdown <= 0 {
			r.startKickoff(snap, r.state.KickoffTeam)
		}

	case PhaseHalfTime:
		r.state.Countdown -= dt
		if r.state.Countdown <= 0 {
			r.state.Half++
			r.state.Clock = 0
			r.startKickoff(snap, r.firstKickoff.Other())
		}
	}

	if r.state.Phase.clockRuns() && r.halfDuration > 0 && r.state.Clock >= r.halfDuration {
		r.endHalf()
	}
	return r.flush()
}

// checkPlay looks for goals, out-of-bounds and stalled play. A goal wins when
// both are reported in the same step.
func (r *Referee) checkPlay(snap *systems.Snapshot, dt float64) {
	if ev, ok := snap.Event(systems.BallInGoal); ok {
		scorer := ev.Goal.Other()
		r.state.Score[scorer]++
		r.state.KickoffTeam = ev.Goal
		r.enter(PhaseGoal, r.cfg.GoalPause)
		r.emit(Event{Kind: EventGoal, Team: scorer, HasTeam: true, Pos: ev.Pos})
		r.place.StopAll()
		return
	}

	if ev, ok := snap.Event(systems.BallOutOfBounds); ok {
		spot := r.field.RestartSpot(ev.Exit)
		r.state.RestartSpot = spot.Pos
		r.enter(PhaseOutOfBounds, r.cfg.OutOfBoundsPause)
		r.emit(Event{
			Kind:    EventOutOfBounds,
			Team:    r.state.LastTouch,
			HasTeam: r.state.HasLastTouch,
			Pos:     spot.Pos,
		})
		r.place.StopAll()
		r.place.PlaceBall(spot.Pos)
		return
	}

	if !snap.HasBall || r.cfg.ProgressDuration <= 0 {
		return
	}
	if r2.Norm(r2.Sub(snap.Ball.Pos, r.anchor)) > r.cfg.ProgressThreshold {
		r.anchor = snap.Ball.Pos
		r.stillFor = 0
		return
	}
	r.stillFor += dt
	if r.stillFor >= r.cfg.ProgressDuration {
		spot := r.field.NearestSpot(snap.Ball.Pos)
		r.state.RestartSpot = spot.Pos
		r.state.Neutral = true
		r.enter(PhaseKickoff, r.cfg.KickoffDelay)
		r.emit(Event{Kind: EventLackOfProgress, Pos: spot.Pos})
		r.place.StopAll()
		r.place.PlaceBall(spot.Pos)
		r.enforceClearance(snap, spot.Pos)
	}
}

// startKickoff puts the ball on the centre spot and both teams in formation.
func (r *Referee) startKickoff(snap *systems.Snapshot, team components.Team) {
	r.state.KickoffTeam = team
	r.state.Neutral = false
	r.state.RestartSpot = r2.Vec{}
	r.enter(PhaseKickoff, r.cfg.KickoffDelay)
	r.place.StopAll()
	r.place.PlaceBall(r.drop(r2.Vec{}))
	r.placeFormation(snap, team)
	r.emit(Event{Kind: EventKickoff, Team: team, HasTeam: true})
}

// repositionForRestart restores legal positions for the pending kickoff.
func (r *Referee) repositionForRestart(snap *systems.Snapshot) {
	if r.state.Neutral {
		r.enforceClearance(snap, r.state.RestartSpot)
		return
	}
	r.placeFormation(snap, r.state.KickoffTeam)
}

// drop returns where the kickoff ball lands near spot: a seeded offset of at
// most DropJitter, so matches with different seeds diverge. Stoppage
// restarts place the ball exactly on the neutral spot instead.
func (r *Referee) drop(spot r2.Vec) r2.Vec {
	if r.cfg.DropJitter <= 0 {
		return spot
	}
	a := r.rng.Float64() * 2 * math.Pi
	d := r.cfg.DropJitter * math.Sqrt(r.rng.Float64())
	return r2.Add(spot, r2.Vec{X: d * math.Sin(a), Y: d * math.Cos(a)})
}

func (r *Referee) startPlay(snap *systems.Snapshot) {
	r.state.Neutral = false
	r.enter(PhasePlaying, 0)
	r.anchor = snap.Ball.Pos
	r.stillFor = 0
	r.emit(Event{Kind: EventPlay})
}

func (r *Referee) endHalf() {
	r.place.StopAll()
	if r.state.Half < r.halves {
		r.enter(PhaseHalfTime, r.cfg.HalfTimePause)
		r.emit(Event{Kind: EventHalfTime})
		return
	}
	r.enter(PhaseFinished, 0)
	r.emit(Event{Kind: EventFinished})
}

func (r *Referee) enter(p Phase, countdown float64) {
	r.state.Phase = p
	r.state.Countdown = countdown
}

func (r *Referee) emit(e Event) {
	e.Tick = r.currentTick
	e.Half = r.state.Half
	e.Clock = r.state.Clock
	e.Score = r.state.Score
	r.events = append(r.events, e)
}

func (r *Referee) flush() []Event {
	if len(r.events) == 0 {
		return nil
	}
	return append([]Event(nil), r.events...)
}
